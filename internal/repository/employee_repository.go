package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/employee-portal/internal/domain"
)

const (
	uniqueViolationCode           = "23505"
	invalidTextRepresentationCode = "22P02"
)

const employeeColumns = `id, last_name, first_name, email, status, arrival_date, password_hash, two_factor_secret, created_at, updated_at`

// EmployeeRepository defines persistence access for employees.
type EmployeeRepository interface {
	Create(ctx context.Context, employee *domain.Employee) (*domain.Employee, error)
	Update(ctx context.Context, employee *domain.Employee) (*domain.Employee, error)
	GetByID(ctx context.Context, id string) (*domain.Employee, error)
	GetByEmail(ctx context.Context, email string) (*domain.Employee, error)
	List(ctx context.Context) ([]domain.Employee, error)
	Delete(ctx context.Context, id string) error
}

type employeeRepository struct {
	db DBTX
}

// NewEmployeeRepository returns a Postgres-backed implementation.
func NewEmployeeRepository(db DBTX) EmployeeRepository {
	return &employeeRepository{db: db}
}

func (r *employeeRepository) Create(ctx context.Context, e *domain.Employee) (*domain.Employee, error) {
	const query = `
        INSERT INTO employees (last_name, first_name, email, status, arrival_date, password_hash, two_factor_secret)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING ` + employeeColumns

	created, err := scanEmployee(r.db.QueryRow(ctx, query,
		e.LastName,
		e.FirstName,
		e.Email,
		string(e.Status),
		e.ArrivalDate,
		e.PasswordHash,
		nullableString(e.TwoFactorSecret),
	))
	if err != nil {
		return nil, translateError(err)
	}
	return created, nil
}

// Update writes the editable profile fields. Credentials and the two-factor
// secret are never touched here.
func (r *employeeRepository) Update(ctx context.Context, e *domain.Employee) (*domain.Employee, error) {
	const query = `
        UPDATE employees
           SET last_name=$1, first_name=$2, email=$3, status=$4, arrival_date=$5, updated_at=NOW()
         WHERE id=$6
        RETURNING ` + employeeColumns

	updated, err := scanEmployee(r.db.QueryRow(ctx, query,
		e.LastName,
		e.FirstName,
		e.Email,
		string(e.Status),
		e.ArrivalDate,
		e.ID,
	))
	if err != nil {
		return nil, translateError(err)
	}
	return updated, nil
}

func (r *employeeRepository) GetByID(ctx context.Context, id string) (*domain.Employee, error) {
	const query = `SELECT ` + employeeColumns + ` FROM employees WHERE id=$1`

	e, err := scanEmployee(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translateError(err)
	}
	return e, nil
}

func (r *employeeRepository) GetByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	const query = `SELECT ` + employeeColumns + ` FROM employees WHERE lower(email)=lower($1)`

	e, err := scanEmployee(r.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, translateError(err)
	}
	return e, nil
}

func (r *employeeRepository) List(ctx context.Context) ([]domain.Employee, error) {
	const query = `SELECT ` + employeeColumns + ` FROM employees ORDER BY last_name, first_name, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []domain.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return employees, nil
}

func (r *employeeRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM employees WHERE id=$1`

	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return translateError(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrEmployeeNotFound
	}
	return nil
}

func scanEmployee(row pgx.Row) (*domain.Employee, error) {
	var (
		e      domain.Employee
		status string
		secret sql.NullString
	)
	if err := row.Scan(
		&e.ID,
		&e.LastName,
		&e.FirstName,
		&e.Email,
		&status,
		&e.ArrivalDate,
		&e.PasswordHash,
		&secret,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEmployeeNotFound
		}
		return nil, err
	}
	e.Status = domain.EmployeeStatus(status)
	if secret.Valid {
		e.TwoFactorSecret = secret.String
	}
	return &e, nil
}

func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return domain.ErrEmailAlreadyUsed
		case invalidTextRepresentationCode:
			return domain.ErrEmployeeNotFound
		}
	}
	return err
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
