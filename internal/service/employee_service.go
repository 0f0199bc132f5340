package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/employee-portal/internal/auth"
	"github.com/spec-kit/employee-portal/internal/domain"
	"github.com/spec-kit/employee-portal/internal/events"
	"github.com/spec-kit/employee-portal/internal/repository"
)

// PasswordHasher hashes plaintext credentials.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// SecretGenerator provisions two-factor secrets.
type SecretGenerator interface {
	GenerateSecret() (string, error)
}

// EmployeeService coordinates registration and employee maintenance.
type EmployeeService struct {
	employees  repository.EmployeeRepository
	hasher     PasswordHasher
	secrets    SecretGenerator
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// EmployeeDependencies encapsulates collaborators of the employee service.
type EmployeeDependencies struct {
	EmployeeRepo repository.EmployeeRepository
	Hasher       PasswordHasher
	Secrets      SecretGenerator
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewEmployeeService builds the service.
func NewEmployeeService(deps EmployeeDependencies) *EmployeeService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmployeeService{
		employees:  deps.EmployeeRepo,
		hasher:     deps.Hasher,
		secrets:    deps.Secrets,
		dispatcher: deps.Dispatcher,
		logger:     logger.Named("employees"),
		now:        time.Now,
	}
}

// NewEmployee returns an unsaved employee with a permanent contract starting today.
func (s *EmployeeService) NewEmployee() *domain.Employee {
	now := s.now()
	return &domain.Employee{
		Status:      domain.EmployeeStatusCDI,
		ArrivalDate: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
	}
}

// Register hashes the plaintext password, provisions a two-factor secret and
// inserts the employee. The argument is left untouched.
func (s *EmployeeService) Register(ctx context.Context, employee *domain.Employee, plainPassword string) (*domain.Employee, error) {
	if employee.ID != "" {
		return nil, fmt.Errorf("employee %s is already registered", employee.ID)
	}

	candidate := employee.Clone()

	hash, err := s.hasher.Hash(plainPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	candidate.PasswordHash = hash

	secret, err := s.secrets.GenerateSecret()
	if err != nil {
		return nil, err
	}
	candidate.TwoFactorSecret = secret

	created, err := s.employees.Create(ctx, candidate)
	if err != nil {
		return nil, err
	}

	s.logger.Info("employee registered", zap.String("employee_id", created.ID))
	s.publish(ctx, events.EventEmployeeRegistered, created.ID, events.EmployeeRegisteredPayload{
		Email:  created.Email,
		Status: string(created.Status),
	})
	return created, nil
}

// List returns every employee.
func (s *EmployeeService) List(ctx context.Context) ([]domain.Employee, error) {
	return s.employees.List(ctx)
}

// Get loads one employee. Malformed identifiers are reported as not found.
func (s *EmployeeService) Get(ctx context.Context, id string) (*domain.Employee, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrEmployeeNotFound
	}
	return s.employees.GetByID(ctx, id)
}

// Update applies mutate to a copy of current and saves it, returning the
// stored record. The identifier and credentials cannot be changed this way.
func (s *EmployeeService) Update(ctx context.Context, current *domain.Employee, mutate func(*domain.Employee)) (*domain.Employee, error) {
	candidate := current.Clone()
	mutate(candidate)
	candidate.ID = current.ID
	candidate.PasswordHash = current.PasswordHash
	candidate.TwoFactorSecret = current.TwoFactorSecret

	updated, err := s.employees.Update(ctx, candidate)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventEmployeeUpdated, updated.ID, events.EmployeeUpdatedPayload{
		ChangedFields: changedFields(current, updated),
	})
	return updated, nil
}

// Delete removes the employee; ErrEmployeeNotFound when it does not exist.
func (s *EmployeeService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrEmployeeNotFound
	}
	if err := s.employees.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("employee deleted", zap.String("employee_id", id))
	s.publish(ctx, events.EventEmployeeDeleted, id, nil)
	return nil
}

func (s *EmployeeService) publish(ctx context.Context, eventType events.EventType, employeeID string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	var actorID *string
	if principal, ok := auth.PrincipalFrom(ctx); ok && principal.Employee != nil {
		id := principal.Employee.ID
		actorID = &id
	}
	if err := s.dispatcher.Publish(ctx, events.NewEvent(eventType, employeeID, actorID, payload)); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

func changedFields(before, after *domain.Employee) []string {
	var fields []string
	if before.LastName != after.LastName {
		fields = append(fields, "last_name")
	}
	if before.FirstName != after.FirstName {
		fields = append(fields, "first_name")
	}
	if before.Email != after.Email {
		fields = append(fields, "email")
	}
	if before.Status != after.Status {
		fields = append(fields, "status")
	}
	if !before.ArrivalDate.Equal(after.ArrivalDate) {
		fields = append(fields, "arrival_date")
	}
	return fields
}

// IsNotFound reports whether err means the employee does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrEmployeeNotFound)
}
