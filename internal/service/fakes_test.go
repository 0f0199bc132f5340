package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/employee-portal/internal/domain"
)

type memoryEmployeeRepo struct {
	mu        sync.Mutex
	employees map[string]*domain.Employee
	createErr error
}

func newMemoryEmployeeRepo() *memoryEmployeeRepo {
	return &memoryEmployeeRepo{employees: map[string]*domain.Employee{}}
}

func (r *memoryEmployeeRepo) Create(_ context.Context, e *domain.Employee) (*domain.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	for _, existing := range r.employees {
		if strings.EqualFold(existing.Email, e.Email) {
			return nil, domain.ErrEmailAlreadyUsed
		}
	}
	stored := e.Clone()
	stored.ID = uuid.NewString()
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	r.employees[stored.ID] = stored
	return stored.Clone(), nil
}

func (r *memoryEmployeeRepo) Update(_ context.Context, e *domain.Employee) (*domain.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.employees[e.ID]
	if !ok {
		return nil, domain.ErrEmployeeNotFound
	}
	stored.LastName = e.LastName
	stored.FirstName = e.FirstName
	stored.Email = e.Email
	stored.Status = e.Status
	stored.ArrivalDate = e.ArrivalDate
	return stored.Clone(), nil
}

func (r *memoryEmployeeRepo) GetByID(_ context.Context, id string) (*domain.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.employees[id]
	if !ok {
		return nil, domain.ErrEmployeeNotFound
	}
	return stored.Clone(), nil
}

func (r *memoryEmployeeRepo) GetByEmail(_ context.Context, email string) (*domain.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.employees {
		if strings.EqualFold(stored.Email, email) {
			return stored.Clone(), nil
		}
	}
	return nil, domain.ErrEmployeeNotFound
}

func (r *memoryEmployeeRepo) List(_ context.Context) ([]domain.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]domain.Employee, 0, len(r.employees))
	for _, stored := range r.employees {
		list = append(list, *stored.Clone())
	}
	return list, nil
}

func (r *memoryEmployeeRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.employees[id]; !ok {
		return domain.ErrEmployeeNotFound
	}
	delete(r.employees, id)
	return nil
}

type memorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	failures map[string]domain.AuthFailure
	lastTTL  time.Duration
}

func newMemorySessionRepo() *memorySessionRepo {
	return &memorySessionRepo{
		sessions: map[string]domain.Session{},
		failures: map[string]domain.AuthFailure{},
	}
}

func (r *memorySessionRepo) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = *s
	return nil
}

func (r *memorySessionRepo) Update(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; !ok {
		return domain.ErrSessionNotFound
	}
	r.sessions[s.ID] = *s
	return nil
}

func (r *memorySessionRepo) GetByID(_ context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &s, nil
}

func (r *memorySessionRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *memorySessionRepo) SaveFailure(_ context.Context, key string, f domain.AuthFailure, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[key] = f
	r.lastTTL = ttl
	return nil
}

func (r *memorySessionRepo) PopFailure(_ context.Context, key string) (*domain.AuthFailure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.failures[key]
	if !ok {
		return nil, nil
	}
	delete(r.failures, key)
	return &f, nil
}

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (plainHasher) Verify(hashed, plain string) bool { return hashed == "hashed:"+plain }

type fixedSecrets struct{ secret string }

func (f fixedSecrets) GenerateSecret() (string, error) { return f.secret, nil }

type staticCodes struct{ valid string }

func (s staticCodes) Verify(e *domain.Employee, code string) bool {
	return e.HasTwoFactor() && code == s.valid
}
