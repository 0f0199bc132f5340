package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/employee-portal/internal/auth"
	"github.com/spec-kit/employee-portal/internal/config"
	"github.com/spec-kit/employee-portal/internal/domain"
	"github.com/spec-kit/employee-portal/internal/repository"
)

// PasswordVerifier checks plaintext credentials against a stored hash.
type PasswordVerifier interface {
	Verify(hashed, plain string) bool
}

// CodeVerifier checks one-time codes for an employee.
type CodeVerifier interface {
	Verify(employee *domain.Employee, code string) bool
}

// AuthService drives login sessions. It satisfies auth.Authenticator.
type AuthService struct {
	employees  repository.EmployeeRepository
	sessions   repository.SessionRepository
	passwords  PasswordVerifier
	codes      CodeVerifier
	sessionTTL time.Duration
	failureTTL time.Duration
	now        func() time.Time
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	EmployeeRepo repository.EmployeeRepository
	SessionRepo  repository.SessionRepository
	Passwords    PasswordVerifier
	Codes        CodeVerifier
}

var _ auth.Authenticator = (*AuthService)(nil)

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	return &AuthService{
		employees:  deps.EmployeeRepo,
		sessions:   deps.SessionRepo,
		passwords:  deps.Passwords,
		codes:      deps.Codes,
		sessionTTL: cfg.SessionTTL(),
		failureTTL: cfg.FailureTTL(),
		now:        time.Now,
	}
}

// Login verifies credentials and opens a session. The session starts with
// the second factor pending when the employee has a two-factor secret.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}
	employee, err := s.employees.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrEmployeeNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.passwords.Verify(employee.PasswordHash, password) {
		return nil, domain.ErrInvalidCredentials
	}

	now := s.now().UTC()
	session := &domain.Session{
		ID:                uuid.NewString(),
		EmployeeID:        employee.ID,
		TwoFactorComplete: !employee.HasTwoFactor(),
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// VerifyTwoFactor completes a pending session when code is valid.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, sessionID, code string) (*domain.Session, error) {
	session, employee, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.TwoFactorComplete {
		return session, nil
	}
	if !s.codes.Verify(employee, code) {
		return nil, domain.ErrInvalidTwoFactorCode
	}
	session.TwoFactorComplete = true
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Resolve loads the principal behind a session id.
func (s *AuthService) Resolve(ctx context.Context, sessionID string) (*auth.Principal, error) {
	session, employee, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &auth.Principal{Session: session, Employee: employee}, nil
}

// Logout removes the session.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// RecordFailure keeps the failure for the next login page render.
func (s *AuthService) RecordFailure(ctx context.Context, key string, failure domain.AuthFailure) error {
	return s.sessions.SaveFailure(ctx, key, failure, s.failureTTL)
}

// LastFailure returns and clears the failure recorded under key.
func (s *AuthService) LastFailure(ctx context.Context, key string) (*domain.AuthFailure, error) {
	return s.sessions.PopFailure(ctx, key)
}

// load returns the session and its employee. Sessions that expired or whose
// employee was deleted are removed and reported as ErrSessionNotFound.
func (s *AuthService) load(ctx context.Context, sessionID string) (*domain.Session, *domain.Employee, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session.Expired(s.now()) {
		_ = s.sessions.Delete(ctx, sessionID)
		return nil, nil, domain.ErrSessionNotFound
	}
	employee, err := s.employees.GetByID(ctx, session.EmployeeID)
	if err != nil {
		if errors.Is(err, domain.ErrEmployeeNotFound) {
			_ = s.sessions.Delete(ctx, sessionID)
			return nil, nil, domain.ErrSessionNotFound
		}
		return nil, nil, err
	}
	return session, employee, nil
}
