package domain

import (
	"errors"
	"time"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidTwoFactorCode = errors.New("invalid two-factor code")
)

// Session is a server-side login session referenced by the session cookie.
type Session struct {
	ID                string    `json:"id"`
	EmployeeID        string    `json:"employee_id"`
	TwoFactorComplete bool      `json:"two_factor_complete"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// Expired reports whether the session lifetime has elapsed at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// AuthFailure records the outcome of the last rejected login or code check.
type AuthFailure struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}
