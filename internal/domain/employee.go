package domain

import (
	"errors"
	"time"
)

// EmployeeStatus enumerates employment contract types.
type EmployeeStatus string

const (
	EmployeeStatusCDI       EmployeeStatus = "CDI"
	EmployeeStatusCDD       EmployeeStatus = "CDD"
	EmployeeStatusFreelance EmployeeStatus = "Freelance"
)

// EmployeeStatuses lists the statuses offered by the edit form, default first.
func EmployeeStatuses() []EmployeeStatus {
	return []EmployeeStatus{EmployeeStatusCDI, EmployeeStatusCDD, EmployeeStatusFreelance}
}

var (
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrEmailAlreadyUsed = errors.New("email already used by another employee")
)

// Employee is the managed person record. TwoFactorSecret stays empty until
// registration provisions it.
type Employee struct {
	ID              string
	LastName        string
	FirstName       string
	Email           string
	Status          EmployeeStatus
	ArrivalDate     time.Time
	PasswordHash    string
	TwoFactorSecret string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FullName joins first and last name for display.
func (e *Employee) FullName() string {
	switch {
	case e.FirstName == "":
		return e.LastName
	case e.LastName == "":
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

// HasTwoFactor reports whether a TOTP secret has been provisioned.
func (e *Employee) HasTwoFactor() bool {
	return e.TwoFactorSecret != ""
}

// Clone returns a detached copy safe to mutate.
func (e *Employee) Clone() *Employee {
	if e == nil {
		return nil
	}
	cp := *e
	return &cp
}
