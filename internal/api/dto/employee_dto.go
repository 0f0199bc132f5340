package dto

import (
	"strings"
	"time"

	"github.com/spec-kit/employee-portal/internal/domain"
)

// DateLayout is the wire format of date inputs.
const DateLayout = "2006-01-02"

// RegisterForm is the self-registration payload of /inscription.
type RegisterForm struct {
	LastName  string `form:"nom" validate:"required,max=255"`
	FirstName string `form:"prenom" validate:"required,max=255"`
	Email     string `form:"email" validate:"required,email,max=255"`
	Password  string `form:"password" validate:"required,min=8,max=72"`
}

// Normalize trims surrounding whitespace. The password is left as typed.
func (f *RegisterForm) Normalize() {
	f.LastName = strings.TrimSpace(f.LastName)
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.Email = strings.TrimSpace(f.Email)
}

// ApplyTo copies the profile fields onto e.
func (f *RegisterForm) ApplyTo(e *domain.Employee) {
	e.LastName = f.LastName
	e.FirstName = f.FirstName
	e.Email = f.Email
}

// EmployeeForm edits an existing employee.
type EmployeeForm struct {
	LastName    string `form:"nom" validate:"required,max=255"`
	FirstName   string `form:"prenom" validate:"required,max=255"`
	Email       string `form:"email" validate:"required,email,max=255"`
	Status      string `form:"statut" validate:"required,oneof=CDI CDD Freelance"`
	ArrivalDate string `form:"date_arrivee" validate:"required,datetime=2006-01-02"`
}

// NewEmployeeForm prefills the form from e.
func NewEmployeeForm(e *domain.Employee) EmployeeForm {
	form := EmployeeForm{
		LastName:  e.LastName,
		FirstName: e.FirstName,
		Email:     e.Email,
		Status:    string(e.Status),
	}
	if !e.ArrivalDate.IsZero() {
		form.ArrivalDate = e.ArrivalDate.Format(DateLayout)
	}
	return form
}

// Normalize trims surrounding whitespace.
func (f *EmployeeForm) Normalize() {
	f.LastName = strings.TrimSpace(f.LastName)
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.Email = strings.TrimSpace(f.Email)
	f.Status = strings.TrimSpace(f.Status)
	f.ArrivalDate = strings.TrimSpace(f.ArrivalDate)
}

// ApplyTo copies every field onto e. The form must have passed validation.
func (f *EmployeeForm) ApplyTo(e *domain.Employee) {
	e.LastName = f.LastName
	e.FirstName = f.FirstName
	e.Email = f.Email
	e.Status = domain.EmployeeStatus(f.Status)
	if arrival, err := time.Parse(DateLayout, f.ArrivalDate); err == nil {
		e.ArrivalDate = arrival
	}
}

// EmployeeView is the template model of an employee.
type EmployeeView struct {
	ID          string
	LastName    string
	FirstName   string
	FullName    string
	Email       string
	Status      string
	ArrivalDate string
}

// NewEmployeeView maps e for display. Credentials are never exposed.
func NewEmployeeView(e *domain.Employee) EmployeeView {
	view := EmployeeView{
		ID:        e.ID,
		LastName:  e.LastName,
		FirstName: e.FirstName,
		FullName:  e.FullName(),
		Email:     e.Email,
		Status:    string(e.Status),
	}
	if !e.ArrivalDate.IsZero() {
		view.ArrivalDate = e.ArrivalDate.Format("02/01/2006")
	}
	return view
}

// NewEmployeeViews maps a list.
func NewEmployeeViews(list []domain.Employee) []EmployeeView {
	views := make([]EmployeeView, 0, len(list))
	for i := range list {
		views = append(views, NewEmployeeView(&list[i]))
	}
	return views
}
