package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldErrors maps a form field name to its message.
type FieldErrors map[string]string

// Add records msg for field unless a message is already present.
func (fe FieldErrors) Add(field, msg string) {
	if _, ok := fe[field]; !ok {
		fe[field] = msg
	}
}

// Validator checks bound forms and reports messages keyed by form field.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a validator that names fields after their form tag.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate returns nil when form is valid. Anything other than field
// failures is returned as the second value.
func (v *Validator) Validate(form interface{}) (FieldErrors, error) {
	err := v.validate.Struct(form)
	if err == nil {
		return nil, nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil, err
	}
	fields := FieldErrors{}
	for _, fe := range validationErrs {
		fields.Add(fe.Field(), message(fe))
	}
	return fields, nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Ce champ est obligatoire."
	case "email":
		return "Adresse e-mail invalide."
	case "min":
		return fmt.Sprintf("Ce champ doit contenir au moins %s caractères.", fe.Param())
	case "max":
		return fmt.Sprintf("Ce champ ne doit pas dépasser %s caractères.", fe.Param())
	case "oneof":
		return "Valeur non autorisée."
	case "datetime":
		return "Date invalide."
	}
	return "Valeur invalide."
}
