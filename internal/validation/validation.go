// Package validation checks struct-tagged input forms and decoded backend
// payloads, reporting failures with JSON field names.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator wraps a configured validator.Validate. It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
}

// FieldError is a single failed rule on a named field.
type FieldError struct {
	Field   string
	Tag     string
	Message string
}

// Errors is the error returned by Validate when one or more rules fail.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, fe := range e {
		msgs = append(msgs, fe.Message)
	}
	return strings.Join(msgs, "; ")
}

// Has reports whether field failed validation.
func (e Errors) Has(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report JSON names instead of Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return strings.ToLower(fld.Name)
		}
		return name
	})

	_ = v.RegisterValidation("handle", validateHandle)

	return &Validator{validate: v}
}

// Default is shared by packages that do not need their own instance.
var Default = New()

// Validate runs the struct tags of i. The result is either nil, Errors, or
// the underlying error when i is not a struct.
func (v *Validator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return formatValidationErrors(validationErrs, "")
		}
		return err
	}
	return nil
}

// Var validates a single value against tag, e.g. Var(email, "required,email").
func (v *Validator) Var(field string, value any, tag string) error {
	if err := v.validate.Var(value, tag); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return formatValidationErrors(validationErrs, field)
		}
		return err
	}
	return nil
}

// handles are lowercase letters, digits and dashes, 3 to 32 long
func validateHandle(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) < 3 || len(s) > 32 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// formatValidationErrors renders errs; a non-empty name replaces the field
// name, which is empty for Var checks.
func formatValidationErrors(errs validator.ValidationErrors, name string) Errors {
	out := make(Errors, 0, len(errs))
	for _, err := range errs {
		var message string
		field := err.Field()
		if name != "" {
			field = name
		}

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", field)
		case "min":
			message = fmt.Sprintf("%s must be at least %s characters", field, err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", field, err.Param())
		case "eqfield":
			message = fmt.Sprintf("%s must match %s", field, strings.ToLower(err.Param()))
		case "handle":
			message = fmt.Sprintf("%s may only contain a-z, 0-9, '-' and '_' (3-32 characters)", field)
		case "gte":
			message = fmt.Sprintf("%s must be greater than or equal to %s", field, err.Param())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", field, err.Param())
		case "len":
			message = fmt.Sprintf("%s must be %s characters long", field, err.Param())
		default:
			message = fmt.Sprintf("%s failed validation for %s", field, err.Tag())
		}
		out = append(out, FieldError{Field: field, Tag: err.Tag(), Message: message})
	}
	return out
}
