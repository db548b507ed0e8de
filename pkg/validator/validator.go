// Package validator wraps go-playground/validator with the custom rules used
// by the HTTP handlers and configuration loading.
package validator

import (
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sonartrack/api/pkg/domain/finding"
	"github.com/sonartrack/api/pkg/domain/project"
)

// componentKeyRegex matches SonarQube component keys: group:artifact style
// keys with dots, dashes and underscores.
var componentKeyRegex = regexp.MustCompile(`^[\w.:-]+$`)

// Validator wraps the go-playground validator with custom validations.
type Validator struct {
	validate *validator.Validate
}

// FieldError is a single field validation error.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors is a collection of field validation errors.
type FieldErrors []FieldError

// Error implements the error interface.
func (v FieldErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return strings.Join(parts, "; ")
}

// New creates a Validator with the custom rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("severity", validateSeverity)
	_ = v.RegisterValidation("local_status", validateLocalStatus)
	_ = v.RegisterValidation("finding_type", validateFindingType)
	_ = v.RegisterValidation("component_key", validateComponentKey)
	_ = v.RegisterValidation("cron_schedule", validateCronSchedule)

	return &Validator{validate: v}
}

// Struct validates a struct and returns FieldErrors on failure.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if stderrors.As(err, &invalid) {
		return fmt.Errorf("validator: %w", err)
	}

	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		out := make(FieldErrors, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, FieldError{
				Field:   strings.ToLower(fe.Field()),
				Message: messageFor(fe),
			})
		}
		return out
	}
	return err
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url", "http_url":
		return "must be a valid URL"
	case "severity":
		return "must be a known severity"
	case "local_status":
		return "must be a known workflow status"
	case "finding_type":
		return "must be a known finding type"
	case "component_key":
		return "must be a valid component key"
	case "cron_schedule":
		return "must be a valid cron expression"
	case "min":
		return "is below the minimum " + fe.Param()
	case "max":
		return "exceeds the maximum " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}

func validateSeverity(fl validator.FieldLevel) bool {
	return finding.Severity(fl.Field().String()).IsValid()
}

func validateLocalStatus(fl validator.FieldLevel) bool {
	return finding.LocalStatus(fl.Field().String()).IsValid()
}

func validateFindingType(fl validator.FieldLevel) bool {
	return finding.Type(fl.Field().String()).IsValid()
}

func validateComponentKey(fl validator.FieldLevel) bool {
	return componentKeyRegex.MatchString(fl.Field().String())
}

func validateCronSchedule(fl validator.FieldLevel) bool {
	return project.ValidateSchedule(fl.Field().String()) == nil
}
