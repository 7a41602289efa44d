// Package validation provides struct validation using go-playground/validator v10.
// A single validator instance is shared by the application. It carries the
// custom "bench" tag, which only accepts members of the configured bench
// enumeration, and "notblank", which rejects whitespace-only strings.
//
// Example usage:
//
//	type CheckInRequest struct {
//	    Benches []models.Bench `json:"benches" validate:"required,min=1,dive,bench"`
//	    TimeOut string         `json:"timeOut" validate:"required"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    ...
//	}
package validation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/navikt/benchroom/internal/models"
)

// ErrorCode is the API error code used for every validation failure
const ErrorCode = "VALIDATION_ERROR"

// singleton validator instance
var (
	validate     *validator.Validate
	validateOnce sync.Once

	defaultBenches = NewBenchSet(models.DefaultBenches)
)

// ValidationError represents a single field validation error
type ValidationError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

// Field returns the name of the field that failed validation
func (e *ValidationError) Field() string {
	return e.field
}

// Tag returns the validation tag that failed
func (e *ValidationError) Tag() string {
	return e.tag
}

// Param returns the parameter of the failed tag, e.g. "1" for "min=1"
func (e *ValidationError) Param() string {
	return e.param
}

// Value returns the value that failed validation
func (e *ValidationError) Value() interface{} {
	return e.value
}

// Error returns a human-readable error message
func (e *ValidationError) Error() string {
	return e.message
}

// RequestValidationError collects every field error of one request
type RequestValidationError struct {
	errors []ValidationError
}

// NewRequestValidationError builds an error for a single field outside struct validation
func NewRequestValidationError(field, tag, message string) *RequestValidationError {
	return &RequestValidationError{errors: []ValidationError{{field: field, tag: tag, message: message}}}
}

// Errors returns the individual field errors
func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

// Error implements the error interface, returning a combined error message
func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}

	messages := make([]string, 0, len(ve.errors))
	for _, err := range ve.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// APIError is the JSON error body returned for rejected requests
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ToAPIError converts validation errors to the API error format
func (ve *RequestValidationError) ToAPIError() *APIError {
	if len(ve.errors) == 0 {
		return &APIError{
			Code:    ErrorCode,
			Message: "Validation failed",
		}
	}

	// Single error - use simple message
	if len(ve.errors) == 1 {
		err := ve.errors[0]
		return &APIError{
			Code:    ErrorCode,
			Message: err.message,
			Details: map[string]interface{}{
				"field": err.field,
				"tag":   err.tag,
			},
		}
	}

	fields := make([]map[string]interface{}, len(ve.errors))
	messages := make([]string, len(ve.errors))
	for i, err := range ve.errors {
		fields[i] = map[string]interface{}{
			"field":   err.field,
			"tag":     err.tag,
			"message": err.message,
		}
		messages[i] = err.message
	}

	return &APIError{
		Code:    ErrorCode,
		Message: strings.Join(messages, "; "),
		Details: map[string]interface{}{
			"fields": fields,
		},
	}
}

// BenchSet is the enumeration accepted by the "bench" tag
type BenchSet map[models.Bench]struct{}

// NewBenchSet builds a BenchSet from an ordered enumeration
func NewBenchSet(enumeration []models.Bench) BenchSet {
	set := make(BenchSet, len(enumeration))
	for _, b := range enumeration {
		set[b] = struct{}{}
	}
	return set
}

// Contains reports whether bench belongs to the set
func (s BenchSet) Contains(bench models.Bench) bool {
	_, ok := s[bench]
	return ok
}

type benchSetKey struct{}

// WithBenches returns a context under which the "bench" tag accepts only members of set
func WithBenches(ctx context.Context, set BenchSet) context.Context {
	return context.WithValue(ctx, benchSetKey{}, set)
}

// benchesFromContext falls back to the default enumeration when ctx carries none
func benchesFromContext(ctx context.Context) BenchSet {
	if set, ok := ctx.Value(benchSetKey{}).(BenchSet); ok {
		return set
	}
	return defaultBenches
}

// GetValidator returns the shared validator instance
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report JSON field names so messages match the request body
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		_ = validate.RegisterValidationCtx("bench", func(ctx context.Context, fl validator.FieldLevel) bool {
			return benchesFromContext(ctx).Contains(models.Bench(fl.Field().String()))
		})
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})

	return validate
}

// ValidateStruct validates s against the default bench enumeration
func ValidateStruct(s interface{}) *RequestValidationError {
	return ValidateStructCtx(context.Background(), s)
}

// ValidateStructCtx validates s and returns nil or the collected field errors.
// The "bench" tag uses the enumeration attached with WithBenches.
func ValidateStructCtx(ctx context.Context, s interface{}) *RequestValidationError {
	err := GetValidator().StructCtx(ctx, s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return NewRequestValidationError("unknown", "unknown", err.Error())
	}

	fieldErrors := make([]ValidationError, len(validationErrs))
	for i, fieldErr := range validationErrs {
		fieldErrors[i] = ValidationError{
			field:   fieldErr.Field(),
			tag:     fieldErr.Tag(),
			param:   fieldErr.Param(),
			value:   fieldErr.Value(),
			message: translateError(fieldErr),
		}
	}

	return &RequestValidationError{errors: fieldErrors}
}

// errorMessageTemplates maps validation tags to message templates
var errorMessageTemplates = map[string]string{
	"required": "%s is required",
	"notblank": "%s must not be blank",
	"bench":    "%s is not a known bench",
}

// translateError converts a validator.FieldError to a human-readable message
func translateError(fe validator.FieldError) string {
	field := fe.Field()

	if template, ok := errorMessageTemplates[fe.Tag()]; ok {
		if fe.Tag() == "bench" {
			return fmt.Sprintf(template+" (%v)", field, fe.Value())
		}
		return fmt.Sprintf(template, field)
	}

	switch fe.Tag() {
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
