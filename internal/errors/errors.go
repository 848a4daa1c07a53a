// LOCATION: internal/errors/errors.go
//
// This file provides:
// - Sentinel errors for all error conditions of the engine and its hosts
// - Error category checking functions
// - HTTPStatus mapping for the query surface

package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ============================================================================
// Sentinel errors for common conditions
// ============================================================================

var (
	// Not found errors
	ErrNotFound       = errors.New("not found")
	ErrPeriodNotFound = errors.New("aggregation period not found")
	ErrModeNotFound   = errors.New("presentation mode not found")

	// Configuration errors (fail fast, never retried)
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrInvalidCapacity = errors.New("invalid capacity")
	ErrInvalidWidth    = errors.New("invalid bucket width")
	ErrInvalidDensity  = errors.New("invalid target density")
	ErrInvalidInterval = errors.New("invalid interval")
	ErrMissingField    = errors.New("missing required field")

	// Request errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrRateLimited    = errors.New("too many failed attempts")

	// State errors
	ErrAlreadyRunning = errors.New("already running")
	ErrNotRunning     = errors.New("not running")

	// Source errors (transient generation failures)
	ErrSourceFailed     = errors.New("sample source failed")
	ErrSourceExhausted  = errors.New("sample source exhausted")
	ErrTimeout          = errors.New("timeout")
	ErrConnectionFailed = errors.New("connection failed")

	// Internal errors
	ErrInternal     = errors.New("internal error")
	ErrExportFailed = errors.New("export failed")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// Join is a convenience wrapper for errors.Join
var Join = errors.Join

// New is a convenience wrapper for errors.New
var New = errors.New

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPeriodNotFound) ||
		errors.Is(err, ErrModeNotFound)
}

// IsConfiguration returns true if err is a configuration error.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrInvalidCapacity) ||
		errors.Is(err, ErrInvalidWidth) ||
		errors.Is(err, ErrInvalidDensity) ||
		errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrMissingField)
}

// IsRetriable returns true if the error is potentially retriable.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrSourceFailed) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConnectionFailed)
}

// ============================================================================
// Error to HTTP status mapping
// ============================================================================

// HTTPStatus maps an error to the status code the query surface returns.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidRequest), IsConfiguration(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrNotRunning):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case IsRetriable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// NewInvalidValue creates an invalid value error.
func NewInvalidValue(field string, value interface{}, reason string) error {
	return fmt.Errorf("invalid %s '%v': %s: %w", field, value, reason, ErrInvalidConfig)
}

// NewBadRequest creates a request error for the query surface.
func NewBadRequest(param, reason string) error {
	return fmt.Errorf("parameter %s: %s: %w", param, reason, ErrInvalidRequest)
}

// ============================================================================
// Validation Errors Collection
// ============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, NewValidation(field, reason))
}

// AddMissing adds a missing field error.
func (v *ValidationErrors) AddMissing(field string) {
	v.Errors = append(v.Errors, NewMissingField(field))
}

// HasErrors returns true if there are any errors.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap returns the collected errors for errors.Is/As support.
func (v *ValidationErrors) Unwrap() []error {
	return v.Errors
}
