package orgs

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates a lookup miss. Handlers map it to 404; it is never
// conflated with backend failures.
var ErrNotFound = errors.New("organization not found")

// ErrBackendUnavailable indicates the backing store could not serve the
// request (connection refused, pool exhausted, query interrupted). Handlers
// map it to 503 without exposing driver detail.
var ErrBackendUnavailable = errors.New("backend unavailable")

// ValidationError reports a malformed or out-of-range request field. It is
// raised before any backend call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a field-level validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// backendErr wraps a driver error so callers can match ErrBackendUnavailable
// while logs keep the cause.
func backendErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrBackendUnavailable, err)
}
