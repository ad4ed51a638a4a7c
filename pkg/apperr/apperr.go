// Package apperr defines the error taxonomy shared by services and
// handlers: validation failures, authorization denials, missing
// records, and lost approve/reject races. Handlers map errors to HTTP
// status codes through Status instead of matching on message strings.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotFound indicates the referenced order does not exist.
	ErrNotFound = errors.New("order not found")

	// ErrAlreadyProcessed indicates a manager lost the approve/reject
	// race: another decision was committed first. Final for that order.
	ErrAlreadyProcessed = errors.New("order has already been processed by another manager")
)

// ForbiddenError is a role/state denial with the specific reason the
// access policy produced. Not retryable with the same actor and state.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string { return e.Reason }

// Forbidden wraps a denial reason as an error.
func Forbidden(reason string) error {
	return &ForbiddenError{Reason: reason}
}

// FieldError names a single violating input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violating field of a request so the
// caller can correct them all in one resubmission.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a violation for field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any violation was recorded.
func (e *ValidationError) HasErrors() bool { return len(e.Fields) > 0 }

// Status maps an error to its HTTP status code.
func Status(err error) int {
	var ve *ValidationError
	var fe *ForbiddenError
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.As(err, &fe):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyProcessed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
