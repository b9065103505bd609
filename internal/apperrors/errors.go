// Package apperrors classifies service errors and maps them to HTTP status
// codes. Handlers branch on the sentinel, never on message text.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels for classification via errors.Is(). Anything unclassified maps
// to an internal server error.
var (
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("unavailable")
)

// Error carries a classification sentinel plus the context the API surface
// reports back to callers.
type Error struct {
	Sentinel error  // wrapped sentinel for errors.Is()
	Message  string // human-readable message returned to the caller
	Field    string // offending request field for validation errors
	Resource string // resource for not found/unavailable (e.g. "subscriber")
}

// Error returns the human-readable message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel so errors.Is() classification works through
// any amount of %w wrapping.
func (e *Error) Unwrap() error {
	return e.Sentinel
}

// Validation flags a bad request field, such as a track request with no name.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// NotFound flags a lookup of something that is not configured, such as an
// unknown subscriber id.
func NotFound(resource, id string) error {
	return &Error{
		Sentinel: ErrNotFound,
		Message:  fmt.Sprintf("%s %s not found", resource, id),
		Resource: resource,
	}
}

// Unavailable flags a resource that is not accepting work, such as a queue
// that has shut down.
func Unavailable(resource, reason string) error {
	return &Error{
		Sentinel: ErrUnavailable,
		Message:  reason,
		Resource: resource,
	}
}

// HTTPStatus maps an error to the status code the API returns for it.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
