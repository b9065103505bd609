package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestValidation(t *testing.T) {
	t.Parallel()
	err := Validation("name", "event name is required")

	if !errors.Is(err, ErrValidation) {
		t.Error("expected error to match ErrValidation")
	}
	if err.Error() != "event name is required" {
		t.Errorf("expected message 'event name is required', got %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Field != "name" {
		t.Errorf("expected field 'name', got %q", appErr.Field)
	}
}

func TestNotFound(t *testing.T) {
	t.Parallel()
	err := NotFound("subscriber", "webhook")

	if !errors.Is(err, ErrNotFound) {
		t.Error("expected error to match ErrNotFound")
	}
	if err.Error() != "subscriber webhook not found" {
		t.Errorf("expected message 'subscriber webhook not found', got %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Resource != "subscriber" {
		t.Errorf("expected resource 'subscriber', got %q", appErr.Resource)
	}
}

func TestUnavailable(t *testing.T) {
	t.Parallel()
	err := Unavailable("queue", "queue is shutting down")

	if !errors.Is(err, ErrUnavailable) {
		t.Error("expected error to match ErrUnavailable")
	}
	if err.Error() != "queue is shutting down" {
		t.Errorf("expected message 'queue is shutting down', got %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Resource != "queue" {
		t.Errorf("expected resource 'queue', got %q", appErr.Resource)
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", Validation("name", "required"), http.StatusBadRequest},
		{"not found", NotFound("subscriber", "kafka"), http.StatusNotFound},
		{"unavailable", Unavailable("queue", "shutting down"), http.StatusServiceUnavailable},
		{"sentinel validation", ErrValidation, http.StatusBadRequest},
		{"sentinel not found", ErrNotFound, http.StatusNotFound},
		{"sentinel unavailable", ErrUnavailable, http.StatusServiceUnavailable},
		{"wrapped validation", fmt.Errorf("wrap: %w", Validation("f", "m")), http.StatusBadRequest},
		{"unclassified error", fmt.Errorf("broker unreachable"), http.StatusInternalServerError},
		{"nil error", nil, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := HTTPStatus(tt.err)
			if got != tt.expected {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestErrorsIsWithWrapping(t *testing.T) {
	t.Parallel()
	original := Unavailable("queue", "shutting down")
	wrapped := fmt.Errorf("track: %w", original)
	doubleWrapped := fmt.Errorf("handler: %w", wrapped)

	if !errors.Is(doubleWrapped, ErrUnavailable) {
		t.Error("expected errors.Is to find ErrUnavailable through multiple wraps")
	}
	if HTTPStatus(doubleWrapped) != http.StatusServiceUnavailable {
		t.Error("expected wrapped unavailable to map to 503")
	}
}
