package cloudevent

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestSend_Headers(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		headers = r.Header.Clone()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	event := New("autotel.track.event", "autotel/events-service", "signup", "evt-1", map[string]any{"plan": "pro"})
	event.CorrelationID = "corr-7"

	sender := NewSender(5 * time.Second)
	err := sender.Send(context.Background(), server.URL, event, SendOptions{SigningKey: "secret"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got := headers.Get("Content-Type"); got != "application/cloudevents+json" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := headers.Get("Ce-Type"); got != "autotel.track.event" {
		t.Errorf("Ce-Type = %q", got)
	}
	if got := headers.Get("Ce-Correlationid"); got != "corr-7" {
		t.Errorf("Ce-Correlationid = %q", got)
	}
	sig := headers.Get("X-Signature-256")
	if len(sig) < 7 || sig[:7] != "sha256=" {
		t.Errorf("unexpected signature format: %q", sig)
	}
}

func TestSend_UnsignedWithoutKey(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		headers = r.Header.Clone()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewSender(5 * time.Second)
	err := sender.Send(context.Background(), server.URL, New("t", "s", "sub", "id", nil), SendOptions{})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got := headers.Get("X-Signature-256"); got != "" {
		t.Errorf("expected unsigned request, got signature %q", got)
	}
}

func TestSend_ErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sender := NewSender(5 * time.Second)
	err := sender.Send(context.Background(), server.URL, New("t", "s", "sub", "id", nil), SendOptions{})
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	if IsClientError(err) {
		t.Error("502 should not be a client error")
	}
}

func TestHTTPError_Error(t *testing.T) {
	t.Parallel()
	tests := []struct {
		statusCode int
		expected   string
	}{
		{400, "HTTP 400"},
		{404, "HTTP 404"},
		{500, "HTTP 500"},
		{503, "HTTP 503"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			t.Parallel()
			err := &HTTPError{StatusCode: tt.statusCode}
			if err.Error() != tt.expected {
				t.Errorf("HTTPError{%d}.Error() = %q, want %q", tt.statusCode, err.Error(), tt.expected)
			}
		})
	}
}

func TestIsClientError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "400 Bad Request",
			err:      &HTTPError{StatusCode: 400},
			expected: true,
		},
		{
			name:     "401 Unauthorized",
			err:      &HTTPError{StatusCode: 401},
			expected: true,
		},
		{
			name:     "404 Not Found",
			err:      &HTTPError{StatusCode: 404},
			expected: true,
		},
		{
			name:     "499 client error boundary",
			err:      &HTTPError{StatusCode: 499},
			expected: true,
		},
		{
			name:     "500 Internal Server Error",
			err:      &HTTPError{StatusCode: 500},
			expected: false,
		},
		{
			name:     "wrapped 404",
			err:      fmt.Errorf("delivery: %w", &HTTPError{StatusCode: 404}),
			expected: true,
		},
		{
			name:     "399 not a client error",
			err:      &HTTPError{StatusCode: 399},
			expected: false,
		},
		{
			name:     "non-HTTP error",
			err:      context.DeadlineExceeded,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := IsClientError(tt.err)
			if got != tt.expected {
				t.Errorf("IsClientError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestSign(t *testing.T) {
	t.Parallel()
	payload := []byte(`{"test":"data"}`)

	got := sign(payload, "secret-key")
	if len(got) < 7 || got[:7] != "sha256=" {
		t.Errorf("signature should start with 'sha256=', got %q", got)
	}
	// SHA256 = 32 bytes = 64 hex chars
	if hexPart := got[7:]; len(hexPart) != 64 {
		t.Errorf("signature hex part should be 64 chars, got %d", len(hexPart))
	}
	if got != sign(payload, "secret-key") {
		t.Error("signing should be deterministic")
	}
	if got == sign(payload, "other-key") {
		t.Error("different keys should produce different signatures")
	}
}

func TestHeaders_CorrelationOptional(t *testing.T) {
	t.Parallel()
	event := New("autotel.track.event", "autotel/events-service", "signup", "evt-1", nil)

	h := event.Headers()
	if _, ok := h["Ce-Correlationid"]; ok {
		t.Error("expected no correlation header without a correlation id")
	}
	if h["Ce-Id"] != "evt-1" {
		t.Errorf("Ce-Id = %q, want evt-1", h["Ce-Id"])
	}

	event.CorrelationID = "corr-9"
	if got := event.Headers()["Ce-Correlationid"]; got != "corr-9" {
		t.Errorf("Ce-Correlationid = %q, want corr-9", got)
	}
}
