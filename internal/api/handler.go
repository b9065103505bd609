// Package api provides the HTTP API handlers and routing for the events service.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"autotel/internal/apperrors"
	"autotel/internal/health"
	"autotel/internal/ingest"
	"autotel/internal/queue"
	"autotel/pkg/event"
)

// maxRequestBodySize limits request body to 1MB to prevent memory exhaustion
const maxRequestBodySize = 1 << 20 // 1 MB

// QueueAdmin exposes the queue state served by the admin endpoints.
type QueueAdmin interface {
	Stats() queue.Stats
	SubscriberStatuses() []queue.SubscriberStatus
	SetSubscriberHealth(id string, healthy bool) error
	TripCircuit(id string) error
	ResetCircuit(id string) error
}

// SubscribersResponse lists per-subscriber delivery state.
type SubscribersResponse struct {
	Subscribers []queue.SubscriberStatus `json:"subscribers"`
}

// healthOverrideRequest is the body of PUT /v1/subscribers/{subscriber}/health.
type healthOverrideRequest struct {
	Healthy *bool `json:"healthy"`
}

// Handler contains HTTP handlers for the events API
type Handler struct {
	svc    *ingest.Service
	queue  QueueAdmin
	health *health.Checker
}

// NewHandler creates a new API handler
func NewHandler(svc *ingest.Service, q QueueAdmin, healthChecker *health.Checker) *Handler {
	return &Handler{
		svc:    svc,
		queue:  q,
		health: healthChecker,
	}
}

// TrackEvent handles POST /v1/events.
// The correlation id comes from the body, then the X-Correlation-Id header,
// then a generated value. Acceptance means queued, not delivered.
func (h *Handler) TrackEvent(w http.ResponseWriter, r *http.Request) {
	// Limit request body size to prevent memory exhaustion
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req ingest.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.CorrelationID == "" {
		req.CorrelationID = event.CorrelationFromContext(r.Context())
	}

	resp, err := h.svc.Track(r.Context(), &req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, resp)
}

// ListSubscribers handles GET /v1/subscribers
func (h *Handler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, SubscribersResponse{
		Subscribers: h.queue.SubscriberStatuses(),
	})
}

// SetSubscriberHealth handles PUT /v1/subscribers/{subscriber}/health
func (h *Handler) SetSubscriberHealth(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("subscriber")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "Subscriber is required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req healthOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Healthy == nil {
		h.handleError(w, r, apperrors.Validation("healthy", "healthy is required"))
		return
	}

	if err := h.queue.SetSubscriberHealth(id, *req.Healthy); err != nil {
		h.handleSubscriberError(w, r, id, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TripCircuit handles POST /v1/subscribers/{subscriber}/circuit/trip
func (h *Handler) TripCircuit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("subscriber")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "Subscriber is required")
		return
	}

	if err := h.queue.TripCircuit(id); err != nil {
		h.handleSubscriberError(w, r, id, err)
		return
	}

	slog.Info("Circuit tripped manually", "subscriber", id)
	w.WriteHeader(http.StatusNoContent)
}

// ResetCircuit handles POST /v1/subscribers/{subscriber}/circuit/reset
func (h *Handler) ResetCircuit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("subscriber")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "Subscriber is required")
		return
	}

	if err := h.queue.ResetCircuit(id); err != nil {
		h.handleSubscriberError(w, r, id, err)
		return
	}

	slog.Info("Circuit reset manually", "subscriber", id)
	w.WriteHeader(http.StatusNoContent)
}

// GetStats handles GET /v1/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.queue.Stats())
}

// Livez handles GET /livez - liveness probe.
// Returns 200 if the process is alive. Does not check dependencies.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	response := h.health.Liveness(r.Context())
	h.writeJSON(w, http.StatusOK, response)
}

// Readyz handles GET /readyz - readiness probe.
// Returns 200 if the service is ready to accept traffic, including when
// delivery is degraded. Returns 503 once the queue stops accepting.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsReady() {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// handleError handles errors from service layer with appropriate HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		slog.Error("Internal error", "error", err, "path", r.URL.Path)
	} else {
		slog.Warn("Client error", "error", err, "path", r.URL.Path, "status", status)
	}
	h.writeError(w, status, err.Error())
}

// handleSubscriberError maps unknown subscriber ids to 404.
func (h *Handler) handleSubscriberError(w http.ResponseWriter, r *http.Request, id string, err error) {
	if errors.Is(err, queue.ErrUnknownSubscriber) {
		err = apperrors.NotFound("subscriber", id)
	}
	h.handleError(w, r, err)
}
