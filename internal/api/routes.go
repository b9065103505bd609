package api

import (
	"net/http"

	"autotel/internal/health"
	"autotel/internal/ingest"
	"autotel/internal/observability"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	IngestService *ingest.Service
	Queue         QueueAdmin
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
	APIKey        string
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.IngestService, cfg.Queue, cfg.HealthChecker)

	mux := http.NewServeMux()

	// Health check endpoints (liveness/readiness probes) - no auth required
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	// Event and subscriber endpoints - auth required
	authMiddleware := AuthMiddleware(cfg.APIKey)
	mux.Handle("POST /v1/events", authMiddleware(http.HandlerFunc(handler.TrackEvent)))
	mux.Handle("GET /v1/subscribers", authMiddleware(http.HandlerFunc(handler.ListSubscribers)))
	mux.Handle("PUT /v1/subscribers/{subscriber}/health", authMiddleware(http.HandlerFunc(handler.SetSubscriberHealth)))
	mux.Handle("POST /v1/subscribers/{subscriber}/circuit/trip", authMiddleware(http.HandlerFunc(handler.TripCircuit)))
	mux.Handle("POST /v1/subscribers/{subscriber}/circuit/reset", authMiddleware(http.HandlerFunc(handler.ResetCircuit)))
	mux.Handle("GET /v1/stats", authMiddleware(http.HandlerFunc(handler.GetStats)))

	// Wrap innermost first. Correlation sits outside logging so request
	// logs see the correlation id.
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	h = CORSMiddleware()(h)
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = CorrelationMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}
