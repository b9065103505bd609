// events-service is the HTTP relay that queues tracked events and delivers
// them to the configured sinks.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autotel/internal/api"
	"autotel/internal/config"
	"autotel/internal/health"
	"autotel/internal/ingest"
	"autotel/internal/observability"
	"autotel/internal/queue"
	kafkasink "autotel/internal/sink/kafka"
	"autotel/internal/sink/logging"
	"autotel/internal/sink/webhook"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load configuration
	svcCfg := config.LoadServiceConfig()
	queueCfg := queue.LoadConfigFromEnv()

	// Setup metrics
	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	// Build the configured sinks
	subscribers, err := buildSinks(svcCfg)
	if err != nil {
		return err
	}

	// Create the delivery queue
	eventQueue := queue.New(subscribers, queueCfg, metrics)

	// Create health checker
	healthChecker := health.NewChecker(eventQueue)

	// Create ingest service
	ingestService := ingest.NewService(eventQueue)

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		IngestService: ingestService,
		Queue:         eventQueue,
		Metrics:       metrics,
		HealthChecker: healthChecker,
		APIKey:        svcCfg.APIKey,
	})

	if svcCfg.APIKey != "" {
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled - no API_KEY configured")
	}

	// Create API server
	apiServer := &http.Server{
		Addr:         ":" + svcCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Create metrics server
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + svcCfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Channel to capture server errors
	serverErr := make(chan error, 1)

	// Start API server
	go func() {
		slog.Info("Starting API server", "port", svcCfg.Port)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Start metrics server
	go func() {
		slog.Info("Starting metrics server", "port", svcCfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// shutdown closes both servers gracefully
	shutdown := func(timeout time.Duration) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	// Wait for interrupt signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		slog.Error("Server failed to start", "error", err)
		shutdown(5 * time.Second)
		return err
	}

	// Phase 1: Mark service as unhealthy for load balancer draining
	healthChecker.SetShuttingDown()

	// Wait for load balancers to stop sending traffic
	if svcCfg.ShutdownDrainWait > 0 {
		slog.Info("Waiting for traffic to drain", "duration", svcCfg.ShutdownDrainWait)
		time.Sleep(svcCfg.ShutdownDrainWait)
	}

	// Phase 2: Graceful shutdown - stop accepting new connections, finish in-flight requests
	slog.Info("Starting graceful shutdown")
	shutdown(25 * time.Second)

	// Phase 3: Drain the event queue so buffered records reach their sinks
	slog.Info("Draining event queue")
	queueCtx, queueCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer queueCancel()
	if err := eventQueue.Shutdown(queueCtx); err != nil {
		slog.Warn("Queue shutdown error", "error", err)
	}

	// Log final queue stats
	stats := eventQueue.Stats()
	slog.Info("Queue stats",
		"enqueued", stats.Enqueued,
		"delivered", stats.Delivered,
		"failed", stats.Failed,
		"dropped", stats.Dropped,
		"rejected", stats.Rejected,
	)

	slog.Info("Shutdown complete")
	return nil
}

// buildSinks assembles the subscriber list from service configuration.
// With nothing configured the logging sink keeps deliveries observable.
func buildSinks(cfg *config.ServiceConfig) ([]queue.Subscriber, error) {
	var subs []queue.Subscriber

	if cfg.LoggingSink {
		subs = append(subs, logging.New())
	}

	if cfg.Webhook.Enabled() {
		subs = append(subs, webhook.New(webhook.Config{
			URL:        cfg.Webhook.URL,
			SigningKey: cfg.Webhook.SigningKey,
			Timeout:    cfg.Webhook.Timeout,
		}))
		slog.Info("Webhook sink enabled", "url", cfg.Webhook.URL)
	}

	if cfg.Kafka.Enabled() {
		sink, err := kafkasink.New(kafkasink.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		})
		if err != nil {
			return nil, err
		}
		subs = append(subs, sink)
	}

	if len(subs) == 0 {
		slog.Warn("No sinks configured, falling back to logging sink")
		subs = append(subs, logging.New())
	}

	return subs, nil
}
