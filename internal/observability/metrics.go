package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"autotel/internal/queue"
)

// Metrics holds all application metrics implementing the golden 4 signals:
// - Latency: How long requests/deliveries take
// - Traffic: Request/delivery throughput
// - Errors: Rate of failures and drops
// - Saturation: Queue depth
type Metrics struct {
	meter metric.Meter

	// HTTP metrics (Latency, Traffic, Errors)
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	// Queue delivery metrics (Latency, Traffic, Errors, Saturation)
	QueueDelivered metric.Int64Counter
	QueueFailed    metric.Int64Counter
	QueueLatency   metric.Float64Histogram
	QueueDropped   metric.Int64Counter
	QueueSize      metric.Int64Gauge
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("autotel")
	m := &Metrics{meter: meter}

	// HTTP metrics
	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Queue delivery metrics
	m.QueueDelivered, err = meter.Int64Counter(
		"autotel.event_delivery.queue.delivered",
		metric.WithDescription("Total events successfully delivered per subscriber"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.QueueFailed, err = meter.Int64Counter(
		"autotel.event_delivery.queue.failed",
		metric.WithDescription("Total events that failed delivery per subscriber"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.QueueLatency, err = meter.Float64Histogram(
		"autotel.event_delivery.queue.latency_ms",
		metric.WithDescription("Delivery latency per subscriber in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000),
	)
	if err != nil {
		return nil, nil, err
	}

	m.QueueDropped, err = meter.Int64Counter(
		"autotel.event_delivery.queue.dropped",
		metric.WithDescription("Total events dropped (backpressure) or rejected (shutdown)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.QueueSize, err = meter.Int64Gauge(
		"autotel.event_delivery.queue.size",
		metric.WithDescription("Current number of buffered events (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		pathAttr(path),
		statusAttr(statusCode),
	)

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordDelivered records a successful delivery to a subscriber.
func (m *Metrics) RecordDelivered(ctx context.Context, subscriber string) {
	m.QueueDelivered.Add(ctx, 1, metric.WithAttributes(subscriberAttr(subscriber)))
}

// RecordFailed records terminal delivery failures for a subscriber.
func (m *Metrics) RecordFailed(ctx context.Context, subscriber string, count int64) {
	m.QueueFailed.Add(ctx, count, metric.WithAttributes(subscriberAttr(subscriber)))
}

// RecordDeliveryLatency records one delivery's latency in milliseconds.
func (m *Metrics) RecordDeliveryLatency(ctx context.Context, subscriber string, ms float64) {
	m.QueueLatency.Record(ctx, ms, metric.WithAttributes(subscriberAttr(subscriber)))
}

// RecordDropped records a dropped or rejected event.
func (m *Metrics) RecordDropped(ctx context.Context, reason string) {
	m.QueueDropped.Add(ctx, 1, metric.WithAttributes(reasonAttr(reason)))
}

// RecordQueueSize records the current queue depth.
func (m *Metrics) RecordQueueSize(ctx context.Context, size int64) {
	m.QueueSize.Record(ctx, size)
}

// Verify Metrics satisfies the queue's recorder interface
var _ queue.MetricsRecorder = (*Metrics)(nil)
