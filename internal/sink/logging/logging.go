// Package logging provides a sink that writes every record to the service log.
package logging

import (
	"context"
	"log/slog"

	"autotel/internal/queue"
	"autotel/pkg/event"
)

// Sink logs every tracked record and never fails. It serves as a development
// destination and as a low-cost mirror of queue traffic in production.
type Sink struct {
	logger *slog.Logger
}

// New creates a logging sink.
func New() *Sink {
	return &Sink{logger: slog.With("component", "logging-sink")}
}

// Name returns the sink's identity.
func (s *Sink) Name() string { return "logging" }

func (s *Sink) TrackEvent(ctx context.Context, name string, attrs map[string]any) error {
	return s.emit(ctx, "Event tracked", "name", name, "attributes", attrs)
}

func (s *Sink) TrackFunnelStep(ctx context.Context, funnel, step string, attrs map[string]any) error {
	return s.emit(ctx, "Funnel step tracked", "funnel", funnel, "step", step, "attributes", attrs)
}

func (s *Sink) TrackOutcome(ctx context.Context, name string, success bool, attrs map[string]any) error {
	return s.emit(ctx, "Outcome tracked", "name", name, "success", success, "attributes", attrs)
}

func (s *Sink) TrackValue(ctx context.Context, name string, value float64, attrs map[string]any) error {
	return s.emit(ctx, "Value tracked", "name", name, "value", value, "attributes", attrs)
}

func (s *Sink) emit(ctx context.Context, msg string, args ...any) error {
	if corr := event.CorrelationFromContext(ctx); corr != "" {
		args = append(args, "correlation_id", corr)
	}
	s.logger.InfoContext(ctx, msg, args...)
	return nil
}

// Verify Sink implements the subscriber contract
var (
	_ queue.Subscriber = (*Sink)(nil)
	_ queue.Named      = (*Sink)(nil)
)
