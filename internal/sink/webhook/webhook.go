// Package webhook delivers event records to an HTTP endpoint as CloudEvents.
package webhook

import (
	"context"
	"fmt"
	"time"

	"autotel/internal/queue"
	"autotel/pkg/cloudevent"
	"autotel/pkg/event"
)

// CloudEvent types emitted per record kind.
const (
	TypeEvent      = "autotel.track.event"
	TypeFunnelStep = "autotel.track.funnel_step"
	TypeOutcome    = "autotel.track.outcome"
	TypeValue      = "autotel.track.value"
)

const defaultSource = "autotel/events-service"

// Config holds webhook sink configuration.
type Config struct {
	URL        string        // destination endpoint
	Source     string        // CloudEvents source (default: "autotel/events-service")
	SigningKey string        // HMAC key for signing, empty = no signing
	Timeout    time.Duration // per-request timeout (default: 10s)
}

// Sink posts each tracked record to a webhook endpoint as a CloudEvents 1.0
// envelope, signed when a key is configured. 4xx responses are permanent
// failures; everything else is retryable.
type Sink struct {
	sender *cloudevent.Sender
	config Config
}

// New creates a webhook sink.
func New(cfg Config) *Sink {
	if cfg.Source == "" {
		cfg.Source = defaultSource
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Sink{
		sender: cloudevent.NewSender(cfg.Timeout),
		config: cfg,
	}
}

// Name returns the sink's identity.
func (s *Sink) Name() string { return "webhook" }

func (s *Sink) TrackEvent(ctx context.Context, name string, attrs map[string]any) error {
	data := map[string]any{"name": name}
	if attrs != nil {
		data["attributes"] = attrs
	}
	return s.send(ctx, TypeEvent, name, data)
}

func (s *Sink) TrackFunnelStep(ctx context.Context, funnel, step string, attrs map[string]any) error {
	data := map[string]any{"funnel": funnel, "step": step}
	if attrs != nil {
		data["attributes"] = attrs
	}
	return s.send(ctx, TypeFunnelStep, funnel, data)
}

func (s *Sink) TrackOutcome(ctx context.Context, name string, success bool, attrs map[string]any) error {
	data := map[string]any{"name": name, "success": success}
	if attrs != nil {
		data["attributes"] = attrs
	}
	return s.send(ctx, TypeOutcome, name, data)
}

func (s *Sink) TrackValue(ctx context.Context, name string, value float64, attrs map[string]any) error {
	data := map[string]any{"name": name, "value": value}
	if attrs != nil {
		data["attributes"] = attrs
	}
	return s.send(ctx, TypeValue, name, data)
}

func (s *Sink) send(ctx context.Context, eventType, subject string, data map[string]any) error {
	id := fmt.Sprintf("%s-%d", subject, time.Now().UnixNano())
	ce := cloudevent.New(eventType, s.config.Source, subject, id, data)
	ce.CorrelationID = event.CorrelationFromContext(ctx)

	err := s.sender.Send(ctx, s.config.URL, ce, cloudevent.SendOptions{SigningKey: s.config.SigningKey})
	if err == nil {
		return nil
	}
	if cloudevent.IsClientError(err) {
		// The endpoint rejected the payload; retrying cannot change that.
		return queue.Permanent(err)
	}
	return err
}

// Verify Sink implements the subscriber contract
var (
	_ queue.Subscriber = (*Sink)(nil)
	_ queue.Named      = (*Sink)(nil)
)
