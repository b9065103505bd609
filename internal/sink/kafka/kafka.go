// Package kafka publishes event records to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"autotel/internal/queue"
	"autotel/pkg/event"
)

// Config holds Kafka sink configuration.
type Config struct {
	Brokers      []string      // broker addresses, at least one
	Topic        string        // destination topic
	WriteTimeout time.Duration // per-write timeout (default: 10s)
}

// Sink publishes each tracked record to a Kafka topic as a JSON message.
// Messages are keyed by correlation id so records from the same flow land
// on the same partition.
type Sink struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// message is the wire payload published per record. Success and Value are
// pointers so a false outcome still serializes while other kinds omit them.
type message struct {
	Kind          event.Kind     `json:"kind"`
	Name          string         `json:"name"`
	Step          string         `json:"step,omitempty"`
	Success       *bool          `json:"success,omitempty"`
	Value         *float64       `json:"value,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	CorrelationID string         `json:"correlationId,omitempty"`
}

// New creates a Kafka sink. The writer connects lazily on first write.
func New(cfg Config) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("topic is required")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireAll,
	}

	logger := slog.With("component", "kafka-sink")
	logger.Info("Kafka sink configured", "brokers", cfg.Brokers, "topic", cfg.Topic)

	return &Sink{
		writer: writer,
		logger: logger,
	}, nil
}

// Name returns the sink's identity.
func (s *Sink) Name() string { return "kafka" }

func (s *Sink) TrackEvent(ctx context.Context, name string, attrs map[string]any) error {
	return s.publish(ctx, message{Kind: event.KindEvent, Name: name, Attributes: attrs})
}

func (s *Sink) TrackFunnelStep(ctx context.Context, funnel, step string, attrs map[string]any) error {
	return s.publish(ctx, message{Kind: event.KindFunnelStep, Name: funnel, Step: step, Attributes: attrs})
}

func (s *Sink) TrackOutcome(ctx context.Context, name string, success bool, attrs map[string]any) error {
	return s.publish(ctx, message{Kind: event.KindOutcome, Name: name, Success: &success, Attributes: attrs})
}

func (s *Sink) TrackValue(ctx context.Context, name string, value float64, attrs map[string]any) error {
	return s.publish(ctx, message{Kind: event.KindValue, Name: name, Value: &value, Attributes: attrs})
}

func (s *Sink) publish(ctx context.Context, m message) error {
	m.Timestamp = time.Now().UTC()
	m.CorrelationID = event.CorrelationFromContext(ctx)

	value, err := json.Marshal(m)
	if err != nil {
		// A payload that fails to marshal will never succeed on retry.
		return queue.Permanent(err)
	}

	key := m.CorrelationID
	if key == "" {
		key = m.Name
	}

	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  m.Timestamp,
	})
}

// Shutdown closes the writer, flushing any buffered messages.
func (s *Sink) Shutdown(ctx context.Context) error {
	s.logger.Info("Closing Kafka writer")

	done := make(chan error, 1)
	go func() {
		done <- s.writer.Close()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Verify Sink implements the subscriber contract
var (
	_ queue.Subscriber = (*Sink)(nil)
	_ queue.Named      = (*Sink)(nil)
	_ queue.Shutdowner = (*Sink)(nil)
)
