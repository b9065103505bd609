// Package ingest validates track requests and feeds them to the queue.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"autotel/internal/apperrors"
	"autotel/pkg/event"
)

// Validation limits
const (
	maxNameLength          = 256
	maxStepLength          = 256
	maxCorrelationIDLength = 128
	maxAttrEntries         = 32
	maxAttrKeyLength       = 64
	maxAttrStringLength    = 1024
)

// Queue accepts records for asynchronous delivery.
type Queue interface {
	Enqueue(rec event.Record)
	Accepting() bool
}

// Service turns track requests into queued records.
//
// The Service is stateless - requests are validated, stamped with a
// correlation id and handed to the queue.
type Service struct {
	queue Queue
}

// NewService creates a new ingest service.
func NewService(queue Queue) *Service {
	return &Service{queue: queue}
}

// Track validates a request and enqueues the resulting record.
// Note: This method applies defaults to the request before validation.
func (s *Service) Track(ctx context.Context, req *Request) (*Response, error) {
	applyDefaults(req)
	if err := validate(req); err != nil {
		return nil, err
	}

	if !s.queue.Accepting() {
		return nil, apperrors.Unavailable("queue", "service is shutting down")
	}

	s.queue.Enqueue(req.toRecord())

	slog.DebugContext(ctx, "Event accepted",
		"kind", req.Kind,
		"name", req.Name,
		"correlation_id", req.CorrelationID,
	)

	return &Response{
		Status:        StatusAccepted,
		CorrelationID: req.CorrelationID,
	}, nil
}

// applyDefaults sets default values for unspecified request fields.
func applyDefaults(req *Request) {
	if req.Kind == "" {
		req.Kind = string(event.KindEvent)
	}
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
}

// validate validates a track request. Does not modify the request.
func validate(req *Request) error {
	kind := event.Kind(req.Kind)
	if !kind.Valid() {
		return apperrors.Validation("kind", fmt.Sprintf("unknown kind %q", req.Kind))
	}

	if req.Name == "" {
		return apperrors.Validation("name", "event name is required")
	}
	if len(req.Name) > maxNameLength {
		return apperrors.Validation("name", fmt.Sprintf("name exceeds maximum length of %d", maxNameLength))
	}

	switch kind {
	case event.KindFunnelStep:
		if req.Step == "" {
			return apperrors.Validation("step", "step is required for funnel_step records")
		}
		if len(req.Step) > maxStepLength {
			return apperrors.Validation("step", fmt.Sprintf("step exceeds maximum length of %d", maxStepLength))
		}
	case event.KindOutcome:
		if req.Success == nil {
			return apperrors.Validation("success", "success is required for outcome records")
		}
	case event.KindValue:
		if req.Value == nil {
			return apperrors.Validation("value", "value is required for value records")
		}
	}

	if len(req.CorrelationID) > maxCorrelationIDLength {
		return apperrors.Validation("correlationId", fmt.Sprintf("correlation id exceeds maximum length of %d", maxCorrelationIDLength))
	}

	// Validate attributes
	if len(req.Attributes) > maxAttrEntries {
		return apperrors.Validation("attributes", fmt.Sprintf("attributes exceed maximum of %d entries", maxAttrEntries))
	}
	for k, v := range req.Attributes {
		if len(k) > maxAttrKeyLength {
			return apperrors.Validation("attributes", fmt.Sprintf("attribute key exceeds maximum length of %d", maxAttrKeyLength))
		}
		if s, ok := v.(string); ok && len(s) > maxAttrStringLength {
			return apperrors.Validation("attributes", fmt.Sprintf("attribute %q exceeds maximum length of %d", k, maxAttrStringLength))
		}
	}
	if err := event.ValidateAttributes(req.Attributes); err != nil {
		return apperrors.Validation("attributes", err.Error())
	}

	return nil
}

// toRecord converts a validated request into a queue record.
func (r *Request) toRecord() event.Record {
	var rec event.Record
	switch event.Kind(r.Kind) {
	case event.KindFunnelStep:
		rec = event.NewFunnelStep(r.Name, r.Step, r.Attributes)
	case event.KindOutcome:
		rec = event.NewOutcome(r.Name, *r.Success, r.Attributes)
	case event.KindValue:
		rec = event.NewValue(r.Name, *r.Value, r.Attributes)
	default:
		rec = event.New(r.Name, r.Attributes)
	}
	if r.Timestamp != nil {
		rec.Timestamp = r.Timestamp.UTC()
	}
	rec.CorrelationID = r.CorrelationID
	return rec
}
