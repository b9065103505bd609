package queue

import (
	"context"
	"fmt"
	"strings"

	"autotel/pkg/event"
)

// Subscriber receives tracked events. Implementations wrap analytics
// backends, message brokers or webhooks.
//
// Track calls must be safe for concurrent use; the queue delivers to each
// subscriber from its own goroutine. Returned errors are retried unless
// wrapped with Permanent.
type Subscriber interface {
	TrackEvent(ctx context.Context, name string, attrs map[string]any) error
	TrackFunnelStep(ctx context.Context, funnel, step string, attrs map[string]any) error
	TrackOutcome(ctx context.Context, name string, success bool, attrs map[string]any) error
	TrackValue(ctx context.Context, name string, value float64, attrs map[string]any) error
}

// Named is an optional interface for subscribers that declare their own
// identity. Identities key circuit breakers, health state and metric tags.
type Named interface {
	Name() string
}

// Shutdowner is an optional interface for subscribers that hold resources.
// The queue calls Shutdown once, after the final drain.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// identify resolves a subscriber's identity: its lowercased declared name,
// or a positional fallback for anonymous subscribers. taken holds identities
// already assigned, so duplicates get a positional suffix and never share a
// breaker.
func identify(sub Subscriber, index int, taken map[string]bool) string {
	id := fmt.Sprintf("subscriber-%d", index)
	if n, ok := sub.(Named); ok {
		if name := strings.ToLower(strings.TrimSpace(n.Name())); name != "" {
			id = name
		}
	}
	if taken[id] {
		id = fmt.Sprintf("%s-%d", id, index)
	}
	taken[id] = true
	return id
}

// deliver routes a record to the track call matching its kind. The record's
// correlation id travels on the context.
func deliver(ctx context.Context, sub Subscriber, rec event.Record) error {
	ctx = event.ContextWithCorrelation(ctx, rec.CorrelationID)
	switch rec.Kind {
	case event.KindFunnelStep:
		return sub.TrackFunnelStep(ctx, rec.Name, rec.Step, rec.Attributes)
	case event.KindOutcome:
		return sub.TrackOutcome(ctx, rec.Name, rec.Success, rec.Attributes)
	case event.KindValue:
		return sub.TrackValue(ctx, rec.Name, rec.Value, rec.Attributes)
	default:
		return sub.TrackEvent(ctx, rec.Name, rec.Attributes)
	}
}
