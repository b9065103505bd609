// Package queue provides a bounded in-memory event queue with batched,
// retried, circuit-broken delivery to subscribers.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"autotel/internal/health"
	"autotel/pkg/backoff"
	"autotel/pkg/circuitbreaker"
	"autotel/pkg/event"
)

// EventQueue buffers event records and delivers them to all subscribers in
// batches. Enqueue never blocks: when the buffer is full the oldest record
// is dropped. Delivery failures are retried per record and mediated by a
// per-subscriber circuit breaker; one subscriber's failures never affect
// another's deliveries.
type EventQueue struct {
	mu     sync.Mutex
	buffer []event.Record

	subs     []*subscriberState
	byID     map[string]*subscriberState
	breakers *circuitbreaker.Registry
	health   *health.Registry
	config   Config
	logger   *slog.Logger
	metrics  MetricsRecorder

	flushCh  chan struct{}
	shutdown chan struct{}
	done     chan struct{}
	closed   atomic.Bool

	// Internal counters (for Stats())
	enqueued     atomic.Int64
	delivered    atomic.Int64
	failed       atomic.Int64
	dropped      atomic.Int64
	rejected     atomic.Int64
	retriesTotal atomic.Int64
	flushes      atomic.Int64
}

// subscriberState pairs a subscriber with its identity and breaker.
type subscriberState struct {
	id      string
	sub     Subscriber
	breaker *circuitbreaker.Breaker
}

// MetricsRecorder is an optional interface for recording queue metrics.
type MetricsRecorder interface {
	RecordDelivered(ctx context.Context, subscriber string)
	RecordFailed(ctx context.Context, subscriber string, count int64)
	RecordDeliveryLatency(ctx context.Context, subscriber string, ms float64)
	RecordDropped(ctx context.Context, reason string)
	RecordQueueSize(ctx context.Context, size int64)
}

// Drop reasons reported to the metrics recorder.
const (
	DropReasonBackpressure = "backpressure"
	DropReasonShutdown     = "shutdown"
)

// New creates an event queue and starts its flush loop.
func New(subs []Subscriber, cfg Config, metrics MetricsRecorder) *EventQueue {
	cfg = cfg.withDefaults()

	q := &EventQueue{
		buffer:   make([]event.Record, 0, cfg.BatchSize),
		byID:     make(map[string]*subscriberState, len(subs)),
		breakers: circuitbreaker.NewRegistry(cfg.Breaker),
		health:   health.NewRegistry(),
		config:   cfg,
		logger:   slog.With("component", "queue"),
		metrics:  metrics,
		flushCh:  make(chan struct{}, 1),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}

	taken := make(map[string]bool, len(subs))
	for i, sub := range subs {
		s := &subscriberState{
			id:  identify(sub, i, taken),
			sub: sub,
		}
		s.breaker = q.breakers.Get(s.id)
		q.health.Set(s.id, true)
		q.subs = append(q.subs, s)
		q.byID[s.id] = s
	}

	go q.flushLoop()

	// Start queue size reporter if metrics enabled
	if metrics != nil {
		go q.reportQueueSize()
	}

	q.logger.Info("Queue started",
		"subscribers", len(q.subs),
		"max_size", cfg.MaxSize,
		"batch_size", cfg.BatchSize,
		"flush_interval", cfg.FlushInterval,
	)
	return q
}

// Enqueue adds a record to the buffer. It never blocks and never fails:
// when the buffer is full the oldest record is dropped to make room, and
// records arriving after Shutdown are rejected.
func (q *EventQueue) Enqueue(rec event.Record) {
	if q.closed.Load() {
		q.rejected.Add(1)
		if q.metrics != nil {
			q.metrics.RecordDropped(context.Background(), DropReasonShutdown)
		}
		q.logger.Warn("Event rejected, queue shut down", "name", rec.Name, "kind", string(rec.Kind))
		return
	}

	q.mu.Lock()
	var oldest *event.Record
	if len(q.buffer) >= q.config.MaxSize {
		r := q.buffer[0]
		oldest = &r
		q.buffer = q.buffer[1:]
	}
	q.buffer = append(q.buffer, rec)
	size := len(q.buffer)
	q.mu.Unlock()

	q.enqueued.Add(1)
	if oldest != nil {
		q.dropped.Add(1)
		if q.metrics != nil {
			q.metrics.RecordDropped(context.Background(), DropReasonBackpressure)
		}
		q.logger.Warn("Event dropped, queue full",
			"name", oldest.Name,
			"kind", string(oldest.Kind),
			"max_size", q.config.MaxSize,
		)
	}
	if size >= q.config.BatchSize {
		q.Flush()
	}
}

// Flush asks the flush loop to run a flush soon. Signals are coalesced, so
// at most one flush is in flight and at most one more is pending.
func (q *EventQueue) Flush() {
	select {
	case q.flushCh <- struct{}{}:
	default:
	}
}

// Size returns the number of buffered records.
func (q *EventQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buffer)
}

// Accepting reports whether the queue still accepts new records.
func (q *EventQueue) Accepting() bool {
	return !q.closed.Load()
}

// flushLoop runs all flushes, periodic and requested. Only one flush is ever
// in flight.
func (q *EventQueue) flushLoop() {
	defer close(q.done)

	ticker := time.NewTicker(q.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.shutdown:
			return
		case <-ticker.C:
			q.flush(context.Background())
		case <-q.flushCh:
			q.flush(context.Background())
		}
	}
}

// flush swaps out the buffered records and delivers them to every subscriber
// concurrently. It returns when all subscribers have finished their batch.
func (q *EventQueue) flush(ctx context.Context) {
	q.mu.Lock()
	if len(q.buffer) == 0 {
		q.mu.Unlock()
		return
	}
	batch := q.buffer
	q.buffer = make([]event.Record, 0, q.config.BatchSize)
	q.mu.Unlock()

	q.flushes.Add(1)

	var wg sync.WaitGroup
	wg.Add(len(q.subs))
	for _, s := range q.subs {
		go func(s *subscriberState) {
			defer wg.Done()
			q.deliverBatch(ctx, s, batch)
		}(s)
	}
	wg.Wait()
}

// deliverBatch delivers one batch to one subscriber. Records that fail with
// a retryable error are retried in later rounds; delivered records are never
// delivered twice. Nothing escapes this method: every record ends up counted
// exactly once as delivered or failed.
func (q *EventQueue) deliverBatch(ctx context.Context, s *subscriberState, batch []event.Record) {
	pending := make([]int, len(batch))
	for i := range pending {
		pending[i] = i
	}

	failed := 0
	var lastErr error

rounds:
	for round := 0; round <= q.config.MaxRetries && len(pending) > 0; round++ {
		if round > 0 {
			q.retriesTotal.Add(int64(len(pending)))
			select {
			case <-ctx.Done():
				failed += q.markFailed(ctx, s.id, len(pending))
				q.logger.Warn("Delivery abandoned, context done",
					"subscriber", s.id, "events", len(pending), "error", ctx.Err(),
				)
				pending = nil
				break rounds
			case <-time.After(backoff.Exponential(round, &q.config.Backoff)):
			}
		}

		var next []int
		for idx, i := range pending {
			err := q.deliverOne(ctx, s, batch[i])
			if err == nil {
				continue
			}
			lastErr = err

			if errors.Is(err, circuitbreaker.ErrOpen) {
				// Circuit open: the rest of the batch and anything already
				// waiting for retry fails for this subscriber.
				abandoned := len(next) + len(pending) - idx
				failed += q.markFailed(ctx, s.id, abandoned)
				q.logger.Warn("Circuit open, failing batch remainder",
					"subscriber", s.id, "events", abandoned,
				)
				pending = nil
				break rounds
			}
			if IsPermanent(err) {
				failed += q.markFailed(ctx, s.id, 1)
				q.logger.Warn("Delivery failed permanently",
					"subscriber", s.id, "event", batch[i].Name, "error", err,
				)
				continue
			}
			next = append(next, i)
		}
		pending = next
	}

	// Records still pending have exhausted their retries.
	if len(pending) > 0 {
		failed += q.markFailed(ctx, s.id, len(pending))
		q.logger.Warn("Delivery failed after retries",
			"subscriber", s.id,
			"events", len(pending),
			"retries", q.config.MaxRetries,
			"error", lastErr,
		)
	}

	if failed > 0 {
		q.health.Set(s.id, false)
	}
}

// deliverOne runs a single delivery through the subscriber's breaker and
// accounts for success.
func (q *EventQueue) deliverOne(ctx context.Context, s *subscriberState, rec event.Record) error {
	callCtx, cancel := context.WithTimeout(ctx, q.config.DeliveryTimeout)
	defer cancel()

	start := time.Now()
	err := s.breaker.Execute(func() error {
		return deliver(callCtx, s.sub, rec)
	})
	if err != nil {
		return err
	}

	q.delivered.Add(1)
	q.health.Set(s.id, true)
	if q.metrics != nil {
		q.metrics.RecordDelivered(ctx, s.id)
		q.metrics.RecordDeliveryLatency(ctx, s.id, time.Since(start).Seconds()*1000)
	}
	return nil
}

// markFailed counts n terminal failures for a subscriber and returns n.
func (q *EventQueue) markFailed(ctx context.Context, id string, n int) int {
	q.failed.Add(int64(n))
	if q.metrics != nil {
		q.metrics.RecordFailed(ctx, id, int64(n))
	}
	return n
}

// reportQueueSize periodically reports the queue size metric.
func (q *EventQueue) reportQueueSize() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-q.shutdown:
			return
		case <-ticker.C:
			q.metrics.RecordQueueSize(context.Background(), int64(q.Size()))
		}
	}
}

// Shutdown stops the queue: new records are rejected, the flush loop exits,
// and buffered records are drained synchronously within the context's
// deadline. Subscribers implementing Shutdowner are shut down afterwards.
// Safe to call more than once.
func (q *EventQueue) Shutdown(ctx context.Context) error {
	if q.closed.Swap(true) {
		return nil // already shut down
	}

	q.logger.Info("Queue shutting down", "buffered", q.Size())

	close(q.shutdown)
	<-q.done

	// Final drain runs on the caller's goroutine so Shutdown returns only
	// after the last batch settled.
	q.flush(ctx)

	for _, s := range q.subs {
		if sd, ok := s.sub.(Shutdowner); ok {
			if err := sd.Shutdown(ctx); err != nil {
				q.logger.Warn("Subscriber shutdown failed", "subscriber", s.id, "error", err)
			}
		}
	}

	q.logger.Info("Queue shutdown complete",
		"delivered", q.delivered.Load(),
		"failed", q.failed.Load(),
		"dropped", q.dropped.Load(),
	)
	return ctx.Err()
}

// Stats returns current queue statistics.
func (q *EventQueue) Stats() Stats {
	breakerStats := q.breakers.Stats()
	return Stats{
		QueueDepth:    q.Size(),
		Enqueued:      q.enqueued.Load(),
		Delivered:     q.delivered.Load(),
		Failed:        q.failed.Load(),
		Dropped:       q.dropped.Load(),
		Rejected:      q.rejected.Load(),
		RetriesTotal:  q.retriesTotal.Load(),
		Flushes:       q.flushes.Load(),
		Subscribers:   len(q.subs),
		BreakersOpen:  breakerStats.Open,
		BreakersTotal: breakerStats.Total,
	}
}

// Stats holds queue statistics.
type Stats struct {
	QueueDepth    int   `json:"queueDepth"`    // current buffered records
	Enqueued      int64 `json:"enqueued"`      // total records accepted
	Delivered     int64 `json:"delivered"`     // successful deliveries (per subscriber)
	Failed        int64 `json:"failed"`        // terminal failures (per subscriber)
	Dropped       int64 `json:"dropped"`       // dropped by backpressure
	Rejected      int64 `json:"rejected"`      // rejected after shutdown
	RetriesTotal  int64 `json:"retriesTotal"`  // total retry deliveries
	Flushes       int64 `json:"flushes"`       // flush cycles run
	Subscribers   int   `json:"subscribers"`   // configured subscribers
	BreakersOpen  int   `json:"breakersOpen"`  // currently open breakers
	BreakersTotal int   `json:"breakersTotal"` // total breakers
}

// SubscriberStatus describes one subscriber's delivery state.
type SubscriberStatus struct {
	ID             string `json:"id"`
	Healthy        bool   `json:"healthy"`
	CircuitState   string `json:"circuitState"`
	RecentFailures int    `json:"recentFailures"`
}

// SubscriberStatuses returns the status of every subscriber, sorted by id.
func (q *EventQueue) SubscriberStatuses() []SubscriberStatus {
	out := make([]SubscriberStatus, 0, len(q.subs))
	for _, s := range q.subs {
		out = append(out, SubscriberStatus{
			ID:             s.id,
			Healthy:        q.health.Healthy(s.id),
			CircuitState:   s.breaker.State().String(),
			RecentFailures: s.breaker.Failures(),
		})
	}
	slices.SortFunc(out, func(a, b SubscriberStatus) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// SubscriberHealthy reports a subscriber's health.
func (q *EventQueue) SubscriberHealthy(id string) (bool, error) {
	if _, ok := q.byID[id]; !ok {
		return false, ErrUnknownSubscriber
	}
	return q.health.Healthy(id), nil
}

// SetSubscriberHealth overrides a subscriber's health. Delivery outcomes
// keep updating it afterwards.
func (q *EventQueue) SetSubscriberHealth(id string, healthy bool) error {
	if _, ok := q.byID[id]; !ok {
		return ErrUnknownSubscriber
	}
	q.health.Set(id, healthy)
	q.logger.Info("Subscriber health overridden", "subscriber", id, "healthy", healthy)
	return nil
}

// UnhealthySubscribers returns the ids of subscribers marked unhealthy.
func (q *EventQueue) UnhealthySubscribers() []string {
	return q.health.Unhealthy()
}

// TripCircuit forces a subscriber's circuit open.
func (q *EventQueue) TripCircuit(id string) error {
	s, ok := q.byID[id]
	if !ok {
		return ErrUnknownSubscriber
	}
	s.breaker.ForceOpen()
	q.logger.Info("Circuit forced open", "subscriber", id)
	return nil
}

// ResetCircuit closes a subscriber's circuit and clears its failures.
func (q *EventQueue) ResetCircuit(id string) error {
	s, ok := q.byID[id]
	if !ok {
		return ErrUnknownSubscriber
	}
	s.breaker.Reset()
	q.logger.Info("Circuit reset", "subscriber", id)
	return nil
}

// CircuitState returns the state of a subscriber's circuit.
func (q *EventQueue) CircuitState(id string) (circuitbreaker.State, error) {
	s, ok := q.byID[id]
	if !ok {
		return circuitbreaker.Closed, ErrUnknownSubscriber
	}
	return s.breaker.State(), nil
}
