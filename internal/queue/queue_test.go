package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"autotel/internal/testutil"
	"autotel/pkg/backoff"
	"autotel/pkg/circuitbreaker"
	"autotel/pkg/event"
)

// fakeSubscriber records deliveries and can be scripted to fail via failFn.
type fakeSubscriber struct {
	name   string
	failFn func(call int, name string) error

	calls     atomic.Int32
	shutdowns atomic.Int32

	mu           sync.Mutex
	delivered    []string
	attempts     map[string]int
	correlations []string
}

func newFakeSubscriber(name string) *fakeSubscriber {
	return &fakeSubscriber{
		name:     name,
		attempts: make(map[string]int),
	}
}

func (f *fakeSubscriber) track(ctx context.Context, entry, name string) error {
	call := int(f.calls.Add(1))

	f.mu.Lock()
	f.attempts[name]++
	f.mu.Unlock()

	if f.failFn != nil {
		if err := f.failFn(call, name); err != nil {
			return err
		}
	}

	f.mu.Lock()
	f.delivered = append(f.delivered, entry)
	f.correlations = append(f.correlations, event.CorrelationFromContext(ctx))
	f.mu.Unlock()
	return nil
}

func (f *fakeSubscriber) TrackEvent(ctx context.Context, name string, attrs map[string]any) error {
	return f.track(ctx, "event:"+name, name)
}

func (f *fakeSubscriber) TrackFunnelStep(ctx context.Context, funnel, step string, attrs map[string]any) error {
	return f.track(ctx, "funnel:"+funnel+":"+step, funnel)
}

func (f *fakeSubscriber) TrackOutcome(ctx context.Context, name string, success bool, attrs map[string]any) error {
	return f.track(ctx, fmt.Sprintf("outcome:%s:%t", name, success), name)
}

func (f *fakeSubscriber) TrackValue(ctx context.Context, name string, value float64, attrs map[string]any) error {
	return f.track(ctx, fmt.Sprintf("value:%s:%g", name, value), name)
}

func (f *fakeSubscriber) Name() string { return f.name }

func (f *fakeSubscriber) Shutdown(ctx context.Context) error {
	f.shutdowns.Add(1)
	return nil
}

func (f *fakeSubscriber) deliveredCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}

func (f *fakeSubscriber) deliveredEntries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.delivered))
	copy(out, f.delivered)
	return out
}

func (f *fakeSubscriber) attemptsFor(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[name]
}

func (f *fakeSubscriber) correlationAt(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.correlations) {
		return ""
	}
	return f.correlations[i]
}

// anonymousSubscriber has no declared name.
type anonymousSubscriber struct{}

func (anonymousSubscriber) TrackEvent(ctx context.Context, name string, attrs map[string]any) error {
	return nil
}
func (anonymousSubscriber) TrackFunnelStep(ctx context.Context, funnel, step string, attrs map[string]any) error {
	return nil
}
func (anonymousSubscriber) TrackOutcome(ctx context.Context, name string, success bool, attrs map[string]any) error {
	return nil
}
func (anonymousSubscriber) TrackValue(ctx context.Context, name string, value float64, attrs map[string]any) error {
	return nil
}

// fakeMetrics counts recorder calls per subscriber and drop reason.
type fakeMetrics struct {
	mu        sync.Mutex
	delivered map[string]int
	failed    map[string]int64
	latencies map[string]int
	dropped   map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		delivered: make(map[string]int),
		failed:    make(map[string]int64),
		latencies: make(map[string]int),
		dropped:   make(map[string]int),
	}
}

func (m *fakeMetrics) RecordDelivered(ctx context.Context, subscriber string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered[subscriber]++
}

func (m *fakeMetrics) RecordFailed(ctx context.Context, subscriber string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[subscriber] += count
}

func (m *fakeMetrics) RecordDeliveryLatency(ctx context.Context, subscriber string, ms float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies[subscriber]++
}

func (m *fakeMetrics) RecordDropped(ctx context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[reason]++
}

func (m *fakeMetrics) RecordQueueSize(ctx context.Context, size int64) {}

func (m *fakeMetrics) deliveredFor(subscriber string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delivered[subscriber]
}

func (m *fakeMetrics) failedFor(subscriber string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failed[subscriber]
}

func (m *fakeMetrics) latenciesFor(subscriber string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latencies[subscriber]
}

func (m *fakeMetrics) droppedFor(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped[reason]
}

// testConfig returns a config where nothing happens on a timer: tests drive
// flushes explicitly and the breaker threshold is out of reach unless a test
// lowers it.
func testConfig() Config {
	return Config{
		MaxSize:         100,
		BatchSize:       50,
		FlushInterval:   time.Hour,
		MaxRetries:      3,
		DeliveryTimeout: time.Second,
		Backoff:         backoff.Config{Initial: 5 * time.Millisecond, Max: 20 * time.Millisecond},
		Breaker:         circuitbreaker.Config{Threshold: 100, ResetTimeout: time.Minute},
	}
}

func closeQueue(t *testing.T, q *EventQueue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = q.Shutdown(ctx)
}

func TestQueue_DeliversToAllSubscribers(t *testing.T) {
	a := newFakeSubscriber("sink-a")
	b := newFakeSubscriber("sink-b")
	q := New([]Subscriber{a, b}, testConfig(), nil)

	q.Enqueue(event.New("signup", nil))
	q.Enqueue(event.New("login", nil))
	q.Enqueue(event.New("purchase", nil))
	q.Flush()

	testutil.MustWaitFor(t, func() bool {
		return a.deliveredCount() == 3 && b.deliveredCount() == 3
	}, testutil.WithTimeout(5*time.Second))

	stats := q.Stats()
	if stats.Delivered != 6 {
		t.Errorf("expected 6 delivered (3 events x 2 subscribers), got %d", stats.Delivered)
	}
	if stats.Failed != 0 {
		t.Errorf("expected 0 failed, got %d", stats.Failed)
	}

	closeQueue(t, q)
}

func TestQueue_DispatchesByKind(t *testing.T) {
	sub := newFakeSubscriber("capture")
	q := New([]Subscriber{sub}, testConfig(), nil)

	q.Enqueue(event.New("signup", nil))
	q.Enqueue(event.NewFunnelStep("onboarding", "invited", nil))
	q.Enqueue(event.NewOutcome("checkout", true, nil))
	q.Enqueue(event.NewValue("cart_total", 42.5, nil))
	q.Flush()

	testutil.MustWaitFor(t, func() bool {
		return sub.deliveredCount() == 4
	}, testutil.WithTimeout(5*time.Second))

	want := []string{
		"event:signup",
		"funnel:onboarding:invited",
		"outcome:checkout:true",
		"value:cart_total:42.5",
	}
	got := sub.deliveredEntries()
	for i, entry := range want {
		if got[i] != entry {
			t.Errorf("delivery %d = %q, want %q", i, got[i], entry)
		}
	}

	closeQueue(t, q)
}

func TestQueue_BatchSizeTriggersFlush(t *testing.T) {
	sub := newFakeSubscriber("capture")
	cfg := testConfig()
	cfg.BatchSize = 3
	q := New([]Subscriber{sub}, cfg, nil)

	// No explicit Flush: reaching the batch size should flush on its own.
	q.Enqueue(event.New("e1", nil))
	q.Enqueue(event.New("e2", nil))
	q.Enqueue(event.New("e3", nil))

	testutil.MustWaitFor(t, func() bool {
		return sub.deliveredCount() == 3
	}, testutil.WithTimeout(5*time.Second))

	closeQueue(t, q)
}

func TestQueue_FlushesOnInterval(t *testing.T) {
	sub := newFakeSubscriber("capture")
	cfg := testConfig()
	cfg.FlushInterval = 50 * time.Millisecond
	q := New([]Subscriber{sub}, cfg, nil)

	q.Enqueue(event.New("e1", nil))

	testutil.MustWaitFor(t, func() bool {
		return sub.deliveredCount() == 1
	}, testutil.WithTimeout(5*time.Second))

	closeQueue(t, q)
}

func TestQueue_DropsOldestWhenFull(t *testing.T) {
	sub := newFakeSubscriber("capture")
	metrics := newFakeMetrics()
	cfg := testConfig()
	cfg.MaxSize = 3
	q := New([]Subscriber{sub}, cfg, metrics)

	for i := 1; i <= 5; i++ {
		q.Enqueue(event.New(fmt.Sprintf("e%d", i), nil))
	}

	if size := q.Size(); size != 3 {
		t.Errorf("expected buffer size 3, got %d", size)
	}

	stats := q.Stats()
	if stats.Dropped != 2 {
		t.Errorf("expected 2 dropped, got %d", stats.Dropped)
	}
	if stats.Enqueued != 5 {
		t.Errorf("expected 5 enqueued, got %d", stats.Enqueued)
	}
	if got := metrics.droppedFor(DropReasonBackpressure); got != 2 {
		t.Errorf("expected 2 backpressure drops recorded, got %d", got)
	}

	// The oldest records made room: only the newest three deliver.
	q.Flush()
	testutil.MustWaitFor(t, func() bool {
		return sub.deliveredCount() == 3
	}, testutil.WithTimeout(5*time.Second))

	want := []string{"event:e3", "event:e4", "event:e5"}
	got := sub.deliveredEntries()
	for i, entry := range want {
		if got[i] != entry {
			t.Errorf("delivery %d = %q, want %q", i, got[i], entry)
		}
	}

	closeQueue(t, q)
}

func TestQueue_RetriesTransientFailures(t *testing.T) {
	sub := newFakeSubscriber("flaky")
	sub.failFn = func(call int, name string) error {
		if call <= 2 {
			return errors.New("temporarily down")
		}
		return nil
	}
	q := New([]Subscriber{sub}, testConfig(), nil)

	q.Enqueue(event.New("signup", nil))
	q.Flush()

	testutil.MustWaitFor(t, func() bool {
		return sub.deliveredCount() == 1
	}, testutil.WithTimeout(5*time.Second))

	if calls := sub.calls.Load(); calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	stats := q.Stats()
	if stats.Delivered != 1 {
		t.Errorf("expected 1 delivered, got %d", stats.Delivered)
	}
	if stats.RetriesTotal != 2 {
		t.Errorf("expected 2 retries, got %d", stats.RetriesTotal)
	}

	closeQueue(t, q)
}

func TestQueue_RetriesOnlyFailedEvents(t *testing.T) {
	sub := newFakeSubscriber("flaky")
	var badAttempts atomic.Int32
	sub.failFn = func(call int, name string) error {
		if name == "bad" && badAttempts.Add(1) == 1 {
			return errors.New("temporarily down")
		}
		return nil
	}
	q := New([]Subscriber{sub}, testConfig(), nil)

	q.Enqueue(event.New("good-1", nil))
	q.Enqueue(event.New("bad", nil))
	q.Enqueue(event.New("good-2", nil))
	q.Flush()

	testutil.MustWaitFor(t, func() bool {
		return sub.deliveredCount() == 3
	}, testutil.WithTimeout(5*time.Second))

	// Delivered events are not delivered again when a batchmate fails.
	if got := sub.attemptsFor("good-1"); got != 1 {
		t.Errorf("good-1 attempted %d times, want 1", got)
	}
	if got := sub.attemptsFor("good-2"); got != 1 {
		t.Errorf("good-2 attempted %d times, want 1", got)
	}
	if got := sub.attemptsFor("bad"); got != 2 {
		t.Errorf("bad attempted %d times, want 2", got)
	}

	stats := q.Stats()
	if stats.Delivered != 3 {
		t.Errorf("expected 3 delivered, got %d", stats.Delivered)
	}
	if stats.Failed != 0 {
		t.Errorf("expected 0 failed, got %d", stats.Failed)
	}

	closeQueue(t, q)
}

func TestQueue_FailsAfterMaxRetries(t *testing.T) {
	sub := newFakeSubscriber("down")
	sub.failFn = func(call int, name string) error {
		return errors.New("still down")
	}
	cfg := testConfig()
	cfg.MaxRetries = 2
	q := New([]Subscriber{sub}, cfg, nil)

	q.Enqueue(event.New("signup", nil))
	q.Flush()

	testutil.MustWaitFor(t, func() bool {
		return q.Stats().Failed == 1
	}, testutil.WithTimeout(5*time.Second))

	if calls := sub.calls.Load(); calls != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", calls)
	}
	if q.Stats().Delivered != 0 {
		t.Errorf("expected 0 delivered, got %d", q.Stats().Delivered)
	}

	healthy, err := q.SubscriberHealthy("down")
	if err != nil {
		t.Fatalf("SubscriberHealthy failed: %v", err)
	}
	if healthy {
		t.Error("expected subscriber to be unhealthy after exhausted retries")
	}

	closeQueue(t, q)
}

func TestQueue_PermanentErrorNotRetried(t *testing.T) {
	sub := newFakeSubscriber("strict")
	sub.failFn = func(call int, name string) error {
		return Permanent(errors.New("payload rejected"))
	}
	q := New([]Subscriber{sub}, testConfig(), nil)

	q.Enqueue(event.New("signup", nil))
	q.Flush()

	testutil.MustWaitFor(t, func() bool {
		return q.Stats().Failed == 1
	}, testutil.WithTimeout(5*time.Second))

	if calls := sub.calls.Load(); calls != 1 {
		t.Errorf("expected 1 attempt (no retry on permanent error), got %d", calls)
	}

	closeQueue(t, q)
}

func TestQueue_SubscriberIsolation(t *testing.T) {
	broken := newFakeSubscriber("broken")
	broken.failFn = func(call int, name string) error {
		return errors.New("always down")
	}
	healthySub := newFakeSubscriber("fine")
	cfg := testConfig()
	cfg.MaxRetries = 1
	q := New([]Subscriber{broken, healthySub}, cfg, nil)

	q.Enqueue(event.New("e1", nil))
	q.Enqueue(event.New("e2", nil))
	q.Flush()

	testutil.MustWaitFor(t, func() bool {
		return healthySub.deliveredCount() == 2 && q.Stats().Failed == 2
	}, testutil.WithTimeout(5*time.Second))

	if ok, _ := q.SubscriberHealthy("fine"); !ok {
		t.Error("expected healthy subscriber to stay healthy")
	}
	if ok, _ := q.SubscriberHealthy("broken"); ok {
		t.Error("expected broken subscriber to be unhealthy")
	}

	closeQueue(t, q)
}

func TestQueue_CircuitOpensAndSkipsBatches(t *testing.T) {
	sub := newFakeSubscriber("down")
	sub.failFn = func(call int, name string) error {
		return errors.New("connection refused")
	}
	cfg := testConfig()
	cfg.MaxRetries = 1
	cfg.Breaker = circuitbreaker.Config{Threshold: 2, ResetTimeout: time.Minute}
	q := New([]Subscriber{sub}, cfg, nil)

	for i := 0; i < 5; i++ {
		q.Enqueue(event.New(fmt.Sprintf("e%d", i), nil))
	}
	q.Flush()

	testutil.MustWaitFor(t, func() bool {
		return q.Stats().Failed == 5
	}, testutil.WithTimeout(5*time.Second))

	// Two failures opened the circuit, so only two calls ever reached the
	// subscriber.
	if calls := sub.calls.Load(); calls != 2 {
		t.Errorf("expected 2 subscriber calls, got %d", calls)
	}
	if state, _ := q.CircuitState("down"); state != circuitbreaker.Open {
		t.Errorf("expected open circuit, got %s", state)
	}
	if q.Stats().BreakersOpen != 1 {
		t.Errorf("expected 1 open breaker, got %d", q.Stats().BreakersOpen)
	}

	// The next batch is skipped entirely while the circuit is open.
	q.Enqueue(event.New("late-1", nil))
	q.Enqueue(event.New("late-2", nil))
	q.Flush()

	testutil.MustWaitFor(t, func() bool {
		return q.Stats().Failed == 7
	}, testutil.WithTimeout(5*time.Second))

	if calls := sub.calls.Load(); calls != 2 {
		t.Errorf("expected no further subscriber calls, got %d", calls)
	}

	closeQueue(t, q)
}

func TestQueue_CircuitRecoversAfterResetTimeout(t *testing.T) {
	sub := newFakeSubscriber("flaky")
	sub.failFn = func(call int, name string) error {
		if call == 1 {
			return errors.New("connection refused")
		}
		return nil
	}
	cfg := testConfig()
	cfg.MaxRetries = 1
	cfg.Breaker = circuitbreaker.Config{Threshold: 1, ResetTimeout: 50 * time.Millisecond}
	q := New([]Subscriber{sub}, cfg, nil)

	q.Enqueue(event.New("first", nil))
	q.Flush()

	testutil.MustWaitFor(t, func() bool {
		return q.Stats().Failed == 1
	}, testutil.WithTimeout(5*time.Second))

	// Let the reset timeout elapse, then the next delivery probes and closes
	// the circuit.
	time.Sleep(60 * time.Millisecond)

	q.Enqueue(event.New("second", nil))
	q.Flush()

	testutil.MustWaitFor(t, func() bool {
		return sub.deliveredCount() == 1
	}, testutil.WithTimeout(5*time.Second))

	if state, _ := q.CircuitState("flaky"); state != circuitbreaker.Closed {
		t.Errorf("expected closed circuit after recovery, got %s", state)
	}
	if ok, _ := q.SubscriberHealthy("flaky"); !ok {
		t.Error("expected subscriber healthy after successful delivery")
	}

	closeQueue(t, q)
}

func TestQueue_PanicContained(t *testing.T) {
	sub := newFakeSubscriber("wild")
	sub.failFn = func(call int, name string) error {
		if name == "explode" {
			panic("kaboom")
		}
		return nil
	}
	cfg := testConfig()
	cfg.MaxRetries = 1
	q := New([]Subscriber{sub}, cfg, nil)

	q.Enqueue(event.New("explode", nil))
	q.Flush()

	testutil.MustWaitFor(t, func() bool {
		return q.Stats().Failed == 1
	}, testutil.WithTimeout(5*time.Second))

	// The panic stayed inside the delivery: the queue keeps working.
	q.Enqueue(event.New("calm", nil))
	q.Flush()

	testutil.MustWaitFor(t, func() bool {
		return sub.deliveredCount() == 1
	}, testutil.WithTimeout(5*time.Second))

	closeQueue(t, q)
}

func TestQueue_ShutdownDrains(t *testing.T) {
	sub := newFakeSubscriber("capture")
	q := New([]Subscriber{sub}, testConfig(), nil)

	for i := 0; i < 5; i++ {
		q.Enqueue(event.New(fmt.Sprintf("e%d", i), nil))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	// Drain is synchronous: everything was delivered before Shutdown
	// returned.
	if got := sub.deliveredCount(); got != 5 {
		t.Errorf("expected 5 delivered after drain, got %d", got)
	}
	if got := sub.shutdowns.Load(); got != 1 {
		t.Errorf("expected 1 subscriber shutdown call, got %d", got)
	}

	// Shutdown is idempotent.
	if err := q.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown failed: %v", err)
	}
	if got := sub.shutdowns.Load(); got != 1 {
		t.Errorf("expected subscriber shutdown to run once, got %d", got)
	}
}

func TestQueue_RejectsEnqueueAfterShutdown(t *testing.T) {
	sub := newFakeSubscriber("capture")
	metrics := newFakeMetrics()
	q := New([]Subscriber{sub}, testConfig(), metrics)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := q.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	q.Enqueue(event.New("late", nil))

	stats := q.Stats()
	if stats.Rejected != 1 {
		t.Errorf("expected 1 rejected, got %d", stats.Rejected)
	}
	if stats.Enqueued != 0 {
		t.Errorf("expected 0 enqueued, got %d", stats.Enqueued)
	}
	if got := metrics.droppedFor(DropReasonShutdown); got != 1 {
		t.Errorf("expected 1 shutdown drop recorded, got %d", got)
	}
	if sub.deliveredCount() != 0 {
		t.Errorf("expected no deliveries, got %d", sub.deliveredCount())
	}
}

func TestQueue_HealthOverride(t *testing.T) {
	sub := newFakeSubscriber("sink")
	q := New([]Subscriber{sub}, testConfig(), nil)

	if err := q.SetSubscriberHealth("sink", false); err != nil {
		t.Fatalf("SetSubscriberHealth failed: %v", err)
	}
	statuses := q.SubscriberStatuses()
	if len(statuses) != 1 {
		t.Fatalf("expected 1 status, got %d", len(statuses))
	}
	if statuses[0].Healthy {
		t.Error("expected overridden subscriber to report unhealthy")
	}
	if got := q.UnhealthySubscribers(); len(got) != 1 || got[0] != "sink" {
		t.Errorf("UnhealthySubscribers = %v, want [sink]", got)
	}

	if err := q.SetSubscriberHealth("missing", true); !errors.Is(err, ErrUnknownSubscriber) {
		t.Errorf("expected ErrUnknownSubscriber, got %v", err)
	}
	if _, err := q.SubscriberHealthy("missing"); !errors.Is(err, ErrUnknownSubscriber) {
		t.Errorf("expected ErrUnknownSubscriber, got %v", err)
	}

	closeQueue(t, q)
}

func TestQueue_ManualCircuitControls(t *testing.T) {
	sub := newFakeSubscriber("sink")
	q := New([]Subscriber{sub}, testConfig(), nil)

	if err := q.TripCircuit("sink"); err != nil {
		t.Fatalf("TripCircuit failed: %v", err)
	}
	if state, _ := q.CircuitState("sink"); state != circuitbreaker.Open {
		t.Errorf("expected open circuit after trip, got %s", state)
	}

	// Deliveries are skipped while tripped.
	q.Enqueue(event.New("e1", nil))
	q.Flush()
	testutil.MustWaitFor(t, func() bool {
		return q.Stats().Failed == 1
	}, testutil.WithTimeout(5*time.Second))
	if calls := sub.calls.Load(); calls != 0 {
		t.Errorf("expected no subscriber calls while tripped, got %d", calls)
	}

	if err := q.ResetCircuit("sink"); err != nil {
		t.Fatalf("ResetCircuit failed: %v", err)
	}
	if state, _ := q.CircuitState("sink"); state != circuitbreaker.Closed {
		t.Errorf("expected closed circuit after reset, got %s", state)
	}

	q.Enqueue(event.New("e2", nil))
	q.Flush()
	testutil.MustWaitFor(t, func() bool {
		return sub.deliveredCount() == 1
	}, testutil.WithTimeout(5*time.Second))

	if err := q.TripCircuit("missing"); !errors.Is(err, ErrUnknownSubscriber) {
		t.Errorf("expected ErrUnknownSubscriber, got %v", err)
	}

	closeQueue(t, q)
}

func TestQueue_SubscriberIdentities(t *testing.T) {
	q := New([]Subscriber{
		anonymousSubscriber{},
		newFakeSubscriber("Webhook"),
		newFakeSubscriber("Webhook"),
	}, testConfig(), nil)

	statuses := q.SubscriberStatuses()
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}

	want := []string{"subscriber-0", "webhook", "webhook-2"}
	for i, s := range statuses {
		if s.ID != want[i] {
			t.Errorf("status %d id = %q, want %q", i, s.ID, want[i])
		}
		if !s.Healthy {
			t.Errorf("expected %q to start healthy", s.ID)
		}
		if s.CircuitState != "closed" {
			t.Errorf("expected %q circuit closed, got %s", s.ID, s.CircuitState)
		}
	}

	closeQueue(t, q)
}

func TestQueue_RecordsMetrics(t *testing.T) {
	sub := newFakeSubscriber("sink")
	metrics := newFakeMetrics()
	q := New([]Subscriber{sub}, testConfig(), metrics)

	q.Enqueue(event.New("signup", nil))
	q.Flush()

	testutil.MustWaitFor(t, func() bool {
		return metrics.deliveredFor("sink") == 1
	}, testutil.WithTimeout(5*time.Second))

	if got := metrics.latenciesFor("sink"); got != 1 {
		t.Errorf("expected 1 latency sample, got %d", got)
	}
	if got := metrics.failedFor("sink"); got != 0 {
		t.Errorf("expected 0 failures recorded, got %d", got)
	}

	closeQueue(t, q)
}

func TestQueue_CorrelationTravelsWithRecord(t *testing.T) {
	sub := newFakeSubscriber("capture")
	q := New([]Subscriber{sub}, testConfig(), nil)

	rec := event.New("signup", nil)
	rec.CorrelationID = "corr-42"
	q.Enqueue(rec)
	q.Flush()

	testutil.MustWaitFor(t, func() bool {
		return sub.deliveredCount() == 1
	}, testutil.WithTimeout(5*time.Second))

	if got := sub.correlationAt(0); got != "corr-42" {
		t.Errorf("correlation id = %q, want %q", got, "corr-42")
	}

	closeQueue(t, q)
}

func TestQueue_ConcurrentEnqueue(t *testing.T) {
	const producers = 10
	const perProducer = 100

	sub := newFakeSubscriber("capture")
	cfg := testConfig()
	cfg.MaxSize = 5000
	cfg.BatchSize = 100
	cfg.FlushInterval = 20 * time.Millisecond
	q := New([]Subscriber{sub}, cfg, nil)

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(event.New(fmt.Sprintf("p%d-e%d", p, i), nil))
			}
		}(p)
	}
	wg.Wait()

	testutil.MustWaitFor(t, func() bool {
		return sub.deliveredCount() == producers*perProducer
	}, testutil.WithTimeout(10*time.Second))

	stats := q.Stats()
	if stats.Enqueued != producers*perProducer {
		t.Errorf("expected %d enqueued, got %d", producers*perProducer, stats.Enqueued)
	}
	if stats.Dropped != 0 {
		t.Errorf("expected 0 dropped, got %d", stats.Dropped)
	}

	closeQueue(t, q)
}
