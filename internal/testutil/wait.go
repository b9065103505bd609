// Package testutil provides polling helpers for tests that wait on
// asynchronous delivery.
package testutil

import (
	"sync/atomic"
	"testing"
	"time"
)

type waitConfig struct {
	timeout  time.Duration
	interval time.Duration
}

// WaitOption adjusts how long and how often WaitFor polls.
type WaitOption func(*waitConfig)

// WithTimeout bounds the total wait (default: 30s). A zero timeout still
// checks the condition once.
func WithTimeout(d time.Duration) WaitOption {
	return func(c *waitConfig) { c.timeout = d }
}

// WithInterval sets the polling interval (default: 100ms).
func WithInterval(d time.Duration) WaitOption {
	return func(c *waitConfig) { c.interval = d }
}

// WaitFor polls condition until it returns true or the timeout elapses.
// It reports whether the condition was met.
func WaitFor(tb testing.TB, condition func() bool, opts ...WaitOption) bool {
	tb.Helper()

	cfg := waitConfig{timeout: 30 * time.Second, interval: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(&cfg)
	}

	if condition() {
		return true
	}

	deadline := time.NewTimer(cfg.timeout)
	defer deadline.Stop()
	tick := time.NewTicker(cfg.interval)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			if condition() {
				return true
			}
		case <-deadline.C:
			// The condition may have flipped since the last tick.
			return condition()
		}
	}
}

// MustWaitFor is WaitFor that fails the test on timeout.
func MustWaitFor(tb testing.TB, condition func() bool, opts ...WaitOption) {
	tb.Helper()
	if !WaitFor(tb, condition, opts...) {
		tb.Fatal("timed out waiting for condition")
	}
}

// WaitForCount polls until counter reaches target. Delivery tests use this
// to wait for a sink to observe a number of events.
func WaitForCount(tb testing.TB, counter *atomic.Int64, target int64, opts ...WaitOption) bool {
	tb.Helper()
	return WaitFor(tb, func() bool { return counter.Load() >= target }, opts...)
}

// MustWaitForCount is WaitForCount that fails the test on timeout.
func MustWaitForCount(tb testing.TB, counter *atomic.Int64, target int64, opts ...WaitOption) {
	tb.Helper()
	if !WaitForCount(tb, counter, target, opts...) {
		tb.Fatalf("timed out waiting for counter to reach %d (current: %d)", target, counter.Load())
	}
}
