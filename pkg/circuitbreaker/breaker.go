// Package circuitbreaker implements the circuit breaker pattern.
//
// A breaker tracks failures within a sliding time window and blocks calls
// to a destination once the recent-failure count reaches a threshold.
//
// States:
//   - Closed: Normal operation, calls run
//   - Open: Too many recent failures, calls fail fast
//   - HalfOpen: Reset timeout elapsed, next call probes the destination
package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned by Execute when the circuit is open and the call
// was not attempted.
var ErrOpen = errors.New("circuit open")

// State represents the state of a circuit breaker.
type State int

const (
	Closed   State = iota // Normal operation, calls run
	Open                  // Failing, calls blocked
	HalfOpen              // Testing if recovered
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Failure is one recorded failure inside the sliding window.
type Failure struct {
	At      time.Time
	Message string
}

// Breaker implements the circuit breaker pattern for a single destination.
type Breaker struct {
	mu           sync.Mutex
	state        State
	failures     []Failure // failures within the window, oldest first
	openedAt     time.Time // when the breaker last entered Open
	threshold    int
	resetTimeout time.Duration
	window       time.Duration
}

// Config holds configuration for a circuit breaker.
type Config struct {
	Threshold    int           // Recent failures before circuit opens (default: 5)
	ResetTimeout time.Duration // Time in Open before a half-open probe (default: 30s)
	Window       time.Duration // Sliding window for counting failures (default: 60s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:    5,
		ResetTimeout: 30 * time.Second,
		Window:       60 * time.Second,
	}
}

// New creates a new circuit breaker.
func New(cfg Config) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.Window <= 0 {
		cfg.Window = 60 * time.Second
	}
	return &Breaker{
		state:        Closed,
		threshold:    cfg.Threshold,
		resetTimeout: cfg.ResetTimeout,
		window:       cfg.Window,
	}
}

// Execute runs fn through the breaker.
//
// When the circuit is open and the reset timeout has not elapsed, fn is not
// invoked and ErrOpen is returned. Otherwise fn runs and its outcome updates
// the breaker: failures are recorded with a timestamp and message, successes
// close a half-open circuit. A panic inside fn is recovered and counted as a
// failure.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	if b.state == Open {
		// Lazy transition: the probe happens on the first call after the
		// reset timeout, not on a timer.
		if time.Since(b.openedAt) < b.resetTimeout {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = HalfOpen
	}
	b.mu.Unlock()

	err := run(fn)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.recordFailure(err.Error())
		return err
	}
	if b.state == HalfOpen {
		b.state = Closed
		b.failures = nil
	}
	return nil
}

// run invokes fn, converting a panic into an error.
func run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// recordFailure appends a failure and applies state transitions.
// Caller must hold b.mu.
func (b *Breaker) recordFailure(msg string) {
	now := time.Now()
	b.failures = append(b.failures, Failure{At: now, Message: msg})
	b.prune(now)

	if b.state == HalfOpen {
		// Probe failed, restart the reset clock.
		b.state = Open
		b.openedAt = now
		return
	}
	if b.state == Closed && len(b.failures) >= b.threshold {
		b.state = Open
		b.openedAt = now
	}
}

// prune drops failures older than the window. Caller must hold b.mu.
func (b *Breaker) prune(now time.Time) {
	cutoff := now.Add(-b.window)
	i := 0
	for i < len(b.failures) && b.failures[i].At.Before(cutoff) {
		i++
	}
	if i > 0 {
		b.failures = append(b.failures[:0], b.failures[i:]...)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the number of failures within the window.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune(time.Now())
	return len(b.failures)
}

// RecentFailures returns a copy of the failures within the window,
// oldest first.
func (b *Breaker) RecentFailures() []Failure {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune(time.Now())
	out := make([]Failure, len(b.failures))
	copy(out, b.failures)
	return out
}

// ForceOpen opens the circuit regardless of the failure count. The breaker
// recovers through the normal half-open probe after the reset timeout.
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Open
	b.openedAt = time.Now()
}

// Reset closes the circuit and clears the failure window.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = nil
}
