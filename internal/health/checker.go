// Package health provides liveness and readiness checks plus per-subscriber
// delivery health tracking.
package health

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// QueueChecker reports delivery pipeline state for readiness probes.
// Implemented by the event queue.
type QueueChecker interface {
	Accepting() bool
	UnhealthySubscribers() []string
}

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// CheckResult contains the result of a health check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response is the health check response.
type Response struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Checker performs health checks on the delivery pipeline.
type Checker struct {
	queue QueueChecker

	mu           sync.RWMutex
	shuttingDown bool
}

// NewChecker creates a new health checker.
func NewChecker(queue QueueChecker) *Checker {
	return &Checker{queue: queue}
}

// Liveness returns true if the service is alive.
// This is a lightweight check that never consults dependencies.
// Failing this probe should trigger a container restart.
func (c *Checker) Liveness(ctx context.Context) *Response {
	return &Response{
		Status: StatusHealthy,
	}
}

// Readiness checks if the service is ready to accept traffic. The queue must
// be accepting events; unhealthy subscribers degrade the status without
// failing it, since delivery to the remaining subscribers continues.
// Failing this probe should remove the instance from load balancer rotation.
func (c *Checker) Readiness(ctx context.Context) *Response {
	c.mu.RLock()
	shuttingDown := c.shuttingDown
	c.mu.RUnlock()

	// Return unhealthy immediately if shutting down
	if shuttingDown {
		return &Response{
			Status: StatusUnhealthy,
			Checks: map[string]CheckResult{
				"shutdown": {Status: StatusUnhealthy, Message: "service is shutting down"},
			},
		}
	}

	checks := make(map[string]CheckResult)
	overallStatus := StatusHealthy

	queueCheck := c.checkQueue()
	checks["queue"] = queueCheck
	if queueCheck.Status != StatusHealthy {
		overallStatus = StatusUnhealthy
	}

	subscriberCheck := c.checkSubscribers()
	checks["subscribers"] = subscriberCheck
	if subscriberCheck.Status == StatusDegraded && overallStatus == StatusHealthy {
		overallStatus = StatusDegraded
	}

	return &Response{
		Status: overallStatus,
		Checks: checks,
	}
}

// checkQueue verifies the queue is accepting events.
func (c *Checker) checkQueue() CheckResult {
	if c.queue == nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: "queue not configured",
		}
	}
	if !c.queue.Accepting() {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: "queue is not accepting events",
		}
	}
	return CheckResult{
		Status: StatusHealthy,
	}
}

// checkSubscribers reports subscribers that are currently failing delivery.
func (c *Checker) checkSubscribers() CheckResult {
	if c.queue == nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: "queue not configured",
		}
	}
	unhealthy := c.queue.UnhealthySubscribers()
	if len(unhealthy) == 0 {
		return CheckResult{
			Status: StatusHealthy,
		}
	}
	return CheckResult{
		Status:  StatusDegraded,
		Message: fmt.Sprintf("unhealthy subscribers: %s", strings.Join(unhealthy, ", ")),
	}
}

// IsHealthy returns true if the overall status is healthy.
func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy
}

// IsReady returns true if the service should stay in rotation.
// A degraded service still serves traffic.
func (r *Response) IsReady() bool {
	return r.Status != StatusUnhealthy
}

// SetShuttingDown marks the service as shutting down.
// This causes readiness checks to return unhealthy, signaling
// load balancers to stop sending new traffic.
func (c *Checker) SetShuttingDown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shuttingDown = true
}
