package health

import "sync"

// Registry tracks per-subscriber delivery health.
//
// Subscribers start healthy and unknown ids read as healthy, so a registry
// only ever reports problems it has actually observed.
type Registry struct {
	mu    sync.RWMutex
	state map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		state: make(map[string]bool),
	}
}

// Healthy reports whether a subscriber is healthy. Unknown ids are healthy.
func (r *Registry) Healthy(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	healthy, known := r.state[id]
	if !known {
		return true
	}
	return healthy
}

// Set records the health of a subscriber.
func (r *Registry) Set(id string, healthy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[id] = healthy
}

// Snapshot returns a copy of the current health state.
func (r *Registry) Snapshot() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]bool, len(r.state))
	for id, healthy := range r.state {
		out[id] = healthy
	}
	return out
}

// Unhealthy returns the ids currently marked unhealthy.
func (r *Registry) Unhealthy() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for id, healthy := range r.state {
		if !healthy {
			out = append(out, id)
		}
	}
	return out
}
