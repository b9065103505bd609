package circuitbreaker

import (
	"slices"
	"sync"
)

// Registry holds one breaker per delivery destination, created lazily on
// first access so callers never coordinate breaker setup. All breakers share
// the registry's config.
type Registry struct {
	mu       sync.RWMutex
	defaults Config
	byKey    map[string]*Breaker
}

// Stats is a point-in-time census of the registry by breaker state.
type Stats struct {
	Total    int
	Open     int
	HalfOpen int
	Closed   int
}

// NewRegistry creates an empty registry. cfg applies to every breaker the
// registry creates.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		defaults: cfg,
		byKey:    make(map[string]*Breaker),
	}
}

// Get returns the breaker for key, creating it on first use. Concurrent
// callers for the same key always observe the same breaker.
func (r *Registry) Get(key string) *Breaker {
	r.mu.RLock()
	b := r.byKey[key]
	r.mu.RUnlock()
	if b != nil {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b = r.byKey[key]; b == nil {
		b = New(r.defaults)
		r.byKey[key] = b
	}
	return b
}

// Stats counts breakers per state.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{Total: len(r.byKey)}
	for _, b := range r.byKey {
		switch b.State() {
		case Closed:
			s.Closed++
		case Open:
			s.Open++
		case HalfOpen:
			s.HalfOpen++
		}
	}
	return s
}

// Reset closes every breaker and clears its failure history.
func (r *Registry) Reset() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.byKey {
		b.Reset()
	}
}

// Remove drops the breaker for key. A later Get starts fresh.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byKey, key)
}

// Keys lists the known destinations in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
