package hub

import "sync"

// Registry is the ordered collection of every built hub. It is append-only
// during the construction phase; the orchestrator iterates it and never
// mutates it. Entries persist after teardown so diagnostics can still report
// on disconnected hubs.
//
// Construction is expected from a single goroutine, but the registry guards
// itself anyway: Build and orchestration may run on different goroutines in
// test harnesses.
type Registry struct {
	mu   sync.RWMutex
	hubs []*Hub
}

// NewRegistry creates an empty registry. One registry per program run.
func NewRegistry() *Registry {
	return &Registry{}
}

// add appends a hub at Build time.
func (r *Registry) add(h *Hub) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hubs = append(r.hubs, h)
}

// Hubs returns the hubs in registration order.
func (r *Registry) Hubs() []*Hub {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Hub, len(r.hubs))
	copy(out, r.hubs)
	return out
}

// Len reports how many hubs have been registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hubs)
}
