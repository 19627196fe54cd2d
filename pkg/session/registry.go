// Package session tracks which speakers currently have an active audio
// capture. The registry is the single-flight guard that prevents overlapping
// captures for one speaker while leaving distinct speakers fully concurrent.
package session

import "sync"

// Registry is a thread-safe set of active speaker IDs.
// The zero value is not usable; call NewRegistry.
type Registry struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]struct{})}
}

// TryBegin atomically marks the speaker active. It returns true iff no
// capture was active for that speaker; on false the caller must ignore the
// triggering event.
func (r *Registry) TryBegin(speakerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.active[speakerID]; busy {
		return false
	}
	r.active[speakerID] = struct{}{}
	return true
}

// End clears the active marker for the speaker. Idempotent.
func (r *Registry) End(speakerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, speakerID)
}

// Active reports whether the speaker currently has a capture in flight.
func (r *Registry) Active(speakerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, busy := r.active[speakerID]
	return busy
}

// Count returns the number of active captures.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
