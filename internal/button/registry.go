package button

import (
	"fmt"
	"sort"
	"sync"
)

// Registry keeps track of live buttons.
type Registry interface {
	// Register rejects the button if it cannot be recorded, e.g. on a
	// duplicate id.
	Register(b *Button) error
	// Unregister forgets the button. Unknown buttons are ignored.
	Unregister(b *Button)
}

// MemoryRegistry is an in-memory Registry keyed by button id.
type MemoryRegistry struct {
	mu      sync.RWMutex
	buttons map[string]*Button
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{buttons: make(map[string]*Button)}
}

// Register implements Registry.
func (r *MemoryRegistry) Register(b *Button) error {
	if b == nil {
		return ErrInvalidHandle
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.buttons[b.id]; ok {
		return fmt.Errorf("button %q already registered", b.id)
	}
	r.buttons[b.id] = b
	return nil
}

// Unregister implements Registry. Only the registered instance is removed.
func (r *MemoryRegistry) Unregister(b *Button) {
	if b == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.buttons[b.id]; ok && cur == b {
		delete(r.buttons, b.id)
	}
}

// Get returns the live button with the given id.
func (r *MemoryRegistry) Get(id string) (*Button, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.buttons[id]
	if !ok {
		return nil, fmt.Errorf("button %q: %w", id, ErrInvalidHandle)
	}
	return b, nil
}

// All returns the live buttons sorted by id.
func (r *MemoryRegistry) All() []*Button {
	r.mu.RLock()
	out := make([]*Button, 0, len(r.buttons))
	for _, b := range r.buttons {
		out = append(out, b)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Len returns the number of live buttons.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buttons)
}
