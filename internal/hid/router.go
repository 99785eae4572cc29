package hid

import (
	"fmt"
	"sync"

	"github.com/sweeney/gesture-button/internal/gpio"
)

// Router fans reports out to the sinks bound to each button index.
type Router struct {
	mu    sync.RWMutex
	sinks map[int]gpio.Sink
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{sinks: make(map[int]gpio.Sink)}
}

// Bind attaches sink to button index. An index can only be bound once.
func (r *Router) Bind(index int, sink gpio.Sink) error {
	if index < 0 || index >= MaxButtons {
		return fmt.Errorf("button index %d out of range [0,%d)", index, MaxButtons)
	}
	if sink == nil {
		return fmt.Errorf("nil sink for button index %d", index)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sinks[index]; ok {
		return fmt.Errorf("button index %d already bound", index)
	}
	r.sinks[index] = sink
	return nil
}

// Unbind detaches whatever is bound to index.
func (r *Router) Unbind(index int) {
	r.mu.Lock()
	delete(r.sinks, index)
	r.mu.Unlock()
}

// Dispatch delivers a report to the bound sinks. It returns the number of
// sinks that received it; unbound indices are ignored.
func (r *Router) Dispatch(rep Report) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, i := range rep.Buttons() {
		s, ok := r.sinks[i]
		if !ok {
			continue
		}
		gpio.Feed(s, rep.Kind == KindPress)
		n++
	}
	return n
}
