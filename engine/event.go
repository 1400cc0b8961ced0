package engine

import (
	"slices"
	"sync"
)

// Event is a list of handlers called in registration order. The zero value is ready to use and safe for
// concurrent use.
type Event[T any] struct {
	mu       sync.Mutex
	handlers []func(T)
}

// Add registers a handler.
//
// Parameters:
//   - handler: the function called on every Trigger
func (e *Event[T]) Add(handler func(T)) {
	if handler == nil {
		return
	}
	e.mu.Lock()
	e.handlers = append(e.handlers, handler)
	e.mu.Unlock()
}

// Trigger calls every handler with arg. Handlers added during the call are called from the next Trigger on.
func (e *Event[T]) Trigger(arg T) {
	e.mu.Lock()
	handlers := slices.Clone(e.handlers)
	e.mu.Unlock()
	for _, h := range handlers {
		h(arg)
	}
}

// Len returns the number of handlers.
func (e *Event[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers)
}
