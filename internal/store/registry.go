package store

import (
	"log/slog"
	"sync"
)

// Registry is the change notification registry of one Store. Each Subscribe
// call adds a separate entry; the registry does not deduplicate callbacks.
type Registry struct {
	mu        sync.Mutex
	next      uint64
	listeners map[uint64]func()
	logger    *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		listeners: make(map[uint64]func()),
		logger:    logger,
	}
}

// Subscribe registers fn and returns a function that removes it again.
func (r *Registry) Subscribe(fn func()) func() {
	r.mu.Lock()
	id := r.next
	r.next++
	r.listeners[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// Len returns the number of registered callbacks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// NotifyAll runs every callback synchronously, in no particular order. A
// panicking callback is logged and does not stop the others.
func (r *Registry) NotifyAll() {
	r.mu.Lock()
	fns := make([]func(), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		r.invoke(fn)
	}
}

func (r *Registry) invoke(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("change listener panicked", "panic", p)
		}
	}()
	fn()
}
