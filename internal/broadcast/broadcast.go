// Package broadcast carries the cross-context invalidation signal. A signal
// has no payload: receivers must re-read the durable store themselves.
package broadcast

import (
	"log/slog"
	"sync"
)

// Signal is the only message ever posted on a channel.
const Signal = "update"

// Channel delivers the update signal to every other context sharing a name.
type Channel interface {
	// Post is fire-and-forget; there is no acknowledgment.
	Post() error
	// OnReceive installs the handler run for each signal from another context.
	OnReceive(fn func())
	Close() error
}

// Bus is an in-process registry of named channels.
type Bus struct {
	mu       sync.RWMutex
	channels map[string]map[*Endpoint]struct{}
	logger   *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		channels: make(map[string]map[*Endpoint]struct{}),
		logger:   logger,
	}
}

// Open joins the named channel and returns a new endpoint on it.
func (b *Bus) Open(name string) *Endpoint {
	e := &Endpoint{
		bus:     b,
		name:    name,
		pending: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	if b.channels[name] == nil {
		b.channels[name] = make(map[*Endpoint]struct{})
	}
	b.channels[name][e] = struct{}{}
	b.mu.Unlock()

	go e.run()
	return e
}

// EndpointCount returns the number of open endpoints on the named channel.
func (b *Bus) EndpointCount(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels[name])
}

func (b *Bus) post(from *Endpoint) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for e := range b.channels[from.name] {
		if e == from {
			continue
		}
		select {
		case e.pending <- struct{}{}:
		default:
			// A signal is already queued for this endpoint and will cover this one.
		}
	}
}

func (b *Bus) leave(e *Endpoint) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	members, ok := b.channels[e.name]
	if !ok {
		return false
	}
	if _, ok := members[e]; !ok {
		return false
	}
	delete(members, e)
	if len(members) == 0 {
		delete(b.channels, e.name)
	}
	return true
}

// Endpoint is one context's handle on a named bus channel.
type Endpoint struct {
	bus     *Bus
	name    string
	pending chan struct{}
	done    chan struct{}

	mu      sync.RWMutex
	handler func()
}

var _ Channel = (*Endpoint)(nil)

// Post signals every other endpoint on the channel.
func (e *Endpoint) Post() error {
	e.bus.post(e)
	return nil
}

// OnReceive sets the receive handler, replacing any previous one.
func (e *Endpoint) OnReceive(fn func()) {
	e.mu.Lock()
	e.handler = fn
	e.mu.Unlock()
}

// Close leaves the channel and stops delivery. Closing twice is a no-op.
func (e *Endpoint) Close() error {
	if e.bus.leave(e) {
		close(e.done)
	}
	return nil
}

func (e *Endpoint) run() {
	for {
		select {
		case <-e.done:
			return
		case <-e.pending:
			e.deliver()
		}
	}
}

func (e *Endpoint) deliver() {
	e.mu.RLock()
	fn := e.handler
	e.mu.RUnlock()
	if fn == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			e.bus.logger.Error("broadcast handler panicked", "channel", e.name, "panic", r)
		}
	}()
	fn()
}
