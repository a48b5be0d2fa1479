package broadcast

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the channel capacity used when Subscribe is given zero
const DefaultBuffer = 64

// Observer receives delivery statistics, typically for metrics
type Observer interface {
	EventPublished(name string, subscribers int)
	EventDropped(name string)
}

// Forwarder ships locally published events to other nodes
type Forwarder interface {
	Forward(ev Event)
}

// Hub fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}

	forwarder Forwarder
	observer  Observer
	logger    *slog.Logger

	published atomic.Uint64
	dropped   atomic.Uint64
}

// Option configures a Hub
type Option func(*Hub)

// WithLogger sets the hub logger
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithObserver sets the delivery observer
func WithObserver(o Observer) Option {
	return func(h *Hub) {
		h.observer = o
	}
}

// NewHub creates an empty hub
func NewHub(opts ...Option) *Hub {
	h := &Hub{subs: make(map[chan Event]struct{})}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// SetForwarder attaches a relay for cross-node delivery
func (h *Hub) SetForwarder(f Forwarder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.forwarder = f
}

// Subscribe registers a new subscriber channel
func (h *Hub) Subscribe(buffer int) chan Event {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch
}

// Unsubscribe removes and closes a subscriber channel. Unknown channels are ignored.
func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[ch]; !ok {
		return
	}
	delete(h.subs, ch)
	close(ch)
}

// Publish delivers an event locally and forwards it to other nodes
func (h *Hub) Publish(name string, data any) {
	ev := NewEvent(name, data)
	h.Deliver(ev)

	h.mu.RLock()
	f := h.forwarder
	h.mu.RUnlock()
	if f != nil {
		f.Forward(ev)
	}
}

// Deliver hands an event to local subscribers only
func (h *Hub) Deliver(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for ch := range h.subs {
		select {
		case ch <- ev:
			delivered++
		default:
			h.dropped.Add(1)
			if h.observer != nil {
				h.observer.EventDropped(ev.Name)
			}
		}
	}
	h.published.Add(1)

	if h.observer != nil {
		h.observer.EventPublished(ev.Name, delivered)
	}
	if delivered < len(h.subs) {
		h.logger.Warn("slow subscribers skipped", "event", ev.Name, "skipped", len(h.subs)-delivered)
	}
}

// Subscribers returns the number of registered subscribers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Stats returns the number of published events and dropped deliveries
func (h *Hub) Stats() (published, dropped uint64) {
	return h.published.Load(), h.dropped.Load()
}

// Close unsubscribes everyone
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
