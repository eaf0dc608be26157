// Package telemetry exposes focus engine activity: a fan-out hub of focus
// changes, prometheus metrics and OpenTelemetry tracing.
package telemetry

import (
	"sync"
	"time"

	"github.com/odvcencio/regionfocus/pkg/focus"
)

// DefaultSubscriberBuffer is the channel size handed to each subscriber.
const DefaultSubscriberBuffer = 64

// Hub fans focus changes out to any number of subscribers. It implements
// focus.Observer so it can be registered directly on a Manager.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan focus.Change]struct{}
	buffer      int
	dropped     uint64
	closed      bool
}

// NewHub constructs a hub with the default subscriber buffer.
func NewHub() *Hub {
	return NewHubWithBuffer(DefaultSubscriberBuffer)
}

// NewHubWithBuffer constructs a hub whose subscribers get buffer slots each.
func NewHubWithBuffer(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Hub{subscribers: make(map[chan focus.Change]struct{}), buffer: buffer}
}

// FocusChanged implements focus.Observer.
func (h *Hub) FocusChanged(c focus.Change) {
	h.Publish(c)
}

// Publish delivers c to every subscriber without blocking. Subscribers that
// cannot keep up miss the change.
func (h *Hub) Publish(c focus.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if c.At.IsZero() {
		c.At = time.Now()
	}
	for ch := range h.subscribers {
		select {
		case ch <- c:
		default:
			h.dropped++
		}
	}
}

// Subscribe returns a channel of future changes and a cleanup func.
func (h *Hub) Subscribe() (<-chan focus.Change, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		empty := make(chan focus.Change)
		close(empty)
		return empty, func() {}
	}
	ch := make(chan focus.Change, h.buffer)
	h.subscribers[ch] = struct{}{}
	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
	}
	return ch, unsubscribe
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Close unsubscribes all listeners and prevents future publications.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, ch)
	}
}
