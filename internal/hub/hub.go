// Package hub fans values out to in-process subscribers.
package hub

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/signalsfoundry/regionwatch/core"
)

// DefaultBuffer is the per-subscriber queue depth used when Subscribe is given
// a non-positive size.
const DefaultBuffer = 64

// Hub delivers each published value to every current subscriber. Publishing
// never blocks: a subscriber whose buffer is full misses the value.
type Hub[T any] struct {
	mu      sync.RWMutex
	nextID  uint64
	subs    map[uint64]chan T
	dropped atomic.Uint64
	closed  bool
}

// New returns an empty hub.
func New[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[uint64]chan T)}
}

// Subscribe registers a subscriber with the given buffer size. The returned
// cancel function removes the subscription and closes the channel; it is safe
// to call more than once.
func (h *Hub[T]) Subscribe(buffer int) (<-chan T, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan T, buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Publish offers v to every subscriber and returns how many accepted it.
func (h *Hub[T]) Publish(v T) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, ch := range h.subs {
		select {
		case ch <- v:
			delivered++
		default:
			h.dropped.Add(1)
		}
	}
	return delivered
}

// Len reports the number of active subscribers.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped reports how many deliveries were skipped because a subscriber was
// full.
func (h *Hub[T]) Dropped() uint64 { return h.dropped.Load() }

// Close closes every subscriber channel. Later subscriptions receive an
// already-closed channel.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// Publisher is a core.Publisher that feeds region names and markers into two
// hubs.
type Publisher struct {
	Regions *Hub[string]
	Markers *Hub[core.Marker]
}

var _ core.Publisher = (*Publisher)(nil)

// NewPublisher returns a Publisher with fresh hubs.
func NewPublisher() *Publisher {
	return &Publisher{Regions: New[string](), Markers: New[core.Marker]()}
}

// PublishRegion implements core.Publisher.
func (p *Publisher) PublishRegion(_ context.Context, name string) error {
	p.Regions.Publish(name)
	return nil
}

// PublishMarker implements core.Publisher.
func (p *Publisher) PublishMarker(_ context.Context, m core.Marker) error {
	p.Markers.Publish(m)
	return nil
}

// Close closes both hubs.
func (p *Publisher) Close() {
	p.Regions.Close()
	p.Markers.Close()
}
