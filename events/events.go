// Package events provides the in-process event hub for hub lifecycle and
// sensor activity.
//
// The orchestrator publishes per-hub initialized/finalized events and each
// hub publishes its state transitions. Subscribers receive events on buffered
// channels; a slow subscriber loses events rather than stalling a publisher.
package events

import (
	"sync"
	"time"
)

// Event is one published occurrence.
type Event struct {
	Type string                 `json:"type"`
	Hub  string                 `json:"hub,omitempty"`
	Data map[string]interface{} `json:"data,omitempty"`
	TS   time.Time              `json:"ts"`
}

// Hub fans events out to subscribers.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Event
	closed bool
}

// NewHub creates an event hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber with the given channel buffer. The
// returned cancel func unregisters and closes the channel; calling it more
// than once is safe.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber without blocking. Events to
// full subscriber buffers are dropped.
func (h *Hub) Publish(ev Event) {
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close unregisters all subscribers and closes their channels. Publish and
// Subscribe after Close are no-ops.
func (h *Hub) Close() {
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
