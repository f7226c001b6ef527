// Package notify fans post-change signals out to observers. Change
// signals carry no payload: consumers re-read the current state of the
// post they care about. Alerts carry the user-facing messages the action
// engine produces on rollback.
package notify

import (
	"sync"
	"sync/atomic"

	"roostdb/pkg/logger"
	"roostdb/pkg/telemetry"
)

// Alert is a user-facing message surfaced outside the core protocol.
type Alert struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

type Hub struct {
	mu     sync.RWMutex
	nextID uint64

	byPost map[int64]map[uint64]chan struct{}
	global map[uint64]chan int64
	alerts map[uint64]chan Alert

	dropped uint64
}

func NewHub() *Hub {
	return &Hub{
		byPost: make(map[int64]map[uint64]chan struct{}),
		global: make(map[uint64]chan int64),
		alerts: make(map[uint64]chan Alert),
	}
}

// Subscribe registers interest in one post id. The returned channel
// receives a coalesced ping per change; the cancel func releases the
// subscription and closes the channel.
func (h *Hub) Subscribe(postID int64) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	subs := h.byPost[postID]
	if subs == nil {
		subs = make(map[uint64]chan struct{})
		h.byPost[postID] = subs
	}
	subs[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if subs, ok := h.byPost[postID]; ok {
			if _, ok := subs[id]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(h.byPost, postID)
				}
				close(ch)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// SubscribeAll registers a stream of changed post ids. Slow consumers
// lose signals rather than ever blocking the notifier.
func (h *Hub) SubscribeAll() (<-chan int64, func()) {
	ch := make(chan int64, 64)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.global[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.global[id]; ok {
			delete(h.global, id)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// SubscribeAlerts registers a stream of user-facing alert messages.
func (h *Hub) SubscribeAlerts() (<-chan Alert, func()) {
	ch := make(chan Alert, 16)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.alerts[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.alerts[id]; ok {
			delete(h.alerts, id)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Changed signals that the post's state was mutated. Per-post pings
// coalesce; a pending ping already says everything a second one would.
func (h *Hub) Changed(postID int64) {
	h.mu.RLock()
	for _, ch := range h.byPost[postID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	for _, ch := range h.global {
		select {
		case ch <- postID:
		default:
			atomic.AddUint64(&h.dropped, 1)
			telemetry.EventsDropped.Inc()
		}
	}
	h.mu.RUnlock()
}

// Alert publishes a user-facing message to alert subscribers.
func (h *Hub) Alert(level, text string) {
	logger.Debug("alert_published", "level", level, "text", text)
	h.mu.RLock()
	for _, ch := range h.alerts {
		select {
		case ch <- Alert{Level: level, Text: text}:
		default:
			atomic.AddUint64(&h.dropped, 1)
			telemetry.EventsDropped.Inc()
		}
	}
	h.mu.RUnlock()
}

// Dropped returns the number of signals lost to full subscriber buffers.
func (h *Hub) Dropped() uint64 { return atomic.LoadUint64(&h.dropped) }
