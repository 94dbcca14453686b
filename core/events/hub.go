package events

import (
	"sync"

	"mintgate/core/types"
)

const subscriberBuffer = 64

// Hub fans emitted events out to live subscribers. Slow subscribers drop
// events rather than stall the emitting transaction.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan *types.Event
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan *types.Event)}
}

// Emit implements the Emitter interface for events that can render a
// canonical payload.
func (h *Hub) Emit(evt Event) {
	if h == nil || evt == nil {
		return
	}
	payload, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	rendered := payload.Event()
	if rendered == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- rendered:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel along with a
// cancel function that closes the channel and releases the slot.
func (h *Hub) Subscribe() (<-chan *types.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan *types.Event, subscriberBuffer)
	h.subs[id] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if existing, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}
