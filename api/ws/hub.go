package ws

import (
	"sync"

	"riptide/domain/orderbook"
)

// eventHub fans engine events out to the connected event streams.
// Subscriptions are keyed by a monotonically assigned id so that
// unsubscribing twice, or after a broadcast, is harmless.
type eventHub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan orderbook.OrderEvent
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[uint64]chan orderbook.OrderEvent)}
}

// subscribe registers a stream and returns its id and channel. The
// channel is closed by unsubscribe.
func (h *eventHub) subscribe(buffer int) (uint64, <-chan orderbook.OrderEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	ch := make(chan orderbook.OrderEvent, buffer)
	h.subs[h.nextID] = ch
	return h.nextID, ch
}

func (h *eventHub) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// broadcast never blocks the engine path: a subscriber whose buffer
// is full misses the event.
func (h *eventHub) broadcast(ev orderbook.OrderEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// count reports the number of live subscriptions.
func (h *eventHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
