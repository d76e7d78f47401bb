// Package hub fans transient notification events out to currently-connected
// administrator channels. Events are broadcast once: no persistence, no
// replay, no delivery guarantee. A late subscriber simply starts from the
// next event.
package hub

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/deivygoficial/supermercado-app/internal/domain"
)

// subscriptionBuffer bounds how far a slow consumer may lag before it is
// treated as a failed writer and dropped.
const subscriptionBuffer = 16

// Subscription is one registered channel. It is owned by the hub from
// Subscribe until Unsubscribe (or until a publish drops it); the consumer
// only reads Events.
type Subscription struct {
	ch chan []byte
}

// Events yields serialized NotificationEvent payloads. The channel is closed
// when the subscription is removed from the hub.
func (s *Subscription) Events() <-chan []byte {
	return s.ch
}

// Hub is an injected collaborator: one instance per service, no package-level
// state. Subscribe, Unsubscribe and Publish interleave safely; the registry
// is guarded by a mutex and every Publish is atomic with respect to registry
// mutation.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

func New() *Hub {
	return &Hub{
		subs: make(map[*Subscription]struct{}),
	}
}

func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{ch: make(chan []byte, subscriptionBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes the subscription and closes its channel. Unsubscribing
// twice, or unsubscribing a subscription a publish already dropped, is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(sub)
}

// remove must be called with the mutex held.
func (h *Hub) remove(sub *Subscription) {
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
}

// Publish serializes the event once and writes it to every registered
// subscription. A subscription that cannot accept the write is removed and
// the fan-out continues; Publish never fails. Publishing with zero
// subscribers is a no-op.
func (h *Hub) Publish(event domain.NotificationEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("hub: failed to marshal %s event: %v", event.Type, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.ch <- data:
		default:
			// Writer is gone or hopelessly behind; it fetches current
			// state from the order store when it reconnects.
			h.remove(sub)
		}
	}
}

// Count reports the number of registered subscriptions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close drops every subscription and rejects future subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		h.remove(sub)
	}
}
