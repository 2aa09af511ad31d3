// Package events is a small synchronous publish/subscribe bus connecting the
// storefront components.
package events

import "sync"

// Topic names an event stream.
type Topic string

const (
	// SessionChanged is published on login, logout and forced logout.
	// Payload: session.State.
	SessionChanged Topic = "session.changed"
	// OrderPlaced is published after a successful checkout.
	// Payload: the checkout receipt.
	OrderPlaced Topic = "order.placed"
	// CartChanged mirrors cart mutations. Payload: cart.Change.
	CartChanged Topic = "cart.changed"
)

// Event is a published message.
type Event struct {
	Topic   Topic
	Payload any
}

// Publisher publishes events.
type Publisher interface {
	Publish(e Event)
}

type handler struct {
	id uint64
	fn func(Event)
}

// Bus delivers events to handlers synchronously, in subscription order.
type Bus struct {
	mu       sync.Mutex
	handlers map[Topic][]handler
	next     uint64
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Topic][]handler)}
}

// Subscribe registers fn for topic and returns a function removing it.
func (b *Bus) Subscribe(topic Topic, fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[topic] = append(b.handlers[topic], handler{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		hs := b.handlers[topic]
		for i, h := range hs {
			if h.id == id {
				b.handlers[topic] = append(hs[:i:i], hs[i+1:]...)
				return
			}
		}
	}
}

// Publish calls every handler of e.Topic. Handlers run outside the lock and
// may publish or subscribe themselves.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	hs := append([]handler(nil), b.handlers[e.Topic]...)
	b.mu.Unlock()

	for _, h := range hs {
		h.fn(e)
	}
}
