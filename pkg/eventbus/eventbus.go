// Package eventbus implements an in-process publish/subscribe bus for
// the dispatcher's coordination events. Delivery is best-effort and
// unordered relative to seat claim/release outcomes — subscribers must
// treat every delivery as a hint, never a guarantee, and re-derive
// ground truth from the seat store rather than trusting event content.
package eventbus

import (
	"sync"
)

// EventType names one of the four event kinds this bus carries.
type EventType string

const (
	PendingProxyEventType   EventType = "PendingProxyEvent"
	SeatAvailableEventType  EventType = "SeatAvailableEvent"
	SeatClaimedEventType    EventType = "SeatClaimedEvent"
	SeatReleasedEventType   EventType = "SeatReleasedEvent"
)

// PendingProxyEvent: dispatcher → scaler, "I have a waiter."
type PendingProxyEvent struct {
	SpecID  string
	ProxyID string
}

// SeatAvailableEvent: scaler/seat-store → dispatchers, "a seat just
// appeared; wake waiters." IntendedProxyID is optional: when set, only
// that waiter should be woken; when empty, any waiter on SpecID may be.
type SeatAvailableEvent struct {
	SpecID          string
	IntendedProxyID string
}

// SeatClaimedEvent and SeatReleasedEvent are observability-only events.
type SeatClaimedEvent struct {
	SpecID  string
	ProxyID string
}

type SeatReleasedEvent struct {
	SpecID  string
	SeatID  string
	ProxyID string
	Reason  string
}

// Handler receives a published event. It must not block for long —
// handlers run synchronously on the publishing goroutine in this
// implementation, so a slow handler delays every other subscriber and
// the publisher itself.
type Handler func(event interface{})

// Bus is a single-process, typed fan-out publisher/subscriber.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Handler
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[EventType][]Handler)}
}

// Subscribe registers handler to be invoked for every event published
// under eventType. Registration is append-only; there is no
// Unsubscribe because dispatchers subscribe for their entire process
// lifetime.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish delivers event to every handler registered under eventType,
// in registration order. A panicking handler is recovered and does not
// prevent delivery to the remaining handlers.
func (b *Bus) Publish(eventType EventType, event interface{}) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[eventType]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		invokeSafely(h, event)
	}
}

func invokeSafely(h Handler, event interface{}) {
	defer func() {
		_ = recover()
	}()
	h(event)
}
