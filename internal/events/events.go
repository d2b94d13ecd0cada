// Package events is a synchronous in-process pub/sub used to refresh the UI after state changes.
package events

import (
	"sync"
	"time"
)

// Event types published by the client.
const (
	SessionChanged = "session.changed"
	TabChanged     = "tab.changed"
	DataChanged    = "data.changed"
)

// Event represents a lightweight client event.
type Event struct {
	Type      string
	Payload   any
	CreatedAt time.Time
}

// Handler reacts to an event.
type Handler func(event Event)

// Bus dispatches events to subscribers on the publisher's goroutine.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers before returning.
func (b *Bus) Publish(eventType string, payload any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[eventType]...)
	b.mu.RUnlock()

	ev := Event{Type: eventType, Payload: payload, CreatedAt: time.Now()}
	for _, handler := range handlers {
		handler(ev)
	}
}
