package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	ReservationCreated   = "reservation.created"
	ReservationCancelled = "reservation.cancelled"
	ReservationsReset    = "reservations.reset"
	ReservationsPurged   = "reservations.purged"
)

// SlotPayload accompanies reservation.created and reservation.cancelled.
type SlotPayload struct {
	Slot string `json:"slot"`
}

// ResetPayload accompanies reservations.reset.
type ResetPayload struct {
	Date string `json:"date"`
}

// PurgePayload accompanies reservations.purged.
type PurgePayload struct {
	Removed int64 `json:"removed"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON marshals payload and publishes it under eventType.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.Publish(Event{Type: eventType, Payload: data})
	return nil
}

// Decode unmarshals the event payload into out.
func (e Event) Decode(out interface{}) error {
	return json.Unmarshal(e.Payload, out)
}
