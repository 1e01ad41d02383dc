package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventReservationCreated    = "reservation_created"
	EventReservationCancelled  = "reservation_cancelled"
	EventReservationCheckedIn  = "reservation_checked_in"
	EventReservationCheckedOut = "reservation_checked_out"
	EventPaymentRecorded       = "payment_recorded"
)

// AllReservationEvents lists the event types emitted by the reservation ledger.
var AllReservationEvents = []string{
	EventReservationCreated,
	EventReservationCancelled,
	EventReservationCheckedIn,
	EventReservationCheckedOut,
	EventPaymentRecorded,
}

// ReservationEventPayload is the reservation snapshot delivered to subscribers.
type ReservationEventPayload struct {
	ReservationID int64     `json:"reservation_id"`
	CustomerID    int64     `json:"customer_id"`
	RoomID        int64     `json:"room_id"`
	RoomNumber    string    `json:"room_number,omitempty"`
	CheckIn       string    `json:"check_in"`
	CheckOut      string    `json:"check_out"`
	Status        string    `json:"status"`
	TotalPrice    int64     `json:"total_price"`
	PaymentKind   string    `json:"payment_kind,omitempty"`
	Amount        int64     `json:"amount,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	ChangedByID   int64     `json:"changed_by_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the reservation payload.
func (e *Event) Decode() (ReservationEventPayload, error) {
	var p ReservationEventPayload
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	onError     func(event *Event, err error)
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError sets a callback for handler failures; by default they are dropped.
func (b *EventBus) OnError(fn func(event *Event, err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers one handler for several event types.
func (b *EventBus) SubscribeAll(eventTypes []string, handler EventHandler) {
	for _, t := range eventTypes {
		b.Subscribe(t, handler)
	}
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
