package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"riad/internal/domain"
	"riad/internal/events"
	"riad/internal/metrics"
	"riad/internal/retry"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultDeadLetterKey     = "riad:notifications:deadletter"
	defaultDeadLetterTimeout = 2 * time.Second
)

// Notification is one staff message produced from a reservation event.
type Notification struct {
	EventType     string    `json:"event_type"`
	ReservationID int64     `json:"reservation_id"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
	LastError     string    `json:"last_error,omitempty"`
}

// NotificationWorker delivers notifications off the request path. Enqueue
// never blocks; undeliverable messages go to a Redis dead-letter list when
// one is configured.
type NotificationWorker struct {
	notifier          domain.Notifier
	redis             *redis.Client
	retryPolicy       retry.Policy
	queue             chan Notification
	deadLetterKey     string
	deadLetterTimeout time.Duration
	logger            zerolog.Logger
}

// NewNotificationWorker builds a worker with sane defaults.
func NewNotificationWorker(notifier domain.Notifier, redisClient *redis.Client, policy retry.Policy, queueSize int, logger *zerolog.Logger) *NotificationWorker {
	if policy.MaxRetries == 0 {
		policy.MaxRetries = 5
	}
	if policy.InitialDelay == 0 {
		policy.InitialDelay = 2 * time.Second
	}
	if policy.MaxDelay == 0 {
		policy.MaxDelay = time.Minute
	}
	if policy.BackoffFactor == 0 {
		policy.BackoffFactor = 2
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	return &NotificationWorker{
		notifier:          notifier,
		redis:             redisClient,
		retryPolicy:       policy,
		queue:             make(chan Notification, queueSize),
		deadLetterKey:     defaultDeadLetterKey,
		deadLetterTimeout: defaultDeadLetterTimeout,
		logger:            logger.With().Str("component", "notification_worker").Logger(),
	}
}

// Attach subscribes the worker to every reservation event.
func (w *NotificationWorker) Attach(bus *events.EventBus) {
	bus.SubscribeAll(events.AllReservationEvents, w.HandleEvent)
}

// HandleEvent turns an event into a notification and queues it.
func (w *NotificationWorker) HandleEvent(event *events.Event) error {
	p, err := event.Decode()
	if err != nil {
		return fmt.Errorf("decode event %s: %w", event.Type, err)
	}
	w.Enqueue(Notification{
		EventType:     event.Type,
		ReservationID: p.ReservationID,
		Text:          FormatMessage(event.Type, p),
		CreatedAt:     event.CreatedAt,
	})
	return nil
}

// Enqueue reports false when the queue is full and the message was dropped.
func (w *NotificationWorker) Enqueue(n Notification) bool {
	select {
	case w.queue <- n:
		return true
	default:
		metrics.IncNotificationFailed()
		w.logger.Warn().Str("event_type", n.EventType).Int64("reservation_id", n.ReservationID).Msg("notification queue full, message dropped")
		n.LastError = "queue full"
		// вызывается из горутины запроса, Redis не должен её задерживать
		ctx, cancel := context.WithTimeout(context.Background(), w.deadLetterTimeout)
		defer cancel()
		w.pushDeadLetter(ctx, n)
		return false
	}
}

// Start launches main loop; stops when ctx is done.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("notification worker started")
	defer w.logger.Info().Msg("notification worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-w.queue:
			w.process(ctx, n)
		}
	}
}

func (w *NotificationWorker) process(ctx context.Context, n Notification) {
	attempts := 0
	err := w.retryPolicy.Do(ctx, func(error) bool { return true }, func() error {
		attempts++
		return w.notifier.Notify(ctx, n.Text)
	})
	if err == nil {
		return
	}

	metrics.IncNotificationFailed()
	w.logger.Error().Err(err).
		Str("event_type", n.EventType).
		Int64("reservation_id", n.ReservationID).
		Int("attempts", attempts).
		Msg("notification delivery failed")
	n.LastError = err.Error()
	w.pushDeadLetter(ctx, n)
}

func (w *NotificationWorker) pushDeadLetter(ctx context.Context, n Notification) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(n)
	if err != nil {
		w.logger.Error().Err(err).Msg("encode deadletter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("reservation_id", n.ReservationID).Msg("deadletter push failed")
	}
}

// FormatMessage renders the staff-facing text of an event.
func FormatMessage(eventType string, p events.ReservationEventPayload) string {
	room := fmt.Sprintf("room #%d", p.RoomID)
	if p.RoomNumber != "" {
		room = "room " + p.RoomNumber
	}
	stay := p.CheckIn + " → " + p.CheckOut

	switch eventType {
	case events.EventReservationCreated:
		msg := fmt.Sprintf("New reservation #%d: %s, %s, total %d", p.ReservationID, room, stay, p.TotalPrice)
		if p.Amount > 0 {
			msg += fmt.Sprintf(", deposit %d", p.Amount)
		}
		return msg
	case events.EventReservationCancelled:
		msg := fmt.Sprintf("Reservation #%d cancelled: %s, %s", p.ReservationID, room, stay)
		if p.PaymentKind != "" {
			msg += fmt.Sprintf(", %s %d", p.PaymentKind, p.Amount)
		}
		if p.Reason != "" {
			msg += fmt.Sprintf(" (%s)", p.Reason)
		}
		return msg
	case events.EventReservationCheckedIn:
		return fmt.Sprintf("Guest checked in: reservation #%d, %s", p.ReservationID, room)
	case events.EventReservationCheckedOut:
		return fmt.Sprintf("Guest checked out: reservation #%d, %s", p.ReservationID, room)
	case events.EventPaymentRecorded:
		return fmt.Sprintf("Payment on reservation #%d: %s %d", p.ReservationID, p.PaymentKind, p.Amount)
	default:
		return fmt.Sprintf("%s: reservation #%d", eventType, p.ReservationID)
	}
}
