package events

import (
	"github.com/rs/zerolog"
)

// AuditLogger writes every reservation event as a structured log line.
type AuditLogger struct {
	logger zerolog.Logger
}

func NewAuditLogger(logger *zerolog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.With().Str("component", "audit").Logger()}
}

// Attach subscribes the audit logger to all reservation events.
func (a *AuditLogger) Attach(bus *EventBus) {
	bus.SubscribeAll(AllReservationEvents, a.Handle)
}

func (a *AuditLogger) Handle(event *Event) error {
	p, err := event.Decode()
	if err != nil {
		a.logger.Warn().Err(err).Str("event_type", event.Type).Msg("undecodable audit event")
		return err
	}

	e := a.logger.Info().
		Str("event_type", event.Type).
		Int64("reservation_id", p.ReservationID).
		Int64("room_id", p.RoomID).
		Str("status", p.Status).
		Str("check_in", p.CheckIn).
		Str("check_out", p.CheckOut).
		Time("occurred_at", p.OccurredAt)
	if p.PaymentKind != "" {
		e = e.Str("payment_kind", p.PaymentKind).Int64("amount", p.Amount)
	}
	if p.Reason != "" {
		e = e.Str("reason", p.Reason)
	}
	if p.ChangedByID != 0 {
		e = e.Int64("changed_by_id", p.ChangedByID)
	}
	e.Msg("reservation event")
	return nil
}
