package service

import (
	"context"
	"fmt"
	"time"

	"riad/internal/domain"
	"riad/internal/events"
	"riad/internal/metrics"
	"riad/internal/models"

	"github.com/rs/zerolog"
)

type PaymentLedger struct {
	repo     domain.Repository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewPaymentLedger(repo domain.Repository, eventBus domain.EventPublisher, logger *zerolog.Logger) *PaymentLedger {
	return &PaymentLedger{repo: repo, eventBus: eventBus, logger: logger}
}

// ValidateDeposit checks the deposit offered at creation against the quote:
// at least the required deposit and never more than the total.
func (l *PaymentLedger) ValidateDeposit(amount int64, quote models.Quote) error {
	if amount < 0 {
		return fmt.Errorf("%w: deposit must not be negative", domain.ErrInvalidAmount)
	}
	if amount < quote.Deposit {
		return fmt.Errorf("%w: deposit %d is below required %d", domain.ErrInvalidAmount, amount, quote.Deposit)
	}
	if amount > quote.Total {
		return fmt.Errorf("%w: deposit %d exceeds total %d", domain.ErrInvalidAmount, amount, quote.Total)
	}
	return nil
}

func (l *PaymentLedger) RecordDeposit(ctx context.Context, reservationID, amount int64) (*models.PaymentEntry, error) {
	return l.recordPayment(ctx, reservationID, models.PaymentDeposit, amount)
}

func (l *PaymentLedger) RecordSettlement(ctx context.Context, reservationID, amount int64) (*models.PaymentEntry, error) {
	return l.recordPayment(ctx, reservationID, models.PaymentSettlement, amount)
}

func (l *PaymentLedger) recordPayment(ctx context.Context, reservationID int64, kind string, amount int64) (*models.PaymentEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidAmount)
	}

	entry := &models.PaymentEntry{ReservationID: reservationID, Kind: kind, Amount: amount}
	if err := l.repo.CreatePaymentEntryWithLock(ctx, entry); err != nil {
		return nil, err
	}

	metrics.IncPaymentEntry(kind)
	l.publish(ctx, entry)
	return entry, nil
}

// RecordCancellationEntry appends the refund or penalty of a reservation that
// was cancelled without one. The reservation must already be cancelled, the
// amount is capped at what was paid, and only one such entry may exist.
func (l *PaymentLedger) RecordCancellationEntry(ctx context.Context, reservationID int64, kind string, amount int64) (*models.PaymentEntry, error) {
	if !models.IsCancellationKind(kind) {
		return nil, fmt.Errorf("%w: kind must be refund or penalty", domain.ErrInvalidInput)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidAmount)
	}

	entry := &models.PaymentEntry{ReservationID: reservationID, Kind: kind, Amount: amount}
	if err := l.repo.CreateCancellationEntry(ctx, entry); err != nil {
		return nil, err
	}
	metrics.IncPaymentEntry(kind)
	return entry, nil
}

// CancellationEntry turns a policy decision into the single entry appended
// on cancellation, or nil when nothing moves.
func (l *PaymentLedger) CancellationEntry(d models.Decision) *models.PaymentEntry {
	switch {
	case d.Outcome == models.OutcomePenalty && d.Penalty > 0:
		return &models.PaymentEntry{Kind: models.PaymentPenalty, Amount: d.Penalty}
	case d.Outcome == models.OutcomeNone && d.Paid > 0:
		return &models.PaymentEntry{Kind: models.PaymentRefund, Amount: d.Paid}
	default:
		return nil
	}
}

// Balance is what the guest still owes: total minus deposits and
// settlements, never negative. Nothing is owed on a cancelled reservation.
func (l *PaymentLedger) Balance(ctx context.Context, reservationID int64) (int64, error) {
	res, err := l.repo.GetReservation(ctx, reservationID)
	if err != nil {
		return 0, err
	}
	if res.Status == models.StatusCancelled {
		return 0, nil
	}

	paid, err := l.repo.GetPaidAmount(ctx, reservationID)
	if err != nil {
		return 0, err
	}
	balance := res.TotalPrice - paid
	if balance < 0 {
		balance = 0
	}
	return balance, nil
}

// Entries lists the ledger of a reservation, oldest first.
func (l *PaymentLedger) Entries(ctx context.Context, reservationID int64) ([]*models.PaymentEntry, error) {
	if _, err := l.repo.GetReservation(ctx, reservationID); err != nil {
		return nil, err
	}
	return l.repo.GetPaymentEntries(ctx, reservationID)
}

func (l *PaymentLedger) publish(ctx context.Context, entry *models.PaymentEntry) {
	if l.eventBus == nil {
		return
	}
	res, err := l.repo.GetReservation(ctx, entry.ReservationID)
	if err != nil {
		l.logger.Warn().Err(err).Int64("reservation_id", entry.ReservationID).Msg("payment event skipped")
		return
	}

	payload := reservationPayload(res, time.Now())
	payload.PaymentKind = entry.Kind
	payload.Amount = entry.Amount
	if err := l.eventBus.PublishJSON(events.EventPaymentRecorded, payload); err != nil {
		l.logger.Error().Err(err).Int64("reservation_id", entry.ReservationID).Msg("publish event error")
	}
}
