package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"riad/internal/domain"
	"riad/internal/events"
	"riad/internal/metrics"
	"riad/internal/models"
	"riad/internal/pricing"

	"github.com/rs/zerolog"
)

const maxVersionAttempts = 3

// CreateParams is the input of ReservationService.Create. Deposit is the
// amount taken at booking time in minor units.
type CreateParams struct {
	CustomerID int64
	RoomID     int64
	CheckIn    time.Time
	CheckOut   time.Time
	CreatedBy  int64
	Deposit    int64
}

// ReservationService owns the reservation state machine.
type ReservationService struct {
	repo         domain.Repository
	availability *AvailabilityChecker
	ledger       *PaymentLedger
	policy       *CancellationPolicy
	pricing      *pricing.Calculator
	eventBus     domain.EventPublisher
	logger       *zerolog.Logger
}

func NewReservationService(
	repo domain.Repository,
	ledger *PaymentLedger,
	policy *CancellationPolicy,
	calc *pricing.Calculator,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *ReservationService {
	return &ReservationService{
		repo:         repo,
		availability: NewAvailabilityChecker(repo),
		ledger:       ledger,
		policy:       policy,
		pricing:      calc,
		eventBus:     eventBus,
		logger:       logger,
	}
}

func (s *ReservationService) Create(ctx context.Context, p CreateParams) (*models.Reservation, error) {
	dr, err := models.NewDateRange(p.CheckIn, p.CheckOut)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRange, err)
	}

	room, err := s.repo.GetRoom(ctx, p.RoomID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetCustomer(ctx, p.CustomerID); err != nil {
		return nil, err
	}

	quote, err := s.pricing.Quote(dr.CheckIn, dr.CheckOut, room.Price)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.ValidateDeposit(p.Deposit, quote); err != nil {
		return nil, err
	}

	// Проверяем доступность до захвата блокировки записи
	free, err := s.availability.IsFree(ctx, room.ID, dr.CheckIn, dr.CheckOut, 0)
	if err != nil {
		return nil, err
	}
	if !free {
		metrics.IncConflict()
		return nil, fmt.Errorf("room %s %s: %w", room.Number, dr, domain.ErrConflict)
	}

	res := &models.Reservation{
		CustomerID: p.CustomerID,
		RoomID:     room.ID,
		CheckIn:    dr.CheckIn,
		CheckOut:   dr.CheckOut,
		TotalPrice: quote.Total,
		CreatedBy:  p.CreatedBy,
	}
	var deposit *models.PaymentEntry
	if p.Deposit > 0 {
		deposit = &models.PaymentEntry{Kind: models.PaymentDeposit, Amount: p.Deposit}
	}

	if err := s.repo.CreateReservationWithLock(ctx, res, deposit); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			metrics.IncConflict()
			return nil, fmt.Errorf("room %s %s: %w", room.Number, dr, err)
		}
		return nil, err
	}

	metrics.IncTransition(models.StatusReservation)
	if deposit != nil {
		metrics.IncPaymentEntry(models.PaymentDeposit)
	}
	s.logger.Info().
		Int64("reservation_id", res.ID).
		Str("room", room.Number).
		Str("range", dr.String()).
		Int64("total", res.TotalPrice).
		Int64("deposit", p.Deposit).
		Msg("reservation created")

	payload := reservationPayload(res, time.Now())
	payload.RoomNumber = room.Number
	payload.ChangedByID = p.CreatedBy
	if deposit != nil {
		payload.PaymentKind = deposit.Kind
		payload.Amount = deposit.Amount
	}
	s.publishEvent(events.EventReservationCreated, payload)

	return res, nil
}

// Cancel applies the cancellation policy and, in one transaction, marks the
// reservation cancelled and appends at most one refund or penalty entry.
func (s *ReservationService) Cancel(ctx context.Context, reservationID int64, reason string, now time.Time) (*models.CancellationOutcome, error) {
	var (
		res      *models.Reservation
		decision models.Decision
		entry    *models.PaymentEntry
	)
	err := s.withVersionRetry(ctx, func() error {
		var err error
		res, err = s.repo.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if !models.CanTransition(res.Status, models.StatusCancelled) {
			return fmt.Errorf("%w: cannot cancel a reservation in status %s", domain.ErrInvalidState, res.Status)
		}

		// оплаченное читается заново на каждой попытке
		paid, err := s.repo.GetPaidAmount(ctx, reservationID)
		if err != nil {
			return err
		}
		decision = s.policy.Evaluate(res, paid, now)
		entry = s.ledger.CancellationEntry(decision)
		return s.repo.CancelReservation(ctx, reservationID, res.Version, reason, entry)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncTransition(models.StatusCancelled)
	if entry != nil {
		metrics.IncPaymentEntry(entry.Kind)
	}
	s.logger.Info().
		Int64("reservation_id", reservationID).
		Str("outcome", decision.Outcome).
		Int("days_until_check_in", decision.DaysUntilCheckIn).
		Int64("penalty", decision.Penalty).
		Int64("refund", decision.Refund).
		Msg("reservation cancelled")

	res.Status = models.StatusCancelled
	res.CancelReason = reason
	payload := reservationPayload(res, now)
	payload.Reason = reason
	if entry != nil {
		payload.PaymentKind = entry.Kind
		payload.Amount = entry.Amount
	}
	s.publishEvent(events.EventReservationCancelled, payload)

	return &models.CancellationOutcome{ReservationID: reservationID, Decision: decision, Entry: entry}, nil
}

func (s *ReservationService) CheckIn(ctx context.Context, reservationID int64, now time.Time) (*models.Reservation, error) {
	return s.transition(ctx, reservationID, models.StatusCheckedIn, events.EventReservationCheckedIn, now)
}

func (s *ReservationService) CheckOut(ctx context.Context, reservationID int64, now time.Time) (*models.Reservation, error) {
	return s.transition(ctx, reservationID, models.StatusCheckedOut, events.EventReservationCheckedOut, now)
}

func (s *ReservationService) transition(ctx context.Context, reservationID int64, status, eventType string, now time.Time) (*models.Reservation, error) {
	var res *models.Reservation
	err := s.withVersionRetry(ctx, func() error {
		var err error
		res, err = s.repo.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if !models.CanTransition(res.Status, status) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidState, res.Status, status)
		}
		return s.repo.UpdateReservationStatusWithVersion(ctx, reservationID, res.Version, status)
	})
	if err != nil {
		return nil, err
	}
	res.Status = status
	res.Version++
	res.UpdatedAt = now

	metrics.IncTransition(status)
	s.publishEvent(eventType, reservationPayload(res, now))
	return res, nil
}

// withVersionRetry reruns fn when a versioned update lost to a concurrent
// write, e.g. a payment bumping the version. fn reloads the row itself, so
// a transition that became illegal fails with ErrInvalidState.
func (s *ReservationService) withVersionRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxVersionAttempts; attempt++ {
		if err = fn(); !errors.Is(err, domain.ErrConcurrentModification) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.logger.Debug().Int("attempt", attempt+1).Msg("reservation version changed, reloading")
	}
	return err
}

func (s *ReservationService) Get(ctx context.Context, id int64) (*models.Reservation, error) {
	return s.repo.GetReservation(ctx, id)
}

func (s *ReservationService) ListByRoom(ctx context.Context, roomID int64) ([]*models.Reservation, error) {
	if _, err := s.repo.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.repo.GetRoomReservations(ctx, roomID)
}

func (s *ReservationService) ListByDateRange(ctx context.Context, start, end time.Time) ([]*models.Reservation, error) {
	return s.repo.GetReservationsByDateRange(ctx, start, end)
}

func (s *ReservationService) publishEvent(eventType string, payload events.ReservationEventPayload) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("reservation_id", payload.ReservationID).Msg("publish event error")
	}
}

func reservationPayload(res *models.Reservation, now time.Time) events.ReservationEventPayload {
	return events.ReservationEventPayload{
		ReservationID: res.ID,
		CustomerID:    res.CustomerID,
		RoomID:        res.RoomID,
		CheckIn:       res.CheckIn.Format(models.DateLayout),
		CheckOut:      res.CheckOut.Format(models.DateLayout),
		Status:        res.Status,
		TotalPrice:    res.TotalPrice,
		OccurredAt:    now,
	}
}
