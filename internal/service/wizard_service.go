package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"riad/internal/domain"
	"riad/internal/models"
	"riad/internal/pricing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReservationCreator is the part of ReservationService the wizard finalizes into.
type ReservationCreator interface {
	Create(ctx context.Context, p CreateParams) (*models.Reservation, error)
}

// IdentityInput either picks an existing customer (CustomerID) or describes a new one.
type IdentityInput struct {
	CustomerID int64  `json:"customer_id,omitempty"`
	UserID     int64  `json:"user_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
}

// WizardService drives the multi-step booking flow. Sessions live in the
// wizard store only and are confined to their owner.
type WizardService struct {
	store        domain.WizardStore
	repo         domain.Repository
	pricing      *pricing.Calculator
	reservations ReservationCreator
	ttl          time.Duration
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewWizardService(
	store domain.WizardStore,
	repo domain.Repository,
	calc *pricing.Calculator,
	reservations ReservationCreator,
	ttl time.Duration,
	logger *zerolog.Logger,
) *WizardService {
	if ttl <= 0 {
		ttl = models.DefaultWizardTTL * time.Second
	}
	return &WizardService{
		store:        store,
		repo:         repo,
		pricing:      calc,
		reservations: reservations,
		ttl:          ttl,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *WizardService) Start(ctx context.Context, owner string, staffID int64) (*models.WizardSession, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	}
	now := s.now()
	session := &models.WizardSession{
		ID:        uuid.NewString(),
		Owner:     owner,
		StaffID:   staffID,
		Step:      models.WizardIdentitySelection,
		CreatedAt: now,
	}
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Debug().Str("session_id", session.ID).Str("owner", owner).Msg("wizard started")
	return session, nil
}

func (s *WizardService) SelectIdentity(ctx context.Context, owner, id string, in IdentityInput) (*models.WizardSession, error) {
	session, err := s.load(ctx, owner, id, models.WizardIdentitySelection)
	if err != nil {
		return nil, err
	}

	var customerID int64
	if in.CustomerID > 0 {
		c, err := s.repo.GetCustomer(ctx, in.CustomerID)
		if err != nil {
			return nil, err
		}
		customerID = c.ID
	} else {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: customer name is required", domain.ErrInvalidInput)
		}
		c := &models.Customer{
			Name:    name,
			Email:   strings.TrimSpace(in.Email),
			Phone:   strings.TrimSpace(in.Phone),
			Address: strings.TrimSpace(in.Address),
		}
		if in.UserID > 0 {
			c.UserID = sql.NullInt64{Int64: in.UserID, Valid: true}
		}
		if err := s.repo.CreateCustomer(ctx, c); err != nil {
			return nil, err
		}
		customerID = c.ID
	}

	session.Rewind(models.WizardIdentitySelection)
	session.CustomerID = customerID
	session.Step = models.WizardGuestCountEntry
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *WizardService) EnterGuestCount(ctx context.Context, owner, id string, guests int) (*models.WizardSession, error) {
	session, err := s.load(ctx, owner, id, models.WizardGuestCountEntry)
	if err != nil {
		return nil, err
	}
	if guests <= 0 {
		return nil, fmt.Errorf("%w: guest count must be positive", domain.ErrInvalidInput)
	}

	session.Rewind(models.WizardGuestCountEntry)
	session.GuestCount = guests
	session.Step = models.WizardRoomSelection
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// CandidateRooms lists sellable rooms that fit the guest count. Dates are
// not known yet, so availability is checked only at finalize.
func (s *WizardService) CandidateRooms(ctx context.Context, owner, id string) ([]*models.Room, error) {
	session, err := s.load(ctx, owner, id, models.WizardRoomSelection)
	if err != nil {
		return nil, err
	}

	rooms, err := s.repo.GetRooms(ctx)
	if err != nil {
		return nil, err
	}
	candidates := make([]*models.Room, 0, len(rooms))
	for _, room := range rooms {
		if room.Sellable() && room.Fits(session.GuestCount) {
			candidates = append(candidates, room)
		}
	}

	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return candidates, nil
}

func (s *WizardService) SelectRoom(ctx context.Context, owner, id string, roomID int64) (*models.WizardSession, error) {
	session, err := s.load(ctx, owner, id, models.WizardRoomSelection)
	if err != nil {
		return nil, err
	}

	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := checkRoomFits(room, session.GuestCount); err != nil {
		return nil, err
	}

	session.Rewind(models.WizardRoomSelection)
	session.RoomID = room.ID
	session.Step = models.WizardDateConfirmation
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// ConfirmDates stores the stay and a preview quote. The authoritative price
// is computed again at finalize.
func (s *WizardService) ConfirmDates(ctx context.Context, owner, id string, checkIn, checkOut, now time.Time) (*models.WizardSession, error) {
	session, err := s.load(ctx, owner, id, models.WizardDateConfirmation)
	if err != nil {
		return nil, err
	}

	dr, err := models.NewDateRange(checkIn, checkOut)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRange, err)
	}
	if dr.CheckIn.Before(models.DateOf(now)) {
		return nil, fmt.Errorf("%w: check-in %s is in the past", domain.ErrInvalidInput, dr.CheckIn.Format(models.DateLayout))
	}

	room, err := s.repo.GetRoom(ctx, session.RoomID)
	if err != nil {
		return nil, err
	}
	quote, err := s.pricing.Quote(dr.CheckIn, dr.CheckOut, room.Price)
	if err != nil {
		return nil, err
	}

	session.CheckIn = &dr.CheckIn
	session.CheckOut = &dr.CheckOut
	session.Quote = &quote
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Finalize creates the reservation and discards the session. On any failure,
// including a conflict, the session stays at date confirmation.
func (s *WizardService) Finalize(ctx context.Context, owner, id string, deposit int64) (*models.Reservation, error) {
	session, err := s.load(ctx, owner, id, models.WizardDateConfirmation)
	if err != nil {
		return nil, err
	}
	if session.Step != models.WizardDateConfirmation || !session.DatesConfirmed() {
		return nil, fmt.Errorf("%w: dates are not confirmed", domain.ErrInvalidWizardState)
	}

	// каталог мог измениться после выбора номера
	room, err := s.repo.GetRoom(ctx, session.RoomID)
	if err != nil {
		return nil, err
	}
	if err := checkRoomFits(room, session.GuestCount); err != nil {
		return nil, err
	}

	res, err := s.reservations.Create(ctx, CreateParams{
		CustomerID: session.CustomerID,
		RoomID:     session.RoomID,
		CheckIn:    *session.CheckIn,
		CheckOut:   *session.CheckOut,
		CreatedBy:  session.StaffID,
		Deposit:    deposit,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.logger.Info().Str("session_id", id).Err(err).Msg("wizard finalize conflict")
		}
		return nil, err
	}

	session.Step = models.WizardFinalized
	if err := s.store.DeleteSession(ctx, owner, id); err != nil {
		s.logger.Warn().Err(err).Str("session_id", id).Msg("failed to discard finalized wizard session")
	}
	return res, nil
}

func (s *WizardService) Get(ctx context.Context, owner, id string) (*models.WizardSession, error) {
	return s.get(ctx, owner, id)
}

func (s *WizardService) Cancel(ctx context.Context, owner, id string) error {
	if _, err := s.get(ctx, owner, id); err != nil {
		return err
	}
	return s.store.DeleteSession(ctx, owner, id)
}

func (s *WizardService) get(ctx context.Context, owner, id string) (*models.WizardSession, error) {
	session, err := s.store.GetSession(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Expired(s.now()) {
		return nil, fmt.Errorf("%w: session %s not found or expired", domain.ErrInvalidWizardState, id)
	}
	return session, nil
}

// load fetches the session and checks that step has been reached. Earlier
// steps may be revisited; later ones may not be skipped to.
func (s *WizardService) load(ctx context.Context, owner, id, step string) (*models.WizardSession, error) {
	session, err := s.get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if session.Step == models.WizardFinalized {
		return nil, fmt.Errorf("%w: session %s is finalized", domain.ErrInvalidWizardState, id)
	}
	if !session.Reached(step) {
		return nil, fmt.Errorf("%w: step %s is not available from %s", domain.ErrInvalidWizardState, step, session.Step)
	}
	return session, nil
}

func (s *WizardService) save(ctx context.Context, session *models.WizardSession) error {
	now := s.now()
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(s.ttl)
	return s.store.SaveSession(ctx, session, s.ttl)
}

func checkRoomFits(room *models.Room, guests int) error {
	if !room.Sellable() {
		return fmt.Errorf("%w: room %s is out of service", domain.ErrInvalidInput, room.Number)
	}
	if !room.Fits(guests) {
		return fmt.Errorf("%w: room %s holds %d guests, requested %d",
			domain.ErrInvalidInput, room.Number, room.Capacity, guests)
	}
	return nil
}
