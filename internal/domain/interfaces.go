package domain

import (
	"context"
	"time"

	"riad/internal/models"
)

type Repository interface {
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	GetRooms(ctx context.Context) ([]*models.Room, error)
	GetRoomTypes(ctx context.Context) ([]*models.RoomType, error)
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	GetRoomReservations(ctx context.Context, roomID int64) ([]*models.Reservation, error)
	GetReservationsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Reservation, error)
	IsRoomFree(ctx context.Context, roomID int64, dr models.DateRange, excludeID int64) (bool, error)
	CreateReservationWithLock(ctx context.Context, res *models.Reservation, deposit *models.PaymentEntry) error
	UpdateReservationStatusWithVersion(ctx context.Context, id, version int64, status string) error
	CancelReservation(ctx context.Context, id, version int64, reason string, entry *models.PaymentEntry) error
	CreatePaymentEntryWithLock(ctx context.Context, entry *models.PaymentEntry) error
	CreateCancellationEntry(ctx context.Context, entry *models.PaymentEntry) error
	GetPaymentEntries(ctx context.Context, reservationID int64) ([]*models.PaymentEntry, error)
	GetPaidAmount(ctx context.Context, reservationID int64) (int64, error)
}

// WizardStore keeps in-progress wizard sessions. GetSession returns nil, nil
// when the session is missing or expired.
type WizardStore interface {
	GetSession(ctx context.Context, owner, id string) (*models.WizardSession, error)
	SaveSession(ctx context.Context, session *models.WizardSession, ttl time.Duration) error
	DeleteSession(ctx context.Context, owner, id string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type Notifier interface {
	Notify(ctx context.Context, text string) error
}
