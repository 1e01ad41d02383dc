package models

import "time"

type Reservation struct {
	ID           int64     `json:"id"`
	CustomerID   int64     `json:"customer_id"`
	RoomID       int64     `json:"room_id"`
	CheckIn      time.Time `json:"check_in"`
	CheckOut     time.Time `json:"check_out"`
	Status       string    `json:"status"` // Reservation, CheckedIn, CheckedOut, Cancelled
	TotalPrice   int64     `json:"total_price"`
	CancelReason string    `json:"cancel_reason,omitempty"`
	CreatedBy    int64     `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Version      int64     `json:"version"`
}

var transitions = map[string][]string{
	StatusReservation: {StatusCheckedIn, StatusCancelled},
	StatusCheckedIn:   {StatusCheckedOut, StatusCancelled},
}

// CanTransition reports whether the reservation state machine allows from -> to.
// CheckedOut and Cancelled are terminal.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (r *Reservation) Range() DateRange {
	return DateRange{CheckIn: r.CheckIn, CheckOut: r.CheckOut}
}

// IsActive is true for every status except Cancelled.
func (r *Reservation) IsActive() bool {
	return r.Status != StatusCancelled
}

// AcceptsPayments is true while money may still be collected against the stay.
func (r *Reservation) AcceptsPayments() bool {
	return r.Status == StatusReservation || r.Status == StatusCheckedIn
}

// CancellationOutcome is what ReservationService.Cancel reports to the caller.
type CancellationOutcome struct {
	ReservationID int64         `json:"reservation_id"`
	Decision      Decision      `json:"decision"`
	Entry         *PaymentEntry `json:"entry,omitempty"`
}
