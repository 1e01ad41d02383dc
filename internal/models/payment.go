package models

import "time"

// PaymentEntry is an append-only money movement against one reservation.
type PaymentEntry struct {
	ID            int64     `json:"id"`
	ReservationID int64     `json:"reservation_id"`
	Kind          string    `json:"kind"` // deposit, settlement, refund, penalty
	Amount        int64     `json:"amount"`
	CreatedAt     time.Time `json:"created_at"`
}

// CountsAsPaid is true for the kinds that reduce the outstanding balance.
func (p *PaymentEntry) CountsAsPaid() bool {
	return p.Kind == PaymentDeposit || p.Kind == PaymentSettlement
}

func IsCancellationKind(kind string) bool {
	return kind == PaymentRefund || kind == PaymentPenalty
}

const (
	OutcomeNone    = "none"
	OutcomePenalty = "penalty"
)

// Decision is the result of applying the cancellation policy.
type Decision struct {
	Outcome          string `json:"outcome"`
	DaysUntilCheckIn int    `json:"days_until_check_in"`
	Paid             int64  `json:"paid"`
	Penalty          int64  `json:"penalty"`
	Refund           int64  `json:"refund"`
}

// Quote is the price breakdown of a stay.
type Quote struct {
	Nights  int   `json:"nights"`
	Total   int64 `json:"total"`
	Deposit int64 `json:"deposit"`
}
