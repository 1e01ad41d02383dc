package service

import (
	"time"

	"riad/internal/models"
	"riad/internal/pricing"
)

// CancellationPolicy decides how much of the paid amount is kept on cancellation.
type CancellationPolicy struct {
	GracePeriodDays int
	PenaltyPercent  int
	PenaltyBasis    string // paid or total
}

func NewCancellationPolicy(graceDays, penaltyPercent int, basis string) *CancellationPolicy {
	if graceDays < 0 {
		graceDays = models.DefaultGracePeriodDays
	}
	if basis != models.PenaltyBasisTotal {
		basis = models.PenaltyBasisPaid
	}
	return &CancellationPolicy{
		GracePeriodDays: graceDays,
		PenaltyPercent:  pricing.ClampPercent(penaltyPercent),
		PenaltyBasis:    basis,
	}
}

// Evaluate is deterministic in (res, paid, now). Cancelling at exactly
// GracePeriodDays before check-in is still free.
func (p *CancellationPolicy) Evaluate(res *models.Reservation, paid int64, now time.Time) models.Decision {
	if paid < 0 {
		paid = 0
	}
	days := wholeDaysBetween(models.DateOf(now), res.CheckIn)
	d := models.Decision{DaysUntilCheckIn: days, Paid: paid}

	if days >= p.GracePeriodDays {
		d.Outcome = models.OutcomeNone
		d.Refund = paid
		return d
	}

	basis := paid
	if p.PenaltyBasis == models.PenaltyBasisTotal {
		basis = res.TotalPrice
	}
	penalty := pricing.PercentOf(basis, p.PenaltyPercent)
	// штраф удерживается только из уже оплаченного
	if penalty > paid {
		penalty = paid
	}

	d.Outcome = models.OutcomePenalty
	d.Penalty = penalty
	d.Refund = paid - penalty
	return d
}

func wholeDaysBetween(from, to time.Time) int {
	return int(models.DateOf(to).Sub(models.DateOf(from)).Hours() / 24)
}
