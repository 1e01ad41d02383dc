// Package pricing computes stay prices and deposits in integer minor units.
package pricing

import (
	"fmt"
	"time"

	"riad/internal/domain"
	"riad/internal/models"
)

type Calculator struct {
	DepositPercent int
	DepositMinimum int64
}

func NewCalculator(depositPercent int, depositMinimum int64) *Calculator {
	return &Calculator{DepositPercent: ClampPercent(depositPercent), DepositMinimum: depositMinimum}
}

// Nights counts calendar nights between two dates; clock parts are ignored.
func (c *Calculator) Nights(checkIn, checkOut time.Time) (int, error) {
	dr, err := models.NewDateRange(checkIn, checkOut)
	if err != nil {
		return 0, fmt.Errorf("%w: %s..%s", domain.ErrInvalidRange,
			checkIn.Format(models.DateLayout), checkOut.Format(models.DateLayout))
	}
	return dr.Nights(), nil
}

func (c *Calculator) TotalPrice(nights int, nightlyPrice int64) (int64, error) {
	if nights <= 0 {
		return 0, fmt.Errorf("%w: nights must be positive", domain.ErrInvalidInput)
	}
	if nightlyPrice < 0 {
		return 0, fmt.Errorf("%w: nightly price must not be negative", domain.ErrInvalidInput)
	}
	return int64(nights) * nightlyPrice, nil
}

// DepositAmount is max(total*DepositPercent/100, DepositMinimum), never above total.
func (c *Calculator) DepositAmount(total int64) int64 {
	if total <= 0 {
		return 0
	}
	deposit := PercentOf(total, c.DepositPercent)
	if deposit < c.DepositMinimum {
		deposit = c.DepositMinimum
	}
	if deposit > total {
		deposit = total
	}
	return deposit
}

func (c *Calculator) Quote(checkIn, checkOut time.Time, nightlyPrice int64) (models.Quote, error) {
	nights, err := c.Nights(checkIn, checkOut)
	if err != nil {
		return models.Quote{}, err
	}
	total, err := c.TotalPrice(nights, nightlyPrice)
	if err != nil {
		return models.Quote{}, err
	}
	return models.Quote{Nights: nights, Total: total, Deposit: c.DepositAmount(total)}, nil
}

// PercentOf floors amount*percent/100.
func PercentOf(amount int64, percent int) int64 {
	if percent <= 0 || amount <= 0 {
		return 0
	}
	const percentBase = int64(100)
	return amount * int64(ClampPercent(percent)) / percentBase
}

func ClampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
