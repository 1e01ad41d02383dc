package service

import (
	"context"
	"fmt"
	"time"

	"riad/internal/domain"
	"riad/internal/models"
)

// AvailabilityChecker answers whether a room is free for a stay.
type AvailabilityChecker struct {
	repo domain.Repository
}

func NewAvailabilityChecker(repo domain.Repository) *AvailabilityChecker {
	return &AvailabilityChecker{repo: repo}
}

// IsFree reports whether no active reservation, other than excludingID,
// overlaps [checkIn, checkOut). The answer reflects committed state only;
// the insert transaction checks again.
func (c *AvailabilityChecker) IsFree(ctx context.Context, roomID int64, checkIn, checkOut time.Time, excludingID int64) (bool, error) {
	dr, err := models.NewDateRange(checkIn, checkOut)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrInvalidRange, err)
	}
	return c.repo.IsRoomFree(ctx, roomID, dr, excludingID)
}

// Overlaps applies the half-open conflict rule to two stays.
func Overlaps(a, b models.DateRange) bool {
	return a.Overlaps(b)
}
