package models

import (
	"errors"
	"time"
)

var errEmptyRange = errors.New("check-out must be after check-in")

// DateRange is a half-open stay interval [CheckIn, CheckOut) of calendar dates.
type DateRange struct {
	CheckIn  time.Time `json:"check_in"`
	CheckOut time.Time `json:"check_out"`
}

// DateOf drops the clock part of t, keeping its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func NewDateRange(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: DateOf(checkIn), CheckOut: DateOf(checkOut)}
	if !dr.CheckOut.After(dr.CheckIn) {
		return DateRange{}, errEmptyRange
	}
	return dr, nil
}

// ParseDateRange parses both ends in DateLayout.
func ParseDateRange(checkIn, checkOut string) (DateRange, error) {
	in, err := time.Parse(DateLayout, checkIn)
	if err != nil {
		return DateRange{}, err
	}
	out, err := time.Parse(DateLayout, checkOut)
	if err != nil {
		return DateRange{}, err
	}
	return NewDateRange(in, out)
}

func (dr DateRange) Nights() int {
	return int(dr.CheckOut.Sub(dr.CheckIn).Hours() / 24)
}

// Overlaps reports whether the two half-open ranges share at least one night.
// Ranges that only touch at a boundary date do not overlap.
func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

func (dr DateRange) String() string {
	return dr.CheckIn.Format(DateLayout) + ".." + dr.CheckOut.Format(DateLayout)
}
