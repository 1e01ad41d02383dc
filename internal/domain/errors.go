package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRange       = errors.New("invalid date range")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidWizardState = errors.New("invalid wizard state")
	ErrConflict           = errors.New("room is already reserved for these dates")
	ErrInvalidState       = errors.New("invalid reservation state")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrNotFound           = errors.New("not found")
)

// ErrConcurrentModification is returned when a versioned update lost the race.
// It matches ErrInvalidState with errors.Is.
var ErrConcurrentModification = fmt.Errorf("%w: concurrent modification", ErrInvalidState)
