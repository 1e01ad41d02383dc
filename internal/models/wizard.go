package models

import "time"

var wizardOrder = map[string]int{
	WizardIdentitySelection: 0,
	WizardGuestCountEntry:   1,
	WizardRoomSelection:     2,
	WizardDateConfirmation:  3,
	WizardFinalized:         4,
}

// WizardSession accumulates booking input across requests of one owner.
type WizardSession struct {
	ID         string     `json:"id"`
	Owner      string     `json:"owner"`
	StaffID    int64      `json:"staff_id"`
	Step       string     `json:"step"`
	CustomerID int64      `json:"customer_id,omitempty"`
	GuestCount int        `json:"guest_count,omitempty"`
	RoomID     int64      `json:"room_id,omitempty"`
	CheckIn    *time.Time `json:"check_in,omitempty"`
	CheckOut   *time.Time `json:"check_out,omitempty"`
	Quote      *Quote     `json:"quote,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
}

// Reached reports whether the session has completed every step before step.
func (s *WizardSession) Reached(step string) bool {
	want, ok := wizardOrder[step]
	if !ok {
		return false
	}
	return wizardOrder[s.Step] >= want
}

// Rewind moves the session back to step and drops input collected after it.
func (s *WizardSession) Rewind(step string) {
	pos := wizardOrder[step]
	if pos <= wizardOrder[WizardIdentitySelection] {
		s.CustomerID = 0
	}
	if pos <= wizardOrder[WizardGuestCountEntry] {
		s.GuestCount = 0
	}
	if pos <= wizardOrder[WizardRoomSelection] {
		s.RoomID = 0
	}
	if pos <= wizardOrder[WizardDateConfirmation] {
		s.CheckIn, s.CheckOut, s.Quote = nil, nil, nil
	}
	s.Step = step
}

func (s *WizardSession) DatesConfirmed() bool {
	return s.CheckIn != nil && s.CheckOut != nil
}

// Expired is true once now has passed ExpiresAt.
func (s *WizardSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
