package models

import "time"

type RoomType struct {
	ID          int64     `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Information string    `json:"information" yaml:"information"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

type Room struct {
	ID         int64     `json:"id" yaml:"id"`
	Number     string    `json:"number" yaml:"number"`
	TypeID     int64     `json:"type_id" yaml:"-"`
	TypeName   string    `json:"type_name" yaml:"type"`
	Capacity   int       `json:"capacity" yaml:"capacity"`
	Price      int64     `json:"price" yaml:"price"`
	StatusCode string    `json:"status_code" yaml:"status"`
	View       string    `json:"view" yaml:"view"`
	CreatedAt  time.Time `json:"created_at" yaml:"-"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"-"`
}

// Fits reports whether the room can host the given number of guests.
func (r *Room) Fits(guests int) bool {
	return guests > 0 && r.Capacity >= guests
}

// Sellable is false for rooms withdrawn from inventory.
func (r *Room) Sellable() bool {
	return r.StatusCode != RoomStatusOutOfService
}

// ValidRoomStatus reports whether s is a known housekeeping status code.
func ValidRoomStatus(s string) bool {
	switch s {
	case RoomStatusAvailable, RoomStatusOccupied, RoomStatusHousekeeping, RoomStatusOutOfService:
		return true
	}
	return false
}
