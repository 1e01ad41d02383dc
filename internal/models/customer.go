package models

import (
	"database/sql"
	"time"
)

type Customer struct {
	ID        int64         `json:"id"`
	UserID    sql.NullInt64 `json:"-"`
	Name      string        `json:"name"`
	Email     string        `json:"email,omitempty"`
	Phone     string        `json:"phone,omitempty"`
	Address   string        `json:"address,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
