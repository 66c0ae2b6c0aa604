// Package user holds the minimal account projection the reminder engine
// needs. Registration, credentials, and sessions live in the external
// identity service; this package only reads delivery contact details.
package user

import (
	"time"

	"github.com/google/uuid"
)

// User maps to the users table.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Email        string    `db:"email" json:"email"`
	MobileNumber string    `db:"mobile_number" json:"mobile_number"`
	// PushKey is the push provider user key; empty when no device is
	// registered.
	PushKey   string    `db:"push_key" json:"push_key,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Contact is the delivery address pair used by the notification gateway.
type Contact struct {
	PushKey string
	Phone   string
}
