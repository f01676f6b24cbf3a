package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationParty is who a booking notification is addressed to
type NotificationParty string

const (
	PartyProvider NotificationParty = "provider"
	PartyClient   NotificationParty = "client"
)

// Recipient is a resolved notification target
type Recipient struct {
	Party NotificationParty `json:"party"`
	Name  string            `json:"name"`
	Phone string            `json:"phone,omitempty"`
	Email string            `json:"email,omitempty"`
}

// HasContact reports whether the recipient can be reached at all
func (r Recipient) HasContact() bool {
	return r.Phone != "" || r.Email != ""
}

// NotificationRecord is the result of one delivery attempt. It is logged, never stored.
type NotificationRecord struct {
	BookingID   uuid.UUID         `json:"booking_id"`
	Party       NotificationParty `json:"party"`
	Transport   string            `json:"transport"`
	Delivered   bool              `json:"delivered"`
	Skipped     bool              `json:"skipped"`
	Error       string            `json:"error,omitempty"`
	AttemptedAt time.Time         `json:"attempted_at"`
}
