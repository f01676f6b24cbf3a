package models

import (
	"time"

	"github.com/google/uuid"
)

// ProviderAccount is the read-only view of a service provider used for
// payment routing and notifications
type ProviderAccount struct {
	ID              uuid.UUID `json:"id" db:"id"`
	DisplayName     string    `json:"display_name" db:"display_name"`
	PayoutAccountID *string   `json:"payout_account_id,omitempty" db:"payout_account_id"`
	IsActivated     bool      `json:"is_activated" db:"is_activated"`
	FeeBypass       bool      `json:"fee_bypass" db:"fee_bypass"`
	Phone           *string   `json:"phone,omitempty" db:"phone"`
	Email           *string   `json:"email,omitempty" db:"email"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// IsPaymentCapable reports whether the provider can receive payouts
func (p *ProviderAccount) IsPaymentCapable() bool {
	return p.IsActivated && p.PayoutAccountID != nil && *p.PayoutAccountID != ""
}

// Service is a bookable service offered by a provider
type Service struct {
	ID         uuid.UUID `json:"id" db:"id"`
	ProviderID uuid.UUID `json:"provider_id" db:"provider_id"`
	Name       string    `json:"name" db:"name"`
	PriceCents int64     `json:"price_cents" db:"price_cents"`
	IsActive   bool      `json:"is_active" db:"is_active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// ServiceAddon is an optional extra attached to a service
type ServiceAddon struct {
	ID         uuid.UUID `json:"id" db:"id"`
	ServiceID  uuid.UUID `json:"service_id" db:"service_id"`
	Name       string    `json:"name" db:"name"`
	PriceCents int64     `json:"price_cents" db:"price_cents"`
	IsActive   bool      `json:"is_active" db:"is_active"`
}

// Client is a registered customer
type Client struct {
	ID       uuid.UUID `json:"id" db:"id"`
	FullName string    `json:"full_name" db:"full_name"`
	Email    *string   `json:"email,omitempty" db:"email"`
	Phone    *string   `json:"phone,omitempty" db:"phone"`
}
