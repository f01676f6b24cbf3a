package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// Booking is a materialized, paid booking. PaymentReference is unique.
type Booking struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	ProviderID uuid.UUID  `json:"provider_id" db:"provider_id"`
	ServiceID  uuid.UUID  `json:"service_id" db:"service_id"`
	ClientID   *uuid.UUID `json:"client_id,omitempty" db:"client_id"`

	// Guest contact (when ClientID is nil)
	GuestName  *string `json:"guest_name,omitempty" db:"guest_name"`
	GuestEmail *string `json:"guest_email,omitempty" db:"guest_email"`
	GuestPhone *string `json:"guest_phone,omitempty" db:"guest_phone"`

	BookingDate time.Time   `json:"booking_date" db:"booking_date"`
	PaymentMode PaymentMode `json:"payment_mode" db:"payment_mode"`

	// Pricing
	ServicePriceCents int64     `json:"service_price_cents" db:"service_price_cents"`
	AddonIDs          UUIDArray `json:"addon_ids" db:"addon_ids"`
	AddonTotalCents   int64     `json:"addon_total_cents" db:"addon_total_cents"`
	AddonsDeferred    bool      `json:"addons_deferred" db:"addons_deferred"`

	// Fee split
	PlatformFeeCents   int64 `json:"platform_fee_cents" db:"platform_fee_cents"`
	PlatformShareCents int64 `json:"platform_share_cents" db:"platform_share_cents"`
	ProviderShareCents int64 `json:"provider_share_cents" db:"provider_share_cents"`
	FeeBypassed        bool  `json:"fee_bypassed" db:"fee_bypassed"`

	// Payment
	AmountChargedCents int64     `json:"amount_charged_cents" db:"amount_charged_cents"`
	Currency           string    `json:"currency" db:"currency"`
	PaymentReference   string    `json:"payment_reference" db:"payment_reference"`
	CheckoutRef        uuid.UUID `json:"checkout_ref" db:"checkout_ref"`

	Status    BookingStatus `json:"status" db:"status"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// Fee returns the booking's fee breakdown
func (b *Booking) Fee() FeeBreakdown {
	return FeeBreakdown{
		PlatformFeeCents:   b.PlatformFeeCents,
		PlatformShareCents: b.PlatformShareCents,
		ProviderShareCents: b.ProviderShareCents,
		Bypassed:           b.FeeBypassed,
	}
}

// BookingStatusView is what the checkout success page may see of a booking.
// Contact details stay out of it: the lookup is unauthenticated.
type BookingStatusView struct {
	ID                 uuid.UUID     `json:"id"`
	CheckoutRef        uuid.UUID     `json:"checkout_ref"`
	Status             BookingStatus `json:"status"`
	ProviderID         uuid.UUID     `json:"provider_id"`
	ServiceID          uuid.UUID     `json:"service_id"`
	BookingDate        time.Time     `json:"booking_date"`
	PaymentMode        PaymentMode   `json:"payment_mode"`
	AmountChargedCents int64         `json:"amount_charged_cents"`
	Currency           string        `json:"currency"`
	AddonsDeferred     bool          `json:"addons_deferred"`
	CreatedAt          time.Time     `json:"created_at"`
}

// StatusView trims the booking to its public status
func (b *Booking) StatusView() BookingStatusView {
	return BookingStatusView{
		ID:                 b.ID,
		CheckoutRef:        b.CheckoutRef,
		Status:             b.Status,
		ProviderID:         b.ProviderID,
		ServiceID:          b.ServiceID,
		BookingDate:        b.BookingDate,
		PaymentMode:        b.PaymentMode,
		AmountChargedCents: b.AmountChargedCents,
		Currency:           b.Currency,
		AddonsDeferred:     b.AddonsDeferred,
		CreatedAt:          b.CreatedAt,
	}
}

// IsGuest reports whether the booking was made without an account
func (b *Booking) IsGuest() bool {
	return b.ClientID == nil
}

// NewBookingFromEnvelope builds the row to insert for a validated envelope
// and the event that paid for it
func NewBookingFromEnvelope(env *MetadataEnvelope, event *PaymentEvent) *Booking {
	now := time.Now()

	addonIDs := make(UUIDArray, len(env.AddonIDs))
	for i, id := range env.AddonIDs {
		addonIDs[i] = id.String()
	}

	booking := &Booking{
		ID:                 uuid.New(),
		ProviderID:         env.ProviderID,
		ServiceID:          env.ServiceID,
		ClientID:           env.ClientID,
		BookingDate:        env.Date,
		PaymentMode:        env.PaymentMode,
		ServicePriceCents:  env.ServicePriceCents,
		AddonIDs:           addonIDs,
		AddonTotalCents:    env.AddonTotalCents,
		AddonsDeferred:     env.AddonsDeferred,
		PlatformFeeCents:   env.Fee.PlatformFeeCents,
		PlatformShareCents: env.Fee.PlatformShareCents,
		ProviderShareCents: env.Fee.ProviderShareCents,
		FeeBypassed:        env.Fee.Bypassed,
		AmountChargedCents: event.AmountCents,
		Currency:           event.Currency,
		PaymentReference:   event.PaymentReference,
		CheckoutRef:        env.CheckoutRef,
		Status:             BookingStatusConfirmed,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if env.Guest != nil {
		booking.GuestName = stringPtr(env.Guest.Name)
		booking.GuestEmail = stringPtr(env.Guest.Email)
		booking.GuestPhone = stringPtr(env.Guest.Phone)
	}

	return booking
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
