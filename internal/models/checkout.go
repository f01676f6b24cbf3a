package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// CLIENT IDENTITY
// ============================================================================

// GuestContact is the contact triple supplied by an unregistered customer
type GuestContact struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// IsZero reports whether no guest field was supplied
func (g GuestContact) IsZero() bool {
	return strings.TrimSpace(g.Name) == "" && strings.TrimSpace(g.Email) == "" && strings.TrimSpace(g.Phone) == ""
}

// ClientIdentity is either a registered client or a guest
type ClientIdentity struct {
	ClientID *uuid.UUID    `json:"client_id,omitempty"`
	Guest    *GuestContact `json:"guest,omitempty"`
}

// IsGuest reports whether the identity belongs to an unregistered customer
func (c ClientIdentity) IsGuest() bool {
	return c.ClientID == nil
}

// ============================================================================
// CHECKOUT REQUEST / DESCRIPTOR
// ============================================================================

// CheckoutRequest is the customer's intent to pay for a booking
type CheckoutRequest struct {
	ProviderID  uuid.UUID      `json:"provider_id"`
	ServiceID   uuid.UUID      `json:"service_id"`
	AddonIDs    []uuid.UUID    `json:"addon_ids,omitempty"`
	Date        time.Time      `json:"date"`
	PaymentMode PaymentMode    `json:"payment_mode"`
	Client      ClientIdentity `json:"client"`
}

// LineItemKind classifies a checkout line item
type LineItemKind string

const (
	LineItemService     LineItemKind = "service"
	LineItemAddon       LineItemKind = "addon"
	LineItemPlatformFee LineItemKind = "platform_fee"
)

// LineItem is one charged position on the checkout page
type LineItem struct {
	Kind            LineItemKind `json:"kind"`
	Name            string       `json:"name"`
	UnitAmountCents int64        `json:"unit_amount_cents"`
	Quantity        int64        `json:"quantity"`
}

// TotalCents returns unit amount times quantity
func (l LineItem) TotalCents() int64 {
	return l.UnitAmountCents * l.Quantity
}

// CheckoutSessionDescriptor is the immutable description of what the
// processor is asked to charge. A restarted checkout builds a new one.
type CheckoutSessionDescriptor struct {
	ID                uuid.UUID         `json:"id"`
	ProviderID        uuid.UUID         `json:"provider_id"`
	ServiceID         uuid.UUID         `json:"service_id"`
	PayoutAccountID   string            `json:"-"`
	AddonIDs          []uuid.UUID       `json:"addon_ids,omitempty"`
	Date              time.Time         `json:"date"`
	Client            ClientIdentity    `json:"client"`
	PaymentMode       PaymentMode       `json:"payment_mode"`
	ServicePriceCents int64             `json:"service_price_cents"`
	AddonTotalCents   int64             `json:"addon_total_cents"`
	LineItems         []LineItem        `json:"line_items"`
	Fee               FeeBreakdown      `json:"fee"`
	AddonsDeferred    bool              `json:"addons_deferred"`
	TotalCents        int64             `json:"total_cents"`
	Currency          string            `json:"currency"`
	Metadata          map[string]string `json:"metadata"`
	CreatedAt         time.Time         `json:"created_at"`
}

// LineItemsTotalCents sums every line item
func (d *CheckoutSessionDescriptor) LineItemsTotalCents() int64 {
	var total int64
	for _, item := range d.LineItems {
		total += item.TotalCents()
	}
	return total
}

// ProviderReceivesCents is what the processor transfers to the provider
// once the platform keeps its share of the fee
func (d *CheckoutSessionDescriptor) ProviderReceivesCents() int64 {
	return d.TotalCents - d.Fee.PlatformShareCents
}

// CheckoutSession is the hand-off returned to the booking UI
type CheckoutSession struct {
	SessionID   string                     `json:"session_id"`
	RedirectURL string                     `json:"redirect_url"`
	Descriptor  *CheckoutSessionDescriptor `json:"descriptor"`
}
