package models

import (
	"errors"
	"fmt"
)

// PaymentMode selects what the customer pays at checkout
type PaymentMode string

const (
	// PaymentModeFull charges service + add-ons + platform fee
	PaymentModeFull PaymentMode = "full"
	// PaymentModeFeeOnly charges the platform fee alone; the rest is settled with the provider
	PaymentModeFeeOnly PaymentMode = "fee_only"
)

var (
	// ErrInvalidPaymentMode indicates an unknown payment mode
	ErrInvalidPaymentMode = errors.New("payment mode must be 'full' or 'fee_only'")

	// ErrFeeInvariant indicates a fee breakdown whose shares do not add up
	ErrFeeInvariant = errors.New("fee breakdown invariant violated")
)

// IsValid reports whether the mode is one of the known modes
func (m PaymentMode) IsValid() bool {
	return m == PaymentModeFull || m == PaymentModeFeeOnly
}

// ParsePaymentMode converts a raw string into a PaymentMode
func ParsePaymentMode(s string) (PaymentMode, error) {
	mode := PaymentMode(s)
	if !mode.IsValid() {
		return "", ErrInvalidPaymentMode
	}
	return mode, nil
}

// FeeBreakdown is the platform fee and its split between platform and provider.
// PlatformShareCents + ProviderShareCents == PlatformFeeCents, and all three
// are zero when Bypassed is set.
type FeeBreakdown struct {
	PlatformFeeCents   int64 `json:"platform_fee_cents" db:"platform_fee_cents"`
	PlatformShareCents int64 `json:"platform_share_cents" db:"platform_share_cents"`
	ProviderShareCents int64 `json:"provider_share_cents" db:"provider_share_cents"`
	Bypassed           bool  `json:"bypassed" db:"fee_bypassed"`
}

// Validate checks the sum invariant
func (f FeeBreakdown) Validate() error {
	if f.Bypassed {
		if f.PlatformFeeCents != 0 || f.PlatformShareCents != 0 || f.ProviderShareCents != 0 {
			return fmt.Errorf("%w: bypassed fee must be zero (fee=%d platform=%d provider=%d)",
				ErrFeeInvariant, f.PlatformFeeCents, f.PlatformShareCents, f.ProviderShareCents)
		}
		return nil
	}

	if f.PlatformFeeCents < 0 || f.PlatformShareCents < 0 || f.ProviderShareCents < 0 {
		return fmt.Errorf("%w: negative amount (fee=%d platform=%d provider=%d)",
			ErrFeeInvariant, f.PlatformFeeCents, f.PlatformShareCents, f.ProviderShareCents)
	}

	if f.PlatformShareCents+f.ProviderShareCents != f.PlatformFeeCents {
		return fmt.Errorf("%w: %d + %d != %d",
			ErrFeeInvariant, f.PlatformShareCents, f.ProviderShareCents, f.PlatformFeeCents)
	}

	return nil
}
