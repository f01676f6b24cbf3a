package services

import (
	"math"

	"github.com/servicehub/booking-backend/internal/models"
)

// FeeCalculator computes the flat platform fee split. It is pure and safe for
// concurrent use.
type FeeCalculator struct {
	platformFeeCents   int64
	platformShareRatio float64
}

// NewFeeCalculator creates a calculator for a fixed fee and platform ratio
func NewFeeCalculator(platformFeeCents int64, platformShareRatio float64) *FeeCalculator {
	return &FeeCalculator{
		platformFeeCents:   platformFeeCents,
		platformShareRatio: platformShareRatio,
	}
}

// Calculate returns the fee breakdown. The fee is flat, so price and mode do
// not change it; only bypass does.
func (c *FeeCalculator) Calculate(priceCents int64, mode models.PaymentMode, bypass bool) models.FeeBreakdown {
	if bypass {
		return models.FeeBreakdown{Bypassed: true}
	}

	platformShare := int64(math.Round(float64(c.platformFeeCents) * c.platformShareRatio))

	return models.FeeBreakdown{
		PlatformFeeCents:   c.platformFeeCents,
		PlatformShareCents: platformShare,
		// remainder, never rounded on its own
		ProviderShareCents: c.platformFeeCents - platformShare,
	}
}
