package services

import (
	"testing"

	"github.com/servicehub/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestFeeCalculator_Calculate(t *testing.T) {
	calc := NewFeeCalculator(338, 0.60)

	tests := []struct {
		name     string
		price    int64
		mode     models.PaymentMode
		bypass   bool
		expected models.FeeBreakdown
	}{
		{
			name:     "full mode",
			price:    2500,
			mode:     models.PaymentModeFull,
			expected: models.FeeBreakdown{PlatformFeeCents: 338, PlatformShareCents: 203, ProviderShareCents: 135},
		},
		{
			name:     "fee only mode",
			price:    3000,
			mode:     models.PaymentModeFeeOnly,
			expected: models.FeeBreakdown{PlatformFeeCents: 338, PlatformShareCents: 203, ProviderShareCents: 135},
		},
		{
			name:     "bypass zeroes everything",
			price:    2500,
			mode:     models.PaymentModeFull,
			bypass:   true,
			expected: models.FeeBreakdown{Bypassed: true},
		},
		{
			name:     "bypass in fee only mode",
			price:    2500,
			mode:     models.PaymentModeFeeOnly,
			bypass:   true,
			expected: models.FeeBreakdown{Bypassed: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, calc.Calculate(tt.price, tt.mode, tt.bypass))
		})
	}
}

func TestFeeCalculator_SumInvariant(t *testing.T) {
	ratios := []float64{0, 0.001, 0.25, 1.0 / 3.0, 0.5, 0.6, 0.666, 0.995, 1}

	for fee := int64(0); fee <= 1000; fee++ {
		for _, ratio := range ratios {
			breakdown := NewFeeCalculator(fee, ratio).Calculate(2500, models.PaymentModeFull, false)

			if !assert.NoError(t, breakdown.Validate(), "fee=%d ratio=%v", fee, ratio) {
				return
			}
			assert.Equal(t, fee, breakdown.PlatformShareCents+breakdown.ProviderShareCents)
		}
	}
}

func TestFeeCalculator_Deterministic(t *testing.T) {
	calc := NewFeeCalculator(338, 0.60)
	first := calc.Calculate(2500, models.PaymentModeFull, false)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, calc.Calculate(2500, models.PaymentModeFull, false))
	}
}
