package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhoneValidator_ValidNumbers(t *testing.T) {
	validator := NewPhoneValidator("1")

	validNumbers := []struct {
		input    string
		expected string
		name     string
	}{
		{"+15551234567", "+15551234567", "E.164"},
		{"+1 555 123 4567", "+15551234567", "With spaces"},
		{"+1-555-123-4567", "+15551234567", "With dashes"},
		{"+1.555.123.4567", "+15551234567", "With dots"},
		{"+1 (555) 123 4567", "+15551234567", "With parentheses"},
		{"0015551234567", "+15551234567", "International 00 prefix"},
		{"05551234567", "+15551234567", "National with default country"},
		{"+94771234567", "+94771234567", "Other country"},
	}

	for _, tc := range validNumbers {
		t.Run(tc.name, func(t *testing.T) {
			normalized, err := validator.Validate(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, normalized)
		})
	}
}

func TestPhoneValidator_InvalidNumbers(t *testing.T) {
	validator := NewPhoneValidator("1")

	invalidNumbers := []struct {
		input       string
		expectedErr error
		name        string
	}{
		{"", ErrEmptyPhone, "Empty string"},
		{"   ", ErrEmptyPhone, "Whitespace"},
		{"+1555", ErrInvalidLength, "Too short"},
		{"+1555123456789012", ErrInvalidLength, "Too long"},
		{"+1555123456a", ErrInvalidFormat, "Contains letters"},
		{"5551234567", ErrMissingCountryCode, "No prefix at all"},
	}

	for _, tc := range invalidNumbers {
		t.Run(tc.name, func(t *testing.T) {
			_, err := validator.Validate(tc.input)
			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}
}

func TestPhoneValidator_NoDefaultCountry(t *testing.T) {
	validator := NewPhoneValidator("")

	_, err := validator.Validate("0771234567")
	assert.ErrorIs(t, err, ErrMissingCountryCode)

	assert.True(t, validator.IsValid("+94771234567"))
}

func TestPhoneValidator_Sanitize(t *testing.T) {
	validator := NewPhoneValidator("")

	assert.Equal(t, "+15551234567", validator.Sanitize(" +1 (555) 123-4567 "))
	assert.Equal(t, "+15551234567", validator.Sanitize("++15551234567"))
	assert.Equal(t, "0771234567", validator.Sanitize("077.123.4567"))
}
