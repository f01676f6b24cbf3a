package validator

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")

	// ErrInvalidFormat indicates phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number can only contain digits and an optional leading +")

	// ErrInvalidLength indicates the number has too few or too many digits
	ErrInvalidLength = errors.New("phone number must have between 8 and 15 digits")

	// ErrMissingCountryCode indicates a national number was given without a default region
	ErrMissingCountryCode = errors.New("phone number must include a country code")
)

const (
	minPhoneDigits = 8
	maxPhoneDigits = 15
)

// phoneRegex matches digits only
var phoneRegex = regexp.MustCompile(`^\d+$`)

// PhoneValidator normalizes phone numbers to E.164 (+<country><number>)
type PhoneValidator struct {
	defaultCountryCode string
}

// NewPhoneValidator creates a validator. National numbers (leading 0) are
// rewritten with defaultCountryCode; an empty code rejects them.
func NewPhoneValidator(defaultCountryCode string) *PhoneValidator {
	return &PhoneValidator{defaultCountryCode: strings.TrimPrefix(defaultCountryCode, "+")}
}

// Validate returns the E.164 form of phone.
// Accepts +1 555 123 4567, 001-555-123-4567, (0)77 123 4567 and similar.
func (v *PhoneValidator) Validate(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", ErrEmptyPhone
	}

	sanitized := v.Sanitize(phone)
	international := strings.HasPrefix(sanitized, "+")
	digits := strings.TrimPrefix(sanitized, "+")

	if !phoneRegex.MatchString(digits) {
		return "", ErrInvalidFormat
	}

	switch {
	case international:
	case strings.HasPrefix(digits, "00"):
		digits = digits[2:]
	case strings.HasPrefix(digits, "0"):
		if v.defaultCountryCode == "" {
			return "", ErrMissingCountryCode
		}
		digits = v.defaultCountryCode + digits[1:]
	default:
		return "", ErrMissingCountryCode
	}

	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return "", ErrInvalidLength
	}

	return "+" + digits, nil
}

// Sanitize removes separators, keeping a leading +
func (v *PhoneValidator) Sanitize(phone string) string {
	replacer := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
	phone = replacer.Replace(strings.TrimSpace(phone))

	if strings.HasPrefix(phone, "+") {
		return "+" + strings.ReplaceAll(phone[1:], "+", "")
	}
	return phone
}

// IsValid is a convenience method that returns true if phone is valid
func (v *PhoneValidator) IsValid(phone string) bool {
	_, err := v.Validate(phone)
	return err == nil
}
