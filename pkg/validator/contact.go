package validator

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

var (
	// ErrEmptyName indicates the contact has no name
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrNoContactChannel indicates neither email nor phone was given
	ErrNoContactChannel = errors.New("an email address or phone number is required")

	// ErrInvalidEmail indicates the email address cannot be parsed
	ErrInvalidEmail = errors.New("invalid email address")
)

const maxNameLength = 120

// Contact is a name with at least one way to reach the person
type Contact struct {
	Name  string
	Email string
	Phone string
}

// ContactValidator validates and normalizes guest contact details
type ContactValidator struct {
	phones *PhoneValidator
}

// NewContactValidator creates a contact validator
func NewContactValidator(defaultCountryCode string) *ContactValidator {
	return &ContactValidator{phones: NewPhoneValidator(defaultCountryCode)}
}

// ValidateEmail returns the lower-cased bare address
func (v *ContactValidator) ValidateEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(addr.Address, ".") {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

// Validate returns the normalized contact. Name is required, plus a valid
// email or phone; any channel that is supplied must be valid.
func (v *ContactValidator) Validate(c Contact) (Contact, error) {
	out := Contact{Name: strings.Join(strings.Fields(c.Name), " ")}
	if out.Name == "" {
		return Contact{}, ErrEmptyName
	}
	if len(out.Name) > maxNameLength {
		return Contact{}, fmt.Errorf("name longer than %d characters", maxNameLength)
	}

	email := strings.TrimSpace(c.Email)
	phone := strings.TrimSpace(c.Phone)
	if email == "" && phone == "" {
		return Contact{}, ErrNoContactChannel
	}

	if email != "" {
		normalized, err := v.ValidateEmail(email)
		if err != nil {
			return Contact{}, err
		}
		out.Email = normalized
	}

	if phone != "" {
		normalized, err := v.phones.Validate(phone)
		if err != nil {
			return Contact{}, err
		}
		out.Phone = normalized
	}

	return out, nil
}
