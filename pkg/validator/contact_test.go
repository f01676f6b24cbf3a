package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactValidator_Validate(t *testing.T) {
	validator := NewContactValidator("1")

	t.Run("Email only", func(t *testing.T) {
		contact, err := validator.Validate(Contact{Name: "  Sam   Lee ", Email: "Sam@Example.com"})
		require.NoError(t, err)
		assert.Equal(t, Contact{Name: "Sam Lee", Email: "sam@example.com"}, contact)
	})

	t.Run("Phone only", func(t *testing.T) {
		contact, err := validator.Validate(Contact{Name: "Sam", Phone: "+1 555 123 4567"})
		require.NoError(t, err)
		assert.Equal(t, "+15551234567", contact.Phone)
		assert.Empty(t, contact.Email)
	})

	t.Run("Both channels", func(t *testing.T) {
		contact, err := validator.Validate(Contact{Name: "Sam", Email: "sam@example.com", Phone: "05551234567"})
		require.NoError(t, err)
		assert.Equal(t, "+15551234567", contact.Phone)
		assert.Equal(t, "sam@example.com", contact.Email)
	})

	tests := []struct {
		name    string
		contact Contact
		err     error
	}{
		{"Missing name", Contact{Email: "sam@example.com"}, ErrEmptyName},
		{"No channel", Contact{Name: "Sam"}, ErrNoContactChannel},
		{"Bad email", Contact{Name: "Sam", Email: "not-an-email"}, ErrInvalidEmail},
		{"Display name email", Contact{Name: "Sam", Email: "Sam <sam@example.com>"}, ErrInvalidEmail},
		{"Bad phone with good email", Contact{Name: "Sam", Email: "sam@example.com", Phone: "12ab"}, ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.Validate(tt.contact)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	t.Run("Name too long", func(t *testing.T) {
		_, err := validator.Validate(Contact{Name: strings.Repeat("a", 121), Email: "sam@example.com"})
		assert.Error(t, err)
	})
}
