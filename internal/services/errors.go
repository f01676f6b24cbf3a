package services

import (
	"errors"
	"fmt"

	"github.com/servicehub/booking-backend/internal/models"
)

// Checkout errors (caller-visible, nothing persisted)
var (
	ErrProviderNotFound          = errors.New("provider not found")
	ErrProviderNotPaymentCapable = errors.New("provider cannot accept payments")
	ErrServiceNotFound           = errors.New("service not found")
	ErrServiceProviderMismatch   = errors.New("service does not belong to provider")
	ErrAddonNotFound             = errors.New("add-on not found for service")
	ErrTooManyAddons             = errors.New("too many add-ons selected")
	ErrInvalidClientIdentity     = errors.New("either a registered client or guest name with email or phone is required")
	ErrInvalidBookingDate        = errors.New("booking date must be in the future")
	ErrNothingToCharge           = errors.New("nothing to charge for this checkout")
)

// Webhook errors
var (
	// ErrInvalidSignature means the delivery could not be authenticated
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrMalformedEvent means the signed payload is not a usable event
	ErrMalformedEvent = errors.New("malformed webhook event")

	// ErrTransient marks failures the processor should retry
	ErrTransient = errors.New("transient failure")
)

// ReconciliationError is raised when money moved but no booking can be created
type ReconciliationError struct {
	Reason models.AlertReason
	Detail string
	Err    error
}

func (e *ReconciliationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reconciliation required (%s): %s: %v", e.Reason, e.Detail, e.Err)
	}
	return fmt.Sprintf("reconciliation required (%s): %s", e.Reason, e.Detail)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}

func newReconciliationError(reason models.AlertReason, detail string, err error) *ReconciliationError {
	return &ReconciliationError{Reason: reason, Detail: detail, Err: err}
}

// transient wraps err so callers can match ErrTransient while keeping the cause
func transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
}
