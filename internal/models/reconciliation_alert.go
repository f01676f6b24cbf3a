package models

import (
	"time"

	"github.com/google/uuid"
)

// AlertReason classifies why a paid event could not become a booking
type AlertReason string

const (
	AlertEnvelopeInvalid AlertReason = "envelope_invalid"
	AlertProviderMissing AlertReason = "provider_missing"
	AlertServiceMissing  AlertReason = "service_missing"
	AlertFeeInvariant    AlertReason = "fee_invariant"
	AlertAmountMismatch  AlertReason = "amount_mismatch"
	AlertReferenceGone   AlertReason = "reference_missing"
)

// AlertReasons lists every reason an alert can carry
func AlertReasons() []AlertReason {
	return []AlertReason{
		AlertEnvelopeInvalid,
		AlertProviderMissing,
		AlertServiceMissing,
		AlertFeeInvariant,
		AlertAmountMismatch,
		AlertReferenceGone,
	}
}

// AlertStatus is the operator workflow state of an alert
type AlertStatus string

const (
	AlertStatusOpen     AlertStatus = "open"
	AlertStatusResolved AlertStatus = "resolved"
)

// ReconciliationAlert records money that moved without a booking.
// At most one alert exists per (DedupKey, Reason).
type ReconciliationAlert struct {
	ID               uuid.UUID   `json:"id" db:"id"`
	DedupKey         string      `json:"dedup_key" db:"dedup_key"`
	Reason           AlertReason `json:"reason" db:"reason"`
	PaymentReference *string     `json:"payment_reference,omitempty" db:"payment_reference"`
	EventID          *string     `json:"event_id,omitempty" db:"event_id"`
	AmountCents      *int64      `json:"amount_cents,omitempty" db:"amount_cents"`
	Currency         *string     `json:"currency,omitempty" db:"currency"`
	Detail           string      `json:"detail" db:"detail"`
	Metadata         JSONB       `json:"metadata,omitempty" db:"metadata"`

	Status         AlertStatus `json:"status" db:"status"`
	ResolvedBy     *uuid.UUID  `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolutionNote *string     `json:"resolution_note,omitempty" db:"resolution_note"`
	ResolvedAt     *time.Time  `json:"resolved_at,omitempty" db:"resolved_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewReconciliationAlert builds an open alert for an event.
// The payment reference is the dedup key; the event id is the fallback.
func NewReconciliationAlert(reason AlertReason, event *PaymentEvent, detail string) *ReconciliationAlert {
	alert := &ReconciliationAlert{
		ID:        uuid.New(),
		Reason:    reason,
		Detail:    detail,
		Status:    AlertStatusOpen,
		CreatedAt: time.Now(),
	}

	if event == nil {
		alert.DedupKey = alert.ID.String()
		return alert
	}

	alert.DedupKey = event.PaymentReference
	if alert.DedupKey == "" {
		alert.DedupKey = event.ID
	}
	if event.PaymentReference != "" {
		ref := event.PaymentReference
		alert.PaymentReference = &ref
	}
	if event.ID != "" {
		id := event.ID
		alert.EventID = &id
	}
	amount := event.AmountCents
	alert.AmountCents = &amount
	if event.Currency != "" {
		currency := event.Currency
		alert.Currency = &currency
	}
	if len(event.Metadata) > 0 {
		meta := make(JSONB, len(event.Metadata))
		for k, v := range event.Metadata {
			meta[k] = v
		}
		alert.Metadata = meta
	}

	return alert
}
