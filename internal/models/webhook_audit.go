package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookAudit is an immutable log entry for one webhook delivery
type WebhookAudit struct {
	ID               uuid.UUID `json:"id" db:"id"`
	EventID          *string   `json:"event_id,omitempty" db:"event_id"`
	EventType        *string   `json:"event_type,omitempty" db:"event_type"`
	PaymentReference *string   `json:"payment_reference,omitempty" db:"payment_reference"`

	Outcome     WebhookOutcome `json:"outcome" db:"outcome"`
	IsDuplicate bool           `json:"is_duplicate" db:"is_duplicate"`
	BookingID   *uuid.UUID     `json:"booking_id,omitempty" db:"booking_id"`

	// Amount tracking
	ExpectedAmountCents *int64  `json:"expected_amount_cents,omitempty" db:"expected_amount_cents"`
	ReceivedAmountCents *int64  `json:"received_amount_cents,omitempty" db:"received_amount_cents"`
	Currency            *string `json:"currency,omitempty" db:"currency"`
	AmountsMatch        *bool   `json:"amounts_match,omitempty" db:"amounts_match"`

	// Result
	HTTPStatusCode   *int    `json:"http_status_code,omitempty" db:"http_status_code"`
	ErrorMessage     *string `json:"error_message,omitempty" db:"error_message"`
	ErrorCode        *string `json:"error_code,omitempty" db:"error_code"`
	ProcessingTimeMs *int    `json:"processing_time_ms,omitempty" db:"processing_time_ms"`

	// Request metadata
	IPAddress      *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent      *string `json:"user_agent,omitempty" db:"user_agent"`
	ClientPlatform *string `json:"client_platform,omitempty" db:"client_platform"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty" db:"processed_at"`
}

// NewWebhookAudit creates an audit entry stamped with the current time
func NewWebhookAudit() *WebhookAudit {
	return &WebhookAudit{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
	}
}

// SetEvent copies identifiers from a verified event
func (wa *WebhookAudit) SetEvent(event *PaymentEvent) *WebhookAudit {
	if event == nil {
		return wa
	}
	id, eventType := event.ID, event.Type
	wa.EventID = &id
	wa.EventType = &eventType
	if event.PaymentReference != "" {
		ref := event.PaymentReference
		wa.PaymentReference = &ref
	}
	received := event.AmountCents
	wa.ReceivedAmountCents = &received
	if event.Currency != "" {
		currency := event.Currency
		wa.Currency = &currency
	}
	return wa
}

// SetExpectedAmount records the envelope total and whether it matched
func (wa *WebhookAudit) SetExpectedAmount(expected int64) bool {
	wa.ExpectedAmountCents = &expected
	match := wa.ReceivedAmountCents != nil && *wa.ReceivedAmountCents == expected
	wa.AmountsMatch = &match
	return match
}

// SetOutcome records how the delivery was settled
func (wa *WebhookAudit) SetOutcome(outcome WebhookOutcome, statusCode int) *WebhookAudit {
	wa.Outcome = outcome
	wa.IsDuplicate = outcome == OutcomeDuplicate
	wa.HTTPStatusCode = &statusCode
	return wa
}

// SetBooking links the audit entry to the materialized booking
func (wa *WebhookAudit) SetBooking(bookingID uuid.UUID) *WebhookAudit {
	wa.BookingID = &bookingID
	return wa
}

// SetError sets error information
func (wa *WebhookAudit) SetError(message string, code string) *WebhookAudit {
	wa.ErrorMessage = &message
	if code != "" {
		wa.ErrorCode = &code
	}
	return wa
}

// SetMetadata sets request metadata
func (wa *WebhookAudit) SetMetadata(ip, userAgent, platform string) *WebhookAudit {
	if ip != "" {
		wa.IPAddress = &ip
	}
	if userAgent != "" {
		wa.UserAgent = &userAgent
	}
	if platform != "" {
		wa.ClientPlatform = &platform
	}
	return wa
}

// SetProcessingTime calculates and sets processing time
func (wa *WebhookAudit) SetProcessingTime(startTime time.Time) *WebhookAudit {
	durationMs := int(time.Since(startTime).Milliseconds())
	wa.ProcessingTimeMs = &durationMs
	now := time.Now()
	wa.ProcessedAt = &now
	return wa
}
