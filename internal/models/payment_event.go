package models

import "time"

// EventTypePaymentSucceeded is the only processor event that materializes bookings
const EventTypePaymentSucceeded = "payment_intent.succeeded"

// PaymentEvent is a verified inbound processor notification
type PaymentEvent struct {
	ID               string            `json:"id"`
	Type             string            `json:"type"`
	PaymentReference string            `json:"payment_reference"`
	AmountCents      int64             `json:"amount_cents"`
	Currency         string            `json:"currency"`
	Metadata         map[string]string `json:"metadata"`
	Livemode         bool              `json:"livemode"`
	CreatedAt        time.Time         `json:"created_at"`
}

// IsPaymentSucceeded reports whether the event qualifies for materialization
func (e *PaymentEvent) IsPaymentSucceeded() bool {
	return e.Type == EventTypePaymentSucceeded
}

// ReconciliationState tracks one payment reference through ingress
type ReconciliationState string

const (
	StateReceived     ReconciliationState = "RECEIVED"
	StateValidated    ReconciliationState = "VALIDATED"
	StateDuplicate    ReconciliationState = "DUPLICATE"
	StateCreated      ReconciliationState = "CREATED"
	StateAcknowledged ReconciliationState = "ACKNOWLEDGED"
)

// CanTransitionTo enforces RECEIVED -> VALIDATED -> {DUPLICATE|CREATED} -> ACKNOWLEDGED
func (s ReconciliationState) CanTransitionTo(next ReconciliationState) bool {
	switch s {
	case StateReceived:
		return next == StateValidated
	case StateValidated:
		return next == StateDuplicate || next == StateCreated
	case StateDuplicate, StateCreated:
		return next == StateAcknowledged
	default:
		return false
	}
}

// WebhookOutcome is how a single delivery was settled
type WebhookOutcome string

const (
	OutcomeCreated   WebhookOutcome = "created"
	OutcomeDuplicate WebhookOutcome = "duplicate"
	OutcomeIgnored   WebhookOutcome = "ignored"
	OutcomeAlerted   WebhookOutcome = "alerted"
	OutcomeRejected  WebhookOutcome = "rejected"
	OutcomeFailed    WebhookOutcome = "failed"
)
