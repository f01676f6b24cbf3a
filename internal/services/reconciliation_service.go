package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/servicehub/booking-backend/internal/metrics"
	"github.com/servicehub/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// AlertRecorder persists reconciliation alerts, collapsing repeats
type AlertRecorder interface {
	Record(ctx context.Context, alert *models.ReconciliationAlert) (bool, error)
}

// NotificationEnqueuer accepts a created booking for asynchronous notification.
// It must not block.
type NotificationEnqueuer interface {
	Enqueue(booking *models.Booking) bool
}

// ReconciliationResult describes how one event was settled
type ReconciliationResult struct {
	Outcome  models.WebhookOutcome
	States   []models.ReconciliationState
	Booking  *models.Booking
	Alert    *models.ReconciliationAlert
	Envelope *models.MetadataEnvelope
}

// State returns the last state reached
func (r *ReconciliationResult) State() models.ReconciliationState {
	if len(r.States) == 0 {
		return ""
	}
	return r.States[len(r.States)-1]
}

func (r *ReconciliationResult) advance(next models.ReconciliationState) error {
	if current := r.State(); current != "" && !current.CanTransitionTo(next) {
		return fmt.Errorf("illegal reconciliation transition %s -> %s", current, next)
	}
	r.States = append(r.States, next)
	return nil
}

// ReconciliationService settles verified payment events: validate, materialize,
// alert on anything money-moved-but-unbookable, and hand off notifications
type ReconciliationService struct {
	materializer *BookingMaterializer
	alerts       AlertRecorder
	notifier     NotificationEnqueuer
	currency     string
	logger       *logrus.Logger
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(
	materializer *BookingMaterializer,
	alerts AlertRecorder,
	notifier NotificationEnqueuer,
	currency string,
	logger *logrus.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		materializer: materializer,
		alerts:       alerts,
		notifier:     notifier,
		currency:     strings.ToLower(currency),
		logger:       logger,
	}
}

// HandleEvent settles one event. A nil error means the delivery can be
// acknowledged; the result's Outcome tells the caller how. Errors wrap
// ErrTransient and mean the processor should redeliver.
func (s *ReconciliationService) HandleEvent(ctx context.Context, event *models.PaymentEvent) (*ReconciliationResult, error) {
	result := &ReconciliationResult{}

	if !event.IsPaymentSucceeded() {
		s.logger.WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Debug("Ignoring non-payment event")
		result.Outcome = models.OutcomeIgnored
		return result, nil
	}

	_ = result.advance(models.StateReceived)

	envelope, recErr := s.validate(event)
	if recErr != nil {
		return s.raiseAlert(ctx, result, event, recErr)
	}
	result.Envelope = envelope
	if err := result.advance(models.StateValidated); err != nil {
		return nil, err
	}

	materialized, err := s.materializer.Materialize(ctx, envelope, event)
	if err != nil {
		var re *ReconciliationError
		if errors.As(err, &re) {
			return s.raiseAlert(ctx, result, event, re)
		}
		s.logger.WithError(err).WithField("payment_reference", event.PaymentReference).Error("Booking materialization failed")
		return nil, err
	}

	if err := result.advance(materialized.State); err != nil {
		return nil, err
	}
	result.Booking = materialized.Booking

	if materialized.State == models.StateCreated {
		result.Outcome = models.OutcomeCreated
		if !s.notifier.Enqueue(materialized.Booking) {
			metrics.RecordNotificationDropped()
			s.logger.WithField("booking_id", materialized.Booking.ID).Warn("Notification queue full, booking notifications dropped")
		}
	} else {
		result.Outcome = models.OutcomeDuplicate
	}

	if err := result.advance(models.StateAcknowledged); err != nil {
		return nil, err
	}

	return result, nil
}

// validate checks the event and its envelope before anything is written
func (s *ReconciliationService) validate(event *models.PaymentEvent) (*models.MetadataEnvelope, *ReconciliationError) {
	if event.PaymentReference == "" {
		return nil, newReconciliationError(models.AlertEnvelopeInvalid, "event carries no payment reference", nil)
	}

	envelope, err := models.ParseMetadataEnvelope(event.Metadata)
	if err != nil {
		return nil, newReconciliationError(models.AlertEnvelopeInvalid, "metadata envelope rejected", err)
	}

	if s.currency != "" && !strings.EqualFold(event.Currency, s.currency) {
		return nil, newReconciliationError(models.AlertAmountMismatch,
			fmt.Sprintf("charged in %q, expected %q", event.Currency, s.currency), nil)
	}
	if event.AmountCents != envelope.TotalCents {
		return nil, newReconciliationError(models.AlertAmountMismatch,
			fmt.Sprintf("charged %d, envelope total is %d", event.AmountCents, envelope.TotalCents), nil)
	}

	return envelope, nil
}

// raiseAlert records the alert and settles the delivery as alerted. Failing to
// record it is the one case where an unbookable payment is retried.
func (s *ReconciliationService) raiseAlert(ctx context.Context, result *ReconciliationResult, event *models.PaymentEvent, recErr *ReconciliationError) (*ReconciliationResult, error) {
	alert := models.NewReconciliationAlert(recErr.Reason, event, recErr.Error())

	log := s.logger.WithFields(logrus.Fields{
		"event_id":          event.ID,
		"payment_reference": event.PaymentReference,
		"amount_cents":      event.AmountCents,
		"reason":            recErr.Reason,
	})

	created, err := s.alerts.Record(ctx, alert)
	if err != nil {
		log.WithError(err).Error("Failed to record reconciliation alert")
		return nil, transient("record reconciliation alert", err)
	}

	metrics.RecordAlert(string(recErr.Reason))
	if created {
		log.WithError(recErr).Error("Payment received but no booking could be created")
	} else {
		// the earlier alert may since have been resolved; its status is left as is
		log.Warn("Repeat delivery for a payment with a recorded reconciliation alert")
	}

	result.Outcome = models.OutcomeAlerted
	result.Alert = alert
	return result, nil
}
