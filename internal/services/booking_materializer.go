package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/servicehub/booking-backend/internal/database"
	"github.com/servicehub/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// BookingStore is the persistence the materializer needs.
// InsertIfAbsent must be atomic on the payment reference.
type BookingStore interface {
	ExistsByPaymentReference(ctx context.Context, paymentReference string) (bool, error)
	InsertIfAbsent(ctx context.Context, booking *models.Booking) (bool, error)
}

// IdempotencyGuard answers whether a payment reference already has a booking.
// It is a fast path only; the unique index decides under concurrency.
type IdempotencyGuard struct {
	store BookingStore
}

// NewIdempotencyGuard creates a guard over the booking store
func NewIdempotencyGuard(store BookingStore) *IdempotencyGuard {
	return &IdempotencyGuard{store: store}
}

// IsProcessed reports whether a booking exists for the payment reference
func (g *IdempotencyGuard) IsProcessed(ctx context.Context, paymentReference string) (bool, error) {
	exists, err := g.store.ExistsByPaymentReference(ctx, paymentReference)
	if err != nil {
		return false, transient("idempotency check", err)
	}
	return exists, nil
}

// MaterializeResult is the terminal state of one materialization attempt
type MaterializeResult struct {
	State   models.ReconciliationState
	Booking *models.Booking
}

// BookingMaterializer converts a validated envelope into exactly one booking
type BookingMaterializer struct {
	guard   *IdempotencyGuard
	store   BookingStore
	catalog CheckoutCatalog
	logger  *logrus.Logger
}

// NewBookingMaterializer creates a new BookingMaterializer
func NewBookingMaterializer(store BookingStore, catalog CheckoutCatalog, logger *logrus.Logger) *BookingMaterializer {
	return &BookingMaterializer{
		guard:   NewIdempotencyGuard(store),
		store:   store,
		catalog: catalog,
		logger:  logger,
	}
}

// Materialize creates the booking for a paid event, or reports DUPLICATE when
// the payment reference already has one. Returned errors are either a
// *ReconciliationError (alert, do not retry) or wrap ErrTransient.
func (m *BookingMaterializer) Materialize(ctx context.Context, env *models.MetadataEnvelope, event *models.PaymentEvent) (*MaterializeResult, error) {
	log := m.logger.WithFields(logrus.Fields{
		"payment_reference": event.PaymentReference,
		"checkout_ref":      env.CheckoutRef,
	})

	if err := env.Fee.Validate(); err != nil {
		return nil, newReconciliationError(models.AlertFeeInvariant, "fee split in metadata is inconsistent", err)
	}

	processed, err := m.guard.IsProcessed(ctx, event.PaymentReference)
	if err != nil {
		return nil, err
	}
	if processed {
		log.Info("Booking already exists for payment, skipping")
		return &MaterializeResult{State: models.StateDuplicate}, nil
	}

	if err := m.verifyReferences(ctx, env); err != nil {
		return nil, err
	}

	booking := models.NewBookingFromEnvelope(env, event)
	created, err := m.store.InsertIfAbsent(ctx, booking)
	if err != nil {
		if errors.Is(err, database.ErrReferenceMissing) {
			return nil, newReconciliationError(models.AlertReferenceGone, "provider, service or client was removed before the booking was written", err)
		}
		return nil, transient("insert booking", err)
	}

	if !created {
		// lost the race to a concurrent delivery of the same payment
		log.Info("Concurrent delivery created the booking first")
		return &MaterializeResult{State: models.StateDuplicate}, nil
	}

	log.WithFields(logrus.Fields{
		"booking_id":   booking.ID,
		"provider_id":  booking.ProviderID,
		"amount_cents": booking.AmountChargedCents,
	}).Info("Booking materialized")

	return &MaterializeResult{State: models.StateCreated, Booking: booking}, nil
}

// verifyReferences confirms the provider and service still exist and belong together
func (m *BookingMaterializer) verifyReferences(ctx context.Context, env *models.MetadataEnvelope) error {
	provider, err := m.catalog.GetProviderAccount(ctx, env.ProviderID)
	if err != nil {
		return transient("load provider", err)
	}
	if provider == nil {
		return newReconciliationError(models.AlertProviderMissing, fmt.Sprintf("provider %s does not exist", env.ProviderID), nil)
	}

	service, err := m.catalog.GetService(ctx, env.ServiceID)
	if err != nil {
		return transient("load service", err)
	}
	if service == nil {
		return newReconciliationError(models.AlertServiceMissing, fmt.Sprintf("service %s does not exist", env.ServiceID), nil)
	}
	if service.ProviderID != env.ProviderID {
		return newReconciliationError(models.AlertServiceMissing,
			fmt.Sprintf("service %s does not belong to provider %s", env.ServiceID, env.ProviderID), nil)
	}

	return nil
}
