package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/servicehub/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// BookingRepository handles booking persistence
type BookingRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db *sqlx.DB, logger *logrus.Logger) *BookingRepository {
	return &BookingRepository{
		db:     db,
		logger: logger,
	}
}

// ExistsByPaymentReference reports whether a booking was already materialized
// for the reference. Only a fast path: InsertIfAbsent is authoritative.
func (r *BookingRepository) ExistsByPaymentReference(ctx context.Context, paymentReference string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM bookings WHERE payment_reference = $1)`

	if err := r.db.GetContext(ctx, &exists, query, paymentReference); err != nil {
		return false, fmt.Errorf("failed to check booking existence: %w", err)
	}

	return exists, nil
}

// InsertIfAbsent atomically inserts the booking unless one already exists for
// its payment reference. Returns false (and no error) on a conflict.
func (r *BookingRepository) InsertIfAbsent(ctx context.Context, booking *models.Booking) (bool, error) {
	query := `
		INSERT INTO bookings (
			id, provider_id, service_id, client_id,
			guest_name, guest_email, guest_phone,
			booking_date, payment_mode,
			service_price_cents, addon_ids, addon_total_cents, addons_deferred,
			platform_fee_cents, platform_share_cents, provider_share_cents, fee_bypassed,
			amount_charged_cents, currency, payment_reference, checkout_ref,
			status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20, $21,
			$22, $23, $24
		)
		ON CONFLICT (payment_reference) DO NOTHING
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		booking.ID, booking.ProviderID, booking.ServiceID, booking.ClientID,
		booking.GuestName, booking.GuestEmail, booking.GuestPhone,
		booking.BookingDate, booking.PaymentMode,
		booking.ServicePriceCents, booking.AddonIDs, booking.AddonTotalCents, booking.AddonsDeferred,
		booking.PlatformFeeCents, booking.PlatformShareCents, booking.ProviderShareCents, booking.FeeBypassed,
		booking.AmountChargedCents, booking.Currency, booking.PaymentReference, booking.CheckoutRef,
		booking.Status, booking.CreatedAt, booking.UpdatedAt,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		// ON CONFLICT DO NOTHING returns no row
		return false, nil
	case IsUniqueViolation(err):
		// conflict raised by a different unique index or an older server
		return false, nil
	case IsForeignKeyViolation(err):
		return false, fmt.Errorf("failed to insert booking: %w", ErrReferenceMissing)
	default:
		r.logger.WithError(err).WithField("payment_reference", booking.PaymentReference).
			Error("Failed to insert booking")
		return false, fmt.Errorf("failed to insert booking: %w", err)
	}
}

// GetByCheckoutRef retrieves the booking created from a checkout session.
// Returns nil, nil when none exists yet.
func (r *BookingRepository) GetByCheckoutRef(ctx context.Context, checkoutRef uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	query := `SELECT * FROM bookings WHERE checkout_ref = $1`

	err := r.db.GetContext(ctx, &booking, query, checkoutRef)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking by checkout ref: %w", err)
	}

	return &booking, nil
}
