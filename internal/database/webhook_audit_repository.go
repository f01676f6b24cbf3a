package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/servicehub/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// WebhookAuditRepository handles webhook delivery audit operations
type WebhookAuditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewWebhookAuditRepository creates a new webhook audit repository
func NewWebhookAuditRepository(db *sqlx.DB, logger *logrus.Logger) *WebhookAuditRepository {
	return &WebhookAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log creates a new audit entry
func (r *WebhookAuditRepository) Log(ctx context.Context, audit *models.WebhookAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO webhook_audits (
			id, event_id, event_type, payment_reference,
			outcome, is_duplicate, booking_id,
			expected_amount_cents, received_amount_cents, currency, amounts_match,
			http_status_code, error_message, error_code, processing_time_ms,
			ip_address, user_agent, client_platform,
			created_at, processed_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14, $15,
			$16, $17, $18,
			$19, $20
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.EventID, audit.EventType, audit.PaymentReference,
		audit.Outcome, audit.IsDuplicate, audit.BookingID,
		audit.ExpectedAmountCents, audit.ReceivedAmountCents, audit.Currency, audit.AmountsMatch,
		audit.HTTPStatusCode, audit.ErrorMessage, audit.ErrorCode, audit.ProcessingTimeMs,
		audit.IPAddress, audit.UserAgent, audit.ClientPlatform,
		audit.CreatedAt, audit.ProcessedAt,
	)

	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_id": audit.EventID,
			"outcome":  audit.Outcome,
		}).Error("Failed to log webhook audit")
		return fmt.Errorf("failed to log webhook audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id": audit.ID,
		"outcome":  audit.Outcome,
	}).Debug("Webhook audit logged")

	return nil
}

// GetByPaymentReference retrieves all deliveries for a payment reference
func (r *WebhookAuditRepository) GetByPaymentReference(ctx context.Context, paymentReference string) ([]*models.WebhookAudit, error) {
	var audits []*models.WebhookAudit
	query := `
		SELECT * FROM webhook_audits
		WHERE payment_reference = $1
		ORDER BY created_at ASC`

	if err := r.db.SelectContext(ctx, &audits, query, paymentReference); err != nil {
		return nil, fmt.Errorf("failed to get audits by payment reference: %w", err)
	}

	return audits, nil
}

// DeleteOlderThan purges audit entries created before the cutoff
func (r *WebhookAuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM webhook_audits WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge webhook audits: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return rows, nil
}
