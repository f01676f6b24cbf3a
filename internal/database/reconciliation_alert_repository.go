package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/servicehub/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// ReconciliationAlertRepository stores paid events that need an operator
type ReconciliationAlertRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewReconciliationAlertRepository creates a new reconciliation alert repository
func NewReconciliationAlertRepository(db *sqlx.DB, logger *logrus.Logger) *ReconciliationAlertRepository {
	return &ReconciliationAlertRepository{
		db:     db,
		logger: logger,
	}
}

// Record stores an alert once per (dedup key, reason). Returns false when an
// identical alert was already recorded by an earlier delivery.
func (r *ReconciliationAlertRepository) Record(ctx context.Context, alert *models.ReconciliationAlert) (bool, error) {
	if alert == nil {
		return false, fmt.Errorf("alert cannot be nil")
	}
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	if alert.Status == "" {
		alert.Status = models.AlertStatusOpen
	}

	query := `
		INSERT INTO reconciliation_alerts (
			id, dedup_key, reason, payment_reference, event_id,
			amount_cents, currency, detail, metadata, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (dedup_key, reason) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query,
		alert.ID, alert.DedupKey, alert.Reason, alert.PaymentReference, alert.EventID,
		alert.AmountCents, alert.Currency, alert.Detail, alert.Metadata, alert.Status, alert.CreatedAt,
	)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"dedup_key": alert.DedupKey,
			"reason":    alert.Reason,
		}).Error("CRITICAL: Failed to record reconciliation alert")
		return false, fmt.Errorf("failed to record reconciliation alert: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return rows > 0, nil
}

// GetByID retrieves an alert. Returns nil, nil if not found.
func (r *ReconciliationAlertRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ReconciliationAlert, error) {
	var alert models.ReconciliationAlert
	query := `SELECT * FROM reconciliation_alerts WHERE id = $1`

	err := r.db.GetContext(ctx, &alert, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reconciliation alert: %w", err)
	}

	return &alert, nil
}

// List retrieves alerts with the given status, newest first
func (r *ReconciliationAlertRepository) List(ctx context.Context, status models.AlertStatus, limit int) ([]*models.ReconciliationAlert, error) {
	alerts := []*models.ReconciliationAlert{}
	query := `
		SELECT * FROM reconciliation_alerts
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &alerts, query, status, limit); err != nil {
		return nil, fmt.Errorf("failed to list reconciliation alerts: %w", err)
	}

	return alerts, nil
}

// Resolve closes an open alert
func (r *ReconciliationAlertRepository) Resolve(ctx context.Context, id uuid.UUID, resolvedBy uuid.UUID, note string) error {
	query := `
		UPDATE reconciliation_alerts
		SET status = $2, resolved_by = $3, resolution_note = $4, resolved_at = NOW()
		WHERE id = $1 AND status = $5`

	result, err := r.db.ExecContext(ctx, query, id, models.AlertStatusResolved, resolvedBy, note, models.AlertStatusOpen)
	if err != nil {
		return fmt.Errorf("failed to resolve reconciliation alert: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return ErrAlertNotFound
	}

	return nil
}

// AlertCount is the number of alerts for one reason
type AlertCount struct {
	Reason models.AlertReason `db:"reason"`
	Count  int                `db:"count"`
}

// CountOpenByReason summarizes open alerts
func (r *ReconciliationAlertRepository) CountOpenByReason(ctx context.Context) ([]AlertCount, error) {
	var counts []AlertCount
	query := `
		SELECT reason, COUNT(*) AS count
		FROM reconciliation_alerts
		WHERE status = $1
		GROUP BY reason
		ORDER BY reason`

	if err := r.db.SelectContext(ctx, &counts, query, models.AlertStatusOpen); err != nil {
		return nil, fmt.Errorf("failed to count open alerts: %w", err)
	}

	return counts, nil
}
