package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/servicehub/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciliationAlertRepository_Record(t *testing.T) {
	ctx := context.Background()
	event := &models.PaymentEvent{
		ID:               "evt_1",
		Type:             models.EventTypePaymentSucceeded,
		PaymentReference: "pi_1",
		AmountCents:      2838,
		Currency:         "usd",
		Metadata:         map[string]string{"provider_id": "nope"},
	}

	t.Run("New alert", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewReconciliationAlertRepository(db, newTestLogger())
		alert := models.NewReconciliationAlert(models.AlertEnvelopeInvalid, event, "provider_id is not a valid id")

		mock.ExpectExec(`INSERT INTO reconciliation_alerts .* ON CONFLICT \(dedup_key, reason\) DO NOTHING`).
			WithArgs(alert.ID, "pi_1", models.AlertEnvelopeInvalid, sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), "provider_id is not a valid id", sqlmock.AnyArg(),
				models.AlertStatusOpen, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		created, err := repo.Record(ctx, alert)
		require.NoError(t, err)
		assert.True(t, created)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already recorded", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewReconciliationAlertRepository(db, newTestLogger())

		mock.ExpectExec(`INSERT INTO reconciliation_alerts`).
			WithArgs(anyArgs(11)...).
			WillReturnResult(sqlmock.NewResult(0, 0))

		created, err := repo.Record(ctx, models.NewReconciliationAlert(models.AlertEnvelopeInvalid, event, "x"))
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("Nil alert", func(t *testing.T) {
		db, _ := newMockDB(t)
		repo := NewReconciliationAlertRepository(db, newTestLogger())

		_, err := repo.Record(ctx, nil)
		assert.Error(t, err)
	})
}

func TestReconciliationAlertRepository_Resolve(t *testing.T) {
	ctx := context.Background()
	alertID := uuid.New()
	operatorID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewReconciliationAlertRepository(db, newTestLogger())

		mock.ExpectExec(`UPDATE reconciliation_alerts`).
			WithArgs(alertID, models.AlertStatusResolved, operatorID, "refunded manually", models.AlertStatusOpen).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Resolve(ctx, alertID, operatorID, "refunded manually"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not open", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewReconciliationAlertRepository(db, newTestLogger())

		mock.ExpectExec(`UPDATE reconciliation_alerts`).
			WithArgs(anyArgs(5)...).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Resolve(ctx, alertID, operatorID, ""), ErrAlertNotFound)
	})
}

func TestReconciliationAlertRepository_CountOpenByReason(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReconciliationAlertRepository(db, newTestLogger())

	mock.ExpectQuery(`SELECT reason, COUNT\(\*\) AS count`).
		WithArgs(models.AlertStatusOpen).
		WillReturnRows(sqlmock.NewRows([]string{"reason", "count"}).
			AddRow("amount_mismatch", 1).
			AddRow("envelope_invalid", 3))

	counts, err := repo.CountOpenByReason(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, models.AlertEnvelopeInvalid, counts[1].Reason)
	assert.Equal(t, 3, counts[1].Count)
}

func TestWebhookAuditRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Log", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewWebhookAuditRepository(db, newTestLogger())

		audit := models.NewWebhookAudit().
			SetEvent(&models.PaymentEvent{ID: "evt_1", Type: "payment_intent.succeeded", PaymentReference: "pi_1", AmountCents: 2838, Currency: "usd"}).
			SetOutcome(models.OutcomeDuplicate, 200)

		mock.ExpectExec(`INSERT INTO webhook_audits`).
			WithArgs(anyArgs(20)...).
			WillReturnResult(sqlmock.NewResult(1, 1))

		require.NoError(t, repo.Log(ctx, audit))
		assert.True(t, audit.IsDuplicate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GetByPaymentReference", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewWebhookAuditRepository(db, newTestLogger())

		mock.ExpectQuery(`SELECT \* FROM webhook_audits\s+WHERE payment_reference = \$1\s+ORDER BY created_at ASC`).
			WithArgs("pi_1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "payment_reference", "outcome", "is_duplicate", "created_at"}).
				AddRow(uuid.NewString(), "evt_1", "pi_1", "created", false, time.Now()).
				AddRow(uuid.NewString(), "evt_1", "pi_1", "duplicate", true, time.Now()))

		audits, err := repo.GetByPaymentReference(ctx, "pi_1")
		require.NoError(t, err)
		require.Len(t, audits, 2)
		assert.Equal(t, models.OutcomeDuplicate, audits[1].Outcome)
		assert.True(t, audits[1].IsDuplicate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DeleteOlderThan", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewWebhookAuditRepository(db, newTestLogger())
		cutoff := time.Now().AddDate(0, 0, -90)

		mock.ExpectExec(`DELETE FROM webhook_audits WHERE created_at < \$1`).
			WithArgs(cutoff).
			WillReturnResult(sqlmock.NewResult(0, 42))

		deleted, err := repo.DeleteOlderThan(ctx, cutoff)
		require.NoError(t, err)
		assert.Equal(t, int64(42), deleted)
	})
}
