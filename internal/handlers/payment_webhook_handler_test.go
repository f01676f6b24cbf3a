package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/servicehub/booking-backend/internal/config"
	"github.com/servicehub/booking-backend/internal/models"
	"github.com/servicehub/booking-backend/internal/services"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_handler_test"

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type memoryAuditStore struct {
	entries []*models.WebhookAudit
}

func (m *memoryAuditStore) Log(ctx context.Context, audit *models.WebhookAudit) error {
	m.entries = append(m.entries, audit)
	return nil
}

type stubReconciler struct {
	result *services.ReconciliationResult
	err    error
	events []*models.PaymentEvent
}

func (s *stubReconciler) HandleEvent(ctx context.Context, event *models.PaymentEvent) (*services.ReconciliationResult, error) {
	s.events = append(s.events, event)
	return s.result, s.err
}

type webhookFixture struct {
	router     *gin.Engine
	audits     *memoryAuditStore
	reconciler *stubReconciler
}

func newWebhookFixture() *webhookFixture {
	gin.SetMode(gin.TestMode)
	logger := newTestLogger()

	processor := services.NewStripeProcessor(config.PaymentConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		Currency:      "usd",
		SuccessURL:    "https://app.example.com/checkout/success",
		CancelURL:     "https://app.example.com/checkout/cancel",
	}, logger)

	f := &webhookFixture{
		audits:     &memoryAuditStore{},
		reconciler: &stubReconciler{},
	}
	handler := NewPaymentWebhookHandler(processor, f.reconciler, services.NewAuditService(f.audits, logger), logger)

	f.router = gin.New()
	f.router.POST("/api/v1/payments/webhook", handler.HandleWebhook)
	return f
}

func (f *webhookFixture) deliver(payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Stripe/1.0 (+https://stripe.com/docs/webhooks)")
	if signature != "" {
		req.Header.Set(StripeSignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func signEvent(t *testing.T, eventType string) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":          "evt_" + uuid.NewString()[:8],
		"object":      "event",
		"api_version": "2025-04-30.basil",
		"created":     1760000000,
		"type":        eventType,
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":              "pi_123",
				"object":          "payment_intent",
				"amount":          2838,
				"amount_received": 2838,
				"currency":        "usd",
				"metadata":        map[string]string{"v": "1"},
			},
		},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHandleWebhook_SignatureRejected(t *testing.T) {
	payload, _ := signEvent(t, models.EventTypePaymentSucceeded)

	tests := []struct {
		name      string
		signature string
	}{
		{"Missing header", ""},
		{"Wrong secret", fmt.Sprintf("t=%d,v1=%s", time.Now().Unix(), "deadbeef")},
		{"Garbage header", "not-a-signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWebhookFixture()

			w := f.deliver(payload, tt.signature)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "INVALID_SIGNATURE", decode(t, w)["code"])
			assert.Empty(t, f.reconciler.events, "unsigned deliveries must not reach reconciliation")
			require.Len(t, f.audits.entries, 1)
			assert.Equal(t, models.OutcomeRejected, f.audits.entries[0].Outcome)
			assert.Equal(t, 400, *f.audits.entries[0].HTTPStatusCode)
		})
	}
}

func TestHandleWebhook_Outcomes(t *testing.T) {
	bookingID := uuid.New()
	alertEvent := &models.PaymentEvent{ID: "evt_1", PaymentReference: "pi_123", AmountCents: 2838}

	tests := []struct {
		name       string
		result     *services.ReconciliationResult
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "Created",
			result:     &services.ReconciliationResult{Outcome: models.OutcomeCreated, Booking: &models.Booking{ID: bookingID}},
			wantStatus: http.StatusOK,
			wantBody:   "created",
		},
		{
			name:       "Duplicate",
			result:     &services.ReconciliationResult{Outcome: models.OutcomeDuplicate},
			wantStatus: http.StatusOK,
			wantBody:   "duplicate",
		},
		{
			name:       "Ignored",
			result:     &services.ReconciliationResult{Outcome: models.OutcomeIgnored},
			wantStatus: http.StatusOK,
			wantBody:   "ignored",
		},
		{
			name: "Alerted",
			result: &services.ReconciliationResult{
				Outcome: models.OutcomeAlerted,
				Alert:   models.NewReconciliationAlert(models.AlertEnvelopeInvalid, alertEvent, "metadata envelope rejected"),
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "alerted",
		},
		{
			name:       "Transient failure",
			err:        fmt.Errorf("insert booking: %w: %w", services.ErrTransient, errors.New("connection reset")),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWebhookFixture()
			f.reconciler.result = tt.result
			f.reconciler.err = tt.err
			payload, signature := signEvent(t, models.EventTypePaymentSucceeded)

			w := f.deliver(payload, signature)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, decode(t, w)["status"])
			}
			require.Len(t, f.reconciler.events, 1)
			assert.Equal(t, "pi_123", f.reconciler.events[0].PaymentReference)
			assert.Equal(t, int64(2838), f.reconciler.events[0].AmountCents)

			require.Len(t, f.audits.entries, 1)
			assert.Equal(t, tt.wantStatus, *f.audits.entries[0].HTTPStatusCode)
			assert.Equal(t, "pi_123", *f.audits.entries[0].PaymentReference)
		})
	}
}

func TestHandleWebhook_CreatedReturnsBookingID(t *testing.T) {
	f := newWebhookFixture()
	bookingID := uuid.New()
	f.reconciler.result = &services.ReconciliationResult{Outcome: models.OutcomeCreated, Booking: &models.Booking{ID: bookingID}}
	payload, signature := signEvent(t, models.EventTypePaymentSucceeded)

	w := f.deliver(payload, signature)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, bookingID.String(), decode(t, w)["booking_id"])
	assert.Equal(t, bookingID, *f.audits.entries[0].BookingID)
}

func TestHandleWebhook_OversizedBody(t *testing.T) {
	f := newWebhookFixture()

	w := f.deliver(bytes.Repeat([]byte("a"), maxWebhookBodyBytes+1), "t=1,v1=abc")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_PAYLOAD", decode(t, w)["code"])
	assert.Empty(t, f.reconciler.events)
}
