package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/servicehub/booking-backend/internal/middleware"
	"github.com/servicehub/booking-backend/internal/models"
	"github.com/servicehub/booking-backend/internal/services"
	"github.com/servicehub/booking-backend/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCheckout struct {
	requests []models.CheckoutRequest
	err      error
}

func (s *stubCheckout) CreateSession(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutSession, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &models.CheckoutSession{
		SessionID:   "cs_test_123",
		RedirectURL: "https://checkout.stripe.com/c/pay/cs_test_123",
		Descriptor: &models.CheckoutSessionDescriptor{
			ID:         uuid.New(),
			TotalCents: 2838,
			Currency:   "usd",
			Fee: models.FeeBreakdown{
				PlatformFeeCents:   338,
				PlatformShareCents: 203,
				ProviderShareCents: 135,
			},
		},
	}, nil
}

type checkoutFixture struct {
	router   *gin.Engine
	checkout *stubCheckout
	jwt      *jwt.Service
}

func newCheckoutFixture() *checkoutFixture {
	gin.SetMode(gin.TestMode)
	logger := newTestLogger()

	f := &checkoutFixture{
		checkout: &stubCheckout{},
		jwt:      jwt.NewService("checkout-test-secret", "servicehub-booking", time.Hour),
	}
	handler := NewCheckoutHandler(f.checkout, logger)

	f.router = gin.New()
	f.router.POST("/api/v1/checkout/sessions", middleware.OptionalAuth(f.jwt, logger), handler.CreateSession)
	return f
}

func (f *checkoutFixture) post(t *testing.T, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/sessions", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func checkoutBody() map[string]interface{} {
	return map[string]interface{}{
		"provider_id":  uuid.NewString(),
		"service_id":   uuid.NewString(),
		"addon_ids":    []string{uuid.NewString()},
		"date":         "2026-10-20T14:30:00Z",
		"payment_mode": "full",
		"guest": map[string]string{
			"name":  "Ada Lovelace",
			"email": "ada@example.com",
		},
	}
}

func TestCreateCheckoutSession_Guest(t *testing.T) {
	f := newCheckoutFixture()

	w := f.post(t, checkoutBody(), "")

	require.Equal(t, http.StatusCreated, w.Code)
	var resp CreateCheckoutSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "cs_test_123", resp.SessionID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_123", resp.RedirectURL)
	assert.Equal(t, int64(2838), resp.TotalCents)
	assert.Equal(t, int64(203), resp.Fee.PlatformShareCents)

	require.Len(t, f.checkout.requests, 1)
	req := f.checkout.requests[0]
	assert.True(t, req.Client.IsGuest())
	require.NotNil(t, req.Client.Guest)
	assert.Equal(t, "Ada Lovelace", req.Client.Guest.Name)
	assert.Len(t, req.AddonIDs, 1)
	assert.Equal(t, models.PaymentModeFull, req.PaymentMode)
}

func TestCreateCheckoutSession_SignedInClient(t *testing.T) {
	f := newCheckoutFixture()
	clientID := uuid.New()
	token, err := f.jwt.GenerateAccessToken(clientID, "grace@example.com", []string{jwt.RoleClient})
	require.NoError(t, err)

	w := f.post(t, checkoutBody(), token)

	require.Equal(t, http.StatusCreated, w.Code)
	req := f.checkout.requests[0]
	require.NotNil(t, req.Client.ClientID)
	assert.Equal(t, clientID, *req.Client.ClientID)
	assert.Nil(t, req.Client.Guest, "guest details are ignored for signed-in clients")
}

func TestCreateCheckoutSession_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]interface{})
		want   string
	}{
		{"Missing provider", func(b map[string]interface{}) { delete(b, "provider_id") }, "invalid_request"},
		{"Missing date", func(b map[string]interface{}) { delete(b, "date") }, "invalid_request"},
		{"Bad provider ID", func(b map[string]interface{}) { b["provider_id"] = "abc" }, "invalid_id"},
		{"Bad add-on ID", func(b map[string]interface{}) { b["addon_ids"] = []string{"nope"} }, "invalid_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture()
			body := checkoutBody()
			tt.mutate(body)

			w := f.post(t, body, "")

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, decode(t, w)["error"])
			assert.Empty(t, f.checkout.requests)
		})
	}
}

func TestCreateCheckoutSession_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"Provider not found", services.ErrProviderNotFound, http.StatusNotFound, "provider_not_found"},
		{"Service not found", services.ErrServiceNotFound, http.StatusNotFound, "service_not_found"},
		{"Add-on not found", fmt.Errorf("%w: x", services.ErrAddonNotFound), http.StatusNotFound, "addon_not_found"},
		{"Provider cannot take payments", services.ErrProviderNotPaymentCapable, http.StatusBadRequest, "checkout_rejected"},
		{"Invalid mode", fmt.Errorf("%w: %q", models.ErrInvalidPaymentMode, "half"), http.StatusBadRequest, "checkout_rejected"},
		{"Nothing to charge", services.ErrNothingToCharge, http.StatusBadRequest, "checkout_rejected"},
		{"Catalog down", fmt.Errorf("load provider: %w: %w", services.ErrTransient, errors.New("timeout")), http.StatusInternalServerError, "database_error"},
		{"Processor down", errors.New("failed to open checkout session: 503"), http.StatusBadGateway, "payment_processor_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture()
			f.checkout.err = tt.err

			w := f.post(t, checkoutBody(), "")

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, decode(t, w)["error"])
		})
	}
}
