package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/servicehub/booking-backend/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ExposesRecordedMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)

	RecordWebhookOutcome("created")
	RecordCheckout("ok")
	RecordAlert("amount_mismatch")
	RecordNotification("client", "log", "delivered")
	RecordNotificationDropped()
	SetOpenAlerts("envelope_invalid", 3)
	ObserveWebhookDuration(time.Now().Add(-25 * time.Millisecond))

	router := gin.New()
	router.GET("/metrics", Handler())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `webhook_events_total{outcome="created"}`)
	assert.Contains(t, body, `checkout_sessions_total{result="ok"}`)
	assert.Contains(t, body, `reconciliation_alerts_total{reason="amount_mismatch"}`)
	assert.Contains(t, body, `booking_notifications_total{party="client",transport="log",result="delivered"}`)
	assert.Contains(t, body, `booking_notifications_dropped_total`)
	assert.Contains(t, body, `reconciliation_alerts_open{reason="envelope_invalid"} 3`)
	assert.Contains(t, body, `webhook_processing_duration_seconds_bucket`)
	assert.Contains(t, body, "go_goroutines")
}

func TestSetup_NoPushURL(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	assert.NoError(t, Setup(config.MetricsConfig{}, logger))
}
