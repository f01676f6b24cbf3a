package metrics

import (
	"fmt"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
	"github.com/gin-gonic/gin"
	"github.com/servicehub/booking-backend/internal/config"
	"github.com/sirupsen/logrus"
)

var webhookDuration = vm.NewHistogram("webhook_processing_duration_seconds")

// RecordWebhookOutcome counts one webhook delivery by outcome
func RecordWebhookOutcome(outcome string) {
	vm.GetOrCreateCounter(fmt.Sprintf(`webhook_events_total{outcome=%q}`, outcome)).Inc()
}

// ObserveWebhookDuration records how long a delivery took to acknowledge
func ObserveWebhookDuration(start time.Time) {
	webhookDuration.UpdateDuration(start)
}

// RecordCheckout counts checkout session attempts by result
func RecordCheckout(result string) {
	vm.GetOrCreateCounter(fmt.Sprintf(`checkout_sessions_total{result=%q}`, result)).Inc()
}

// RecordAlert counts reconciliation alerts by reason. Deduplicated repeats are counted too.
func RecordAlert(reason string) {
	vm.GetOrCreateCounter(fmt.Sprintf(`reconciliation_alerts_total{reason=%q}`, reason)).Inc()
}

// RecordNotification counts delivery attempts per party and result
func RecordNotification(party, transport, result string) {
	vm.GetOrCreateCounter(fmt.Sprintf(`booking_notifications_total{party=%q,transport=%q,result=%q}`, party, transport, result)).Inc()
}

// RecordNotificationDropped counts bookings whose notifications were never queued
func RecordNotificationDropped() {
	vm.GetOrCreateCounter(`booking_notifications_dropped_total`).Inc()
}

// SetOpenAlerts publishes the open alert count seen by the last digest
func SetOpenAlerts(reason string, count int) {
	openAlerts(reason).Set(float64(count))
}

// OpenAlerts returns the last published open alert count for a reason
func OpenAlerts(reason string) int {
	return int(openAlerts(reason).Get())
}

func openAlerts(reason string) *vm.FloatCounter {
	return vm.GetOrCreateFloatCounter(fmt.Sprintf(`reconciliation_alerts_open{reason=%q}`, reason))
}

// Handler exposes every registered metric in Prometheus text format
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		vm.WritePrometheus(c.Writer, true)
	}
}

// Setup starts pushing metrics when a push URL is configured
func Setup(cfg config.MetricsConfig, logger *logrus.Logger) error {
	if cfg.PushURL == "" {
		logger.Info("Metrics push disabled, serving /metrics only")
		return nil
	}

	if err := vm.InitPush(cfg.PushURL, cfg.PushInterval, cfg.ExtraLabels, true); err != nil {
		return fmt.Errorf("failed to init metrics push: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"push_url": cfg.PushURL,
		"interval": cfg.PushInterval.String(),
	}).Info("Metrics push enabled")
	return nil
}
