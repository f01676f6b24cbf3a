package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/servicehub/booking-backend/internal/metrics"
	"github.com/servicehub/booking-backend/internal/models"
	"github.com/servicehub/booking-backend/internal/services"
	"github.com/servicehub/booking-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// StripeSignatureHeader carries the processor's delivery signature
const StripeSignatureHeader = "Stripe-Signature"

// maxWebhookBodyBytes matches the largest event payload the processor sends
const maxWebhookBodyBytes = 65536

// WebhookEventParser authenticates and decodes a raw delivery
type WebhookEventParser interface {
	ParseWebhookEvent(payload []byte, signatureHeader string) (*models.PaymentEvent, error)
}

// PaymentEventHandler settles a verified event
type PaymentEventHandler interface {
	HandleEvent(ctx context.Context, event *models.PaymentEvent) (*services.ReconciliationResult, error)
}

// PaymentWebhookHandler receives payment processor webhooks
type PaymentWebhookHandler struct {
	parser     WebhookEventParser
	reconciler PaymentEventHandler
	audit      *services.AuditService
	logger     *logrus.Logger
}

// NewPaymentWebhookHandler creates a new payment webhook handler
func NewPaymentWebhookHandler(
	parser WebhookEventParser,
	reconciler PaymentEventHandler,
	audit *services.AuditService,
	logger *logrus.Logger,
) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{
		parser:     parser,
		reconciler: reconciler,
		audit:      audit,
		logger:     logger,
	}
}

// HandleWebhook handles POST /api/v1/payments/webhook
// @Summary Receive a payment processor event
// @Description Verifies the signature, then materializes a booking for payment_intent.succeeded.
// 2xx and 4xx are final for the processor, 5xx asks it to redeliver.
// @Tags Payments
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} map[string]interface{}
// @Failure 500 {object} ErrorResponse
// @Router /payments/webhook [post]
func (h *PaymentWebhookHandler) HandleWebhook(c *gin.Context) {
	start := time.Now()
	defer metrics.ObserveWebhookDuration(start)

	req := services.RequestInfo{
		IPAddress: utils.GetRealIP(c),
		UserAgent: utils.GetUserAgent(c),
		StartedAt: start,
	}
	// the audit row is written even if the processor hangs up first
	auditCtx := context.WithoutCancel(c.Request.Context())

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		h.logger.WithError(err).WithField("ip", req.IPAddress).Warn("Failed to read webhook body")
		h.reject(c, auditCtx, req, services.ErrMalformedEvent, "INVALID_PAYLOAD", "Could not read request body")
		return
	}

	event, err := h.parser.ParseWebhookEvent(body, c.GetHeader(StripeSignatureHeader))
	if err != nil {
		if errors.Is(err, services.ErrInvalidSignature) {
			h.logger.WithError(err).WithFields(logrus.Fields{
				"ip":         req.IPAddress,
				"user_agent": req.UserAgent,
			}).Warn("SECURITY: webhook signature verification failed")
			h.reject(c, auditCtx, req, services.ErrInvalidSignature, "INVALID_SIGNATURE", "Webhook signature verification failed")
			return
		}
		h.logger.WithError(err).WithField("ip", req.IPAddress).Warn("Malformed webhook event")
		h.reject(c, auditCtx, req, services.ErrMalformedEvent, "MALFORMED_EVENT", "Webhook payload is not a valid event")
		return
	}

	log := h.logger.WithFields(logrus.Fields{
		"event_id":          event.ID,
		"event_type":        event.Type,
		"payment_reference": event.PaymentReference,
	})

	result, err := h.reconciler.HandleEvent(c.Request.Context(), event)
	if err != nil {
		log.WithError(err).Error("Webhook processing failed, processor will redeliver")
		h.audit.RecordDelivery(auditCtx, req, event, nil, models.OutcomeFailed, http.StatusInternalServerError, err)
		metrics.RecordWebhookOutcome(string(models.OutcomeFailed))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "processing_failed",
			Message: "Webhook could not be processed, please retry",
			Code:    "RETRY",
		})
		return
	}

	status := http.StatusOK
	response := gin.H{"status": result.Outcome}
	switch result.Outcome {
	case models.OutcomeCreated:
		response["booking_id"] = result.Booking.ID
		log.WithField("booking_id", result.Booking.ID).Info("Booking created from payment")
	case models.OutcomeDuplicate:
		log.Info("Duplicate payment delivery acknowledged")
	case models.OutcomeIgnored:
		log.Debug("Webhook event ignored")
	case models.OutcomeAlerted:
		status = http.StatusUnprocessableEntity
		response["reason"] = result.Alert.Reason
		response["alert_id"] = result.Alert.ID
	}

	h.audit.RecordDelivery(auditCtx, req, event, result, result.Outcome, status, nil)
	metrics.RecordWebhookOutcome(string(result.Outcome))
	c.JSON(status, response)
}

func (h *PaymentWebhookHandler) reject(c *gin.Context, ctx context.Context, req services.RequestInfo, cause error, code, message string) {
	h.audit.RecordDelivery(ctx, req, nil, nil, models.OutcomeRejected, http.StatusBadRequest, cause)
	metrics.RecordWebhookOutcome(string(models.OutcomeRejected))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_webhook",
		Message: message,
		Code:    code,
	})
}
