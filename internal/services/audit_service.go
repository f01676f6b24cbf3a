package services

import (
	"context"
	"time"

	"github.com/servicehub/booking-backend/internal/models"
	"github.com/servicehub/booking-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// AuditLogger persists webhook audit entries
type AuditLogger interface {
	Log(ctx context.Context, audit *models.WebhookAudit) error
}

// RequestInfo is the caller information recorded with each delivery
type RequestInfo struct {
	IPAddress string
	UserAgent string
	StartedAt time.Time
}

// AuditService records one audit row per webhook delivery. Audit failures are
// logged and never change the response to the processor.
type AuditService struct {
	store  AuditLogger
	logger *logrus.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(store AuditLogger, logger *logrus.Logger) *AuditService {
	return &AuditService{store: store, logger: logger}
}

// RecordDelivery builds the audit entry for a settled delivery and stores it
func (s *AuditService) RecordDelivery(
	ctx context.Context,
	req RequestInfo,
	event *models.PaymentEvent,
	result *ReconciliationResult,
	outcome models.WebhookOutcome,
	statusCode int,
	deliveryErr error,
) *models.WebhookAudit {
	audit := models.NewWebhookAudit().
		SetEvent(event).
		SetOutcome(outcome, statusCode).
		SetMetadata(req.IPAddress, req.UserAgent, utils.ParseUserAgent(req.UserAgent).String())

	if result != nil {
		if result.Envelope != nil {
			audit.SetExpectedAmount(result.Envelope.TotalCents)
		}
		if result.Booking != nil {
			audit.SetBooking(result.Booking.ID)
		}
		if result.Alert != nil {
			audit.SetError(result.Alert.Detail, string(result.Alert.Reason))
		}
	}
	if deliveryErr != nil {
		audit.SetError(deliveryErr.Error(), string(outcome))
	}
	if !req.StartedAt.IsZero() {
		audit.SetProcessingTime(req.StartedAt)
	}

	if err := s.store.Log(ctx, audit); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"audit_id": audit.ID,
			"outcome":  outcome,
		}).Error("AUDIT ERROR: failed to record webhook delivery")
	}

	return audit
}
