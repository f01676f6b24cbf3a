package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/servicehub/booking-backend/internal/database"
	"github.com/servicehub/booking-backend/internal/middleware"
	"github.com/servicehub/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	defaultAlertListLimit = 50
	maxAlertListLimit     = 200
)

// AlertQueue is the operator view of reconciliation alerts
type AlertQueue interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.ReconciliationAlert, error)
	List(ctx context.Context, status models.AlertStatus, limit int) ([]*models.ReconciliationAlert, error)
	Resolve(ctx context.Context, id uuid.UUID, resolvedBy uuid.UUID, note string) error
}

// DeliveryHistory lists the webhook deliveries seen for a payment
type DeliveryHistory interface {
	GetByPaymentReference(ctx context.Context, paymentReference string) ([]*models.WebhookAudit, error)
}

// ReconciliationAlertHandler lets operators work the alert queue
type ReconciliationAlertHandler struct {
	alerts     AlertQueue
	deliveries DeliveryHistory
	logger     *logrus.Logger
}

// NewReconciliationAlertHandler creates a new reconciliation alert handler
func NewReconciliationAlertHandler(alerts AlertQueue, deliveries DeliveryHistory, logger *logrus.Logger) *ReconciliationAlertHandler {
	return &ReconciliationAlertHandler{alerts: alerts, deliveries: deliveries, logger: logger}
}

// ResolveAlertRequest closes an alert
type ResolveAlertRequest struct {
	Note string `json:"note" binding:"required"`
}

// ListAlerts handles GET /api/v1/admin/reconciliation-alerts
// @Summary List reconciliation alerts
// @Tags Admin
// @Produce json
// @Param status query string false "open or resolved" default(open)
// @Param limit query int false "Page size" default(50)
// @Success 200 {object} map[string]interface{}
// @Router /admin/reconciliation-alerts [get]
func (h *ReconciliationAlertHandler) ListAlerts(c *gin.Context) {
	status := models.AlertStatus(c.DefaultQuery("status", string(models.AlertStatusOpen)))
	if status != models.AlertStatusOpen && status != models.AlertStatusResolved {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_status",
			Message: "Status must be open or resolved",
		})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultAlertListLimit)))
	if err != nil || limit < 1 {
		limit = defaultAlertListLimit
	}
	if limit > maxAlertListLimit {
		limit = maxAlertListLimit
	}

	alerts, err := h.alerts.List(c.Request.Context(), status, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list reconciliation alerts")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to retrieve alerts",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"status": status,
		"total":  len(alerts),
	})
}

// GetAlert handles GET /api/v1/admin/reconciliation-alerts/:id
// @Summary Get a reconciliation alert
// @Description Includes every webhook delivery recorded for the alert's payment reference.
// @Tags Admin
// @Produce json
// @Param id path string true "Alert ID"
// @Success 200 {object} models.ReconciliationAlert
// @Failure 404 {object} ErrorResponse
// @Router /admin/reconciliation-alerts/{id} [get]
func (h *ReconciliationAlertHandler) GetAlert(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id", "alert")
	if !ok {
		return
	}

	alert, err := h.alerts.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.WithError(err).WithField("alert_id", id).Error("Failed to get reconciliation alert")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to retrieve alert",
		})
		return
	}
	if alert == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Alert not found",
		})
		return
	}

	deliveries := []*models.WebhookAudit{}
	if alert.PaymentReference != nil {
		deliveries, err = h.deliveries.GetByPaymentReference(c.Request.Context(), *alert.PaymentReference)
		if err != nil {
			h.logger.WithError(err).WithField("alert_id", id).Error("Failed to get webhook deliveries for alert")
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "database_error",
				Message: "Failed to retrieve webhook deliveries",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"alert":      alert,
		"deliveries": deliveries,
	})
}

// ResolveAlert handles POST /api/v1/admin/reconciliation-alerts/:id/resolve
// @Summary Resolve a reconciliation alert
// @Description Records who settled the payment by hand and how.
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Alert ID"
// @Param request body ResolveAlertRequest true "Resolution"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /admin/reconciliation-alerts/{id}/resolve [post]
func (h *ReconciliationAlertHandler) ResolveAlert(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "User not authenticated",
		})
		return
	}

	id, ok := parseUUIDParam(c, "id", "alert")
	if !ok {
		return
	}

	var req ResolveAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "A resolution note is required",
		})
		return
	}

	err := h.alerts.Resolve(c.Request.Context(), id, userCtx.UserID, req.Note)
	if errors.Is(err, database.ErrAlertNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Alert not found or already resolved",
		})
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("alert_id", id).Error("Failed to resolve reconciliation alert")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to resolve alert",
		})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"alert_id":    id,
		"resolved_by": userCtx.UserID,
	}).Info("Reconciliation alert resolved")

	c.JSON(http.StatusOK, gin.H{
		"message":  "Alert resolved",
		"alert_id": id,
	})
}
