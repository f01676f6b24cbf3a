package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/servicehub/booking-backend/internal/middleware"
	"github.com/servicehub/booking-backend/internal/models"
	"github.com/servicehub/booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// CheckoutSessionCreator opens processor checkout sessions
type CheckoutSessionCreator interface {
	CreateSession(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutSession, error)
}

// CheckoutHandler handles checkout HTTP requests
type CheckoutHandler struct {
	checkout CheckoutSessionCreator
	logger   *logrus.Logger
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkout CheckoutSessionCreator, logger *logrus.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, logger: logger}
}

// CreateCheckoutSessionRequest is the body of a checkout request. Guest is
// ignored when the caller is signed in.
type CreateCheckoutSessionRequest struct {
	ProviderID  string               `json:"provider_id" binding:"required"`
	ServiceID   string               `json:"service_id" binding:"required"`
	AddonIDs    []string             `json:"addon_ids"`
	Date        time.Time            `json:"date" binding:"required"`
	PaymentMode string               `json:"payment_mode" binding:"required"`
	Guest       *models.GuestContact `json:"guest,omitempty"`
}

// CreateCheckoutSessionResponse is returned once the processor session is open
type CreateCheckoutSessionResponse struct {
	SessionID      string              `json:"session_id"`
	RedirectURL    string              `json:"redirect_url"`
	CheckoutRef    uuid.UUID           `json:"checkout_ref"`
	TotalCents     int64               `json:"total_cents"`
	Currency       string              `json:"currency"`
	Fee            models.FeeBreakdown `json:"fee"`
	AddonsDeferred bool                `json:"addons_deferred"`
	LineItems      []models.LineItem   `json:"line_items"`
}

// CreateSession handles POST /api/v1/checkout/sessions
// @Summary Open a checkout session
// @Description Prices the booking, splits the platform fee and returns the processor redirect URL.
// Nothing is stored until the payment succeeds.
// @Tags Checkout
// @Accept json
// @Produce json
// @Param request body CreateCheckoutSessionRequest true "Checkout request"
// @Success 201 {object} CreateCheckoutSessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /checkout/sessions [post]
func (h *CheckoutHandler) CreateSession(c *gin.Context) {
	var req CreateCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	checkoutReq, err := req.toCheckoutRequest()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: err.Error(),
		})
		return
	}

	if userCtx, ok := middleware.GetUserContext(c); ok {
		clientID := userCtx.UserID
		checkoutReq.Client = models.ClientIdentity{ClientID: &clientID}
	} else {
		checkoutReq.Client = models.ClientIdentity{Guest: req.Guest}
	}

	session, err := h.checkout.CreateSession(c.Request.Context(), checkoutReq)
	if err != nil {
		h.writeCheckoutError(c, checkoutReq, err)
		return
	}

	d := session.Descriptor
	c.JSON(http.StatusCreated, CreateCheckoutSessionResponse{
		SessionID:      session.SessionID,
		RedirectURL:    session.RedirectURL,
		CheckoutRef:    d.ID,
		TotalCents:     d.TotalCents,
		Currency:       d.Currency,
		Fee:            d.Fee,
		AddonsDeferred: d.AddonsDeferred,
		LineItems:      d.LineItems,
	})
}

func (r CreateCheckoutSessionRequest) toCheckoutRequest() (models.CheckoutRequest, error) {
	providerID, err := uuid.Parse(r.ProviderID)
	if err != nil {
		return models.CheckoutRequest{}, errors.New("invalid provider ID format")
	}
	serviceID, err := uuid.Parse(r.ServiceID)
	if err != nil {
		return models.CheckoutRequest{}, errors.New("invalid service ID format")
	}

	addonIDs := make([]uuid.UUID, 0, len(r.AddonIDs))
	for _, raw := range r.AddonIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return models.CheckoutRequest{}, errors.New("invalid add-on ID format: " + raw)
		}
		addonIDs = append(addonIDs, id)
	}

	return models.CheckoutRequest{
		ProviderID:  providerID,
		ServiceID:   serviceID,
		AddonIDs:    addonIDs,
		Date:        r.Date,
		PaymentMode: models.PaymentMode(r.PaymentMode),
	}, nil
}

func (h *CheckoutHandler) writeCheckoutError(c *gin.Context, req models.CheckoutRequest, err error) {
	switch {
	case errors.Is(err, services.ErrProviderNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "provider_not_found", Message: err.Error()})
	case errors.Is(err, services.ErrServiceNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "service_not_found", Message: err.Error()})
	case errors.Is(err, services.ErrAddonNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "addon_not_found", Message: err.Error()})
	case services.IsCheckoutValidationError(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "checkout_rejected", Message: err.Error()})
	case errors.Is(err, services.ErrTransient):
		h.logger.WithError(err).WithField("provider_id", req.ProviderID).Error("Checkout catalog lookup failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to prepare checkout",
		})
	default:
		h.logger.WithError(err).WithField("provider_id", req.ProviderID).Error("Payment processor rejected checkout session")
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "payment_processor_error",
			Message: "Could not open a payment session, please try again",
		})
	}
}
