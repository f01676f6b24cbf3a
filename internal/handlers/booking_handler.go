package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/servicehub/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// BookingLookup finds the booking a checkout session produced
type BookingLookup interface {
	GetByCheckoutRef(ctx context.Context, checkoutRef uuid.UUID) (*models.Booking, error)
}

// BookingHandler serves booking reads
type BookingHandler struct {
	bookings BookingLookup
	logger   *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookings BookingLookup, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, logger: logger}
}

// GetByCheckoutRef handles GET /api/v1/bookings/by-checkout/:checkout_ref
// @Summary Poll for the booking created from a checkout session
// @Description Polled by the checkout success page with the checkout_ref returned when the
// session was opened. 404 with booking_pending means the payment webhook has not been processed yet.
// @Tags Bookings
// @Produce json
// @Param checkout_ref path string true "Checkout reference"
// @Success 200 {object} models.BookingStatusView
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /bookings/by-checkout/{checkout_ref} [get]
func (h *BookingHandler) GetByCheckoutRef(c *gin.Context) {
	checkoutRef, ok := parseUUIDParam(c, "checkout_ref", "checkout reference")
	if !ok {
		return
	}

	booking, err := h.bookings.GetByCheckoutRef(c.Request.Context(), checkoutRef)
	if err != nil {
		h.logger.WithError(err).WithField("checkout_ref", checkoutRef).Error("Failed to look up booking")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to retrieve booking",
		})
		return
	}

	if booking == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "booking_pending",
			Message: "Your booking is being confirmed, check again shortly",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": booking.StatusView()})
}
