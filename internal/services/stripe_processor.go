package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/servicehub/booking-backend/internal/config"
	"github.com/servicehub/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// ProcessorSession is the processor's answer to a checkout session request
type ProcessorSession struct {
	ID  string
	URL string
}

// PaymentProcessorClient is the port to the external payment processor
type PaymentProcessorClient interface {
	CreateCheckoutSession(ctx context.Context, descriptor *models.CheckoutSessionDescriptor) (*ProcessorSession, error)
	ParseWebhookEvent(payload []byte, signatureHeader string) (*models.PaymentEvent, error)
}

// StripeProcessor implements PaymentProcessorClient with Stripe Checkout and
// Connect destination charges
type StripeProcessor struct {
	client        *stripe.Client
	webhookSecret string
	successURL    string
	cancelURL     string
	logger        *logrus.Logger
}

// NewStripeProcessor creates a Stripe-backed processor client
func NewStripeProcessor(cfg config.PaymentConfig, logger *logrus.Logger) *StripeProcessor {
	return &StripeProcessor{
		client:        stripe.NewClient(cfg.SecretKey),
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		logger:        logger,
	}
}

// CreateCheckoutSession hands the descriptor to Stripe Checkout
func (s *StripeProcessor) CreateCheckoutSession(ctx context.Context, descriptor *models.CheckoutSessionDescriptor) (*ProcessorSession, error) {
	params := s.buildSessionParams(descriptor)

	session, err := s.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		s.logger.WithError(err).WithField("checkout_ref", descriptor.ID).Error("Stripe checkout session creation failed")
		return nil, fmt.Errorf("failed to create stripe checkout session: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"checkout_ref": descriptor.ID,
		"session_id":   session.ID,
		"amount":       session.AmountTotal,
	}).Info("Stripe checkout session created")

	return &ProcessorSession{ID: session.ID, URL: session.URL}, nil
}

// buildSessionParams maps a descriptor onto a destination charge: the provider's
// connected account receives the total minus the platform share of the fee
func (s *StripeProcessor) buildSessionParams(descriptor *models.CheckoutSessionDescriptor) *stripe.CheckoutSessionCreateParams {
	lineItems := make([]*stripe.CheckoutSessionCreateLineItemParams, 0, len(descriptor.LineItems))
	for _, item := range descriptor.LineItems {
		lineItems = append(lineItems, &stripe.CheckoutSessionCreateLineItemParams{
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency: stripe.String(descriptor.Currency),
				ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(item.UnitAmountCents),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	paymentIntentData := &stripe.CheckoutSessionCreatePaymentIntentDataParams{
		Metadata: descriptor.Metadata,
		TransferData: &stripe.CheckoutSessionCreatePaymentIntentDataTransferDataParams{
			Destination: stripe.String(descriptor.PayoutAccountID),
		},
	}
	if descriptor.Fee.PlatformShareCents > 0 {
		paymentIntentData.ApplicationFeeAmount = stripe.Int64(descriptor.Fee.PlatformShareCents)
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.successURL + "?session_id={CHECKOUT_SESSION_ID}&checkout_ref=" + descriptor.ID.String()),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(descriptor.ID.String()),
		Metadata:          descriptor.Metadata,
		LineItems:         lineItems,
		PaymentIntentData: paymentIntentData,
	}

	if guest := descriptor.Client.Guest; descriptor.Client.IsGuest() && guest != nil && guest.Email != "" {
		params.CustomerEmail = stripe.String(guest.Email)
	}

	// a retried create for the same descriptor must not open a second session
	params.SetIdempotencyKey(descriptor.ID.String())

	return params
}

// ParseWebhookEvent verifies the Stripe-Signature header and converts the event.
// The signature is checked before the body is interpreted.
func (s *StripeProcessor) ParseWebhookEvent(payload []byte, signatureHeader string) (*models.PaymentEvent, error) {
	if err := webhook.ValidatePayload(payload, signatureHeader, s.webhookSecret); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.ID == "" || event.Type == "" {
		return nil, fmt.Errorf("%w: event id or type missing", ErrMalformedEvent)
	}

	paymentEvent := &models.PaymentEvent{
		ID:        event.ID,
		Type:      string(event.Type),
		Livemode:  event.Livemode,
		CreatedAt: time.Unix(event.Created, 0).UTC(),
	}

	if event.Type != stripe.EventTypePaymentIntentSucceeded {
		return paymentEvent, nil
	}

	// A qualifying event with an unusable object is still signed and paid for.
	// It is returned without a reference so reconciliation raises an alert.
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return paymentEvent, nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		s.logger.WithError(err).WithField("event_id", event.ID).Warn("Could not decode payment intent from event")
		return paymentEvent, nil
	}

	paymentEvent.PaymentReference = intent.ID
	paymentEvent.AmountCents = intent.AmountReceived
	if paymentEvent.AmountCents == 0 {
		paymentEvent.AmountCents = intent.Amount
	}
	paymentEvent.Currency = string(intent.Currency)
	paymentEvent.Metadata = intent.Metadata

	return paymentEvent, nil
}
