package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/servicehub/booking-backend/internal/metrics"
	"github.com/servicehub/booking-backend/internal/models"
	"github.com/servicehub/booking-backend/pkg/validator"
	"github.com/sirupsen/logrus"
)

// ProviderAccountReader reads provider payout and activation state
type ProviderAccountReader interface {
	GetProviderAccount(ctx context.Context, id uuid.UUID) (*models.ProviderAccount, error)
}

// CatalogReader reads services and add-ons
type CatalogReader interface {
	GetService(ctx context.Context, id uuid.UUID) (*models.Service, error)
	GetAddons(ctx context.Context, serviceID uuid.UUID, ids []uuid.UUID) ([]models.ServiceAddon, error)
}

// CheckoutCatalog is everything the checkout builder reads
type CheckoutCatalog interface {
	ProviderAccountReader
	CatalogReader
}

// CheckoutConfig holds checkout builder settings
type CheckoutConfig struct {
	Currency           string
	MaxAddons          int
	PlatformFeeLabel   string
	DefaultCountryCode string
}

// CheckoutService turns a booking request into a checkout session descriptor
// and opens the session with the payment processor
type CheckoutService struct {
	catalog   CheckoutCatalog
	fees      *FeeCalculator
	processor PaymentProcessorClient
	contacts  *validator.ContactValidator
	config    CheckoutConfig
	now       func() time.Time
	logger    *logrus.Logger
}

// NewCheckoutService creates a new CheckoutService
func NewCheckoutService(
	catalog CheckoutCatalog,
	fees *FeeCalculator,
	processor PaymentProcessorClient,
	cfg CheckoutConfig,
	logger *logrus.Logger,
) *CheckoutService {
	if cfg.PlatformFeeLabel == "" {
		cfg.PlatformFeeLabel = "Booking fee"
	}
	return &CheckoutService{
		catalog:   catalog,
		fees:      fees,
		processor: processor,
		contacts:  validator.NewContactValidator(cfg.DefaultCountryCode),
		config:    cfg,
		now:       time.Now,
		logger:    logger,
	}
}

// CreateSession builds the descriptor and opens a processor session for it.
// Nothing is persisted; the booking only exists once the payment succeeds.
func (s *CheckoutService) CreateSession(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutSession, error) {
	descriptor, err := s.BuildDescriptor(ctx, req)
	if err != nil {
		metrics.RecordCheckout("rejected")
		return nil, err
	}

	session, err := s.processor.CreateCheckoutSession(ctx, descriptor)
	if err != nil {
		metrics.RecordCheckout("processor_error")
		return nil, fmt.Errorf("failed to open checkout session: %w", err)
	}

	metrics.RecordCheckout("ok")
	s.logger.WithFields(logrus.Fields{
		"checkout_ref": descriptor.ID,
		"session_id":   session.ID,
		"provider_id":  descriptor.ProviderID,
		"payment_mode": descriptor.PaymentMode,
		"total_cents":  descriptor.TotalCents,
	}).Info("Checkout session opened")

	return &models.CheckoutSession{
		SessionID:   session.ID,
		RedirectURL: session.URL,
		Descriptor:  descriptor,
	}, nil
}

// BuildDescriptor validates the request against the catalog and computes
// line items, the fee split and the metadata envelope
func (s *CheckoutService) BuildDescriptor(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutSessionDescriptor, error) {
	if !req.PaymentMode.IsValid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidPaymentMode, req.PaymentMode)
	}
	if req.Date.IsZero() || !req.Date.After(s.now()) {
		return nil, ErrInvalidBookingDate
	}

	client, err := s.resolveClient(req.Client)
	if err != nil {
		return nil, err
	}

	provider, err := s.catalog.GetProviderAccount(ctx, req.ProviderID)
	if err != nil {
		return nil, transient("load provider", err)
	}
	if provider == nil {
		return nil, ErrProviderNotFound
	}
	if !provider.IsPaymentCapable() {
		return nil, ErrProviderNotPaymentCapable
	}

	service, err := s.catalog.GetService(ctx, req.ServiceID)
	if err != nil {
		return nil, transient("load service", err)
	}
	if service == nil || !service.IsActive {
		return nil, ErrServiceNotFound
	}
	if service.ProviderID != provider.ID {
		return nil, ErrServiceProviderMismatch
	}

	addons, err := s.resolveAddons(ctx, service.ID, req.AddonIDs)
	if err != nil {
		return nil, err
	}

	var addonTotal int64
	addonIDs := make([]uuid.UUID, 0, len(addons))
	for _, addon := range addons {
		addonTotal += addon.PriceCents
		addonIDs = append(addonIDs, addon.ID)
	}

	fee := s.fees.Calculate(service.PriceCents+addonTotal, req.PaymentMode, provider.FeeBypass)

	var lineItems []models.LineItem
	if req.PaymentMode == models.PaymentModeFull {
		lineItems = append(lineItems, models.LineItem{
			Kind:            models.LineItemService,
			Name:            service.Name,
			UnitAmountCents: service.PriceCents,
			Quantity:        1,
		})
		for _, addon := range addons {
			lineItems = append(lineItems, models.LineItem{
				Kind:            models.LineItemAddon,
				Name:            addon.Name,
				UnitAmountCents: addon.PriceCents,
				Quantity:        1,
			})
		}
	}
	if fee.PlatformFeeCents > 0 {
		lineItems = append(lineItems, models.LineItem{
			Kind:            models.LineItemPlatformFee,
			Name:            s.config.PlatformFeeLabel,
			UnitAmountCents: fee.PlatformFeeCents,
			Quantity:        1,
		})
	}

	descriptor := &models.CheckoutSessionDescriptor{
		ID:                uuid.New(),
		ProviderID:        provider.ID,
		ServiceID:         service.ID,
		PayoutAccountID:   *provider.PayoutAccountID,
		AddonIDs:          addonIDs,
		Date:              req.Date.UTC(),
		Client:            client,
		PaymentMode:       req.PaymentMode,
		ServicePriceCents: service.PriceCents,
		AddonTotalCents:   addonTotal,
		LineItems:         lineItems,
		Fee:               fee,
		AddonsDeferred:    req.PaymentMode == models.PaymentModeFeeOnly && len(addons) > 0,
		Currency:          s.config.Currency,
		CreatedAt:         s.now(),
	}
	descriptor.TotalCents = descriptor.LineItemsTotalCents()

	if descriptor.TotalCents <= 0 {
		return nil, ErrNothingToCharge
	}

	envelope := &models.MetadataEnvelope{
		Version:           models.EnvelopeVersion,
		CheckoutRef:       descriptor.ID,
		ProviderID:        descriptor.ProviderID,
		ServiceID:         descriptor.ServiceID,
		Date:              descriptor.Date,
		ClientID:          client.ClientID,
		Guest:             client.Guest,
		PaymentMode:       descriptor.PaymentMode,
		AddonIDs:          descriptor.AddonIDs,
		ServicePriceCents: descriptor.ServicePriceCents,
		AddonTotalCents:   descriptor.AddonTotalCents,
		Fee:               descriptor.Fee,
		AddonsDeferred:    descriptor.AddonsDeferred,
		TotalCents:        descriptor.TotalCents,
	}
	descriptor.Metadata = envelope.Encode()

	return descriptor, nil
}

// resolveClient prefers a registered client and otherwise validates the guest triple
func (s *CheckoutService) resolveClient(identity models.ClientIdentity) (models.ClientIdentity, error) {
	if identity.ClientID != nil && *identity.ClientID != uuid.Nil {
		return models.ClientIdentity{ClientID: identity.ClientID}, nil
	}
	if identity.Guest == nil || identity.Guest.IsZero() {
		return models.ClientIdentity{}, ErrInvalidClientIdentity
	}

	contact, err := s.contacts.Validate(validator.Contact{
		Name:  identity.Guest.Name,
		Email: identity.Guest.Email,
		Phone: identity.Guest.Phone,
	})
	if err != nil {
		return models.ClientIdentity{}, fmt.Errorf("%w: %v", ErrInvalidClientIdentity, err)
	}

	return models.ClientIdentity{Guest: &models.GuestContact{
		Name:  contact.Name,
		Email: contact.Email,
		Phone: contact.Phone,
	}}, nil
}

// resolveAddons de-duplicates the selection and loads every add-on, which must
// belong to the service and be active
func (s *CheckoutService) resolveAddons(ctx context.Context, serviceID uuid.UUID, ids []uuid.UUID) ([]models.ServiceAddon, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	seen := make(map[uuid.UUID]struct{}, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	if len(unique) > s.config.MaxAddons {
		return nil, fmt.Errorf("%w: %d selected, at most %d allowed", ErrTooManyAddons, len(unique), s.config.MaxAddons)
	}

	found, err := s.catalog.GetAddons(ctx, serviceID, unique)
	if err != nil {
		return nil, transient("load add-ons", err)
	}

	byID := make(map[uuid.UUID]models.ServiceAddon, len(found))
	for _, addon := range found {
		byID[addon.ID] = addon
	}

	// keep the caller's order so line items are stable
	addons := make([]models.ServiceAddon, 0, len(unique))
	var missing []string
	for _, id := range unique {
		addon, ok := byID[id]
		if !ok {
			missing = append(missing, id.String())
			continue
		}
		addons = append(addons, addon)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrAddonNotFound, strings.Join(missing, ", "))
	}

	return addons, nil
}

// IsCheckoutValidationError reports whether err is a caller mistake rather than a system failure
func IsCheckoutValidationError(err error) bool {
	for _, target := range []error{
		models.ErrInvalidPaymentMode,
		ErrProviderNotFound,
		ErrProviderNotPaymentCapable,
		ErrServiceNotFound,
		ErrServiceProviderMismatch,
		ErrAddonNotFound,
		ErrTooManyAddons,
		ErrInvalidClientIdentity,
		ErrInvalidBookingDate,
		ErrNothingToCharge,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
