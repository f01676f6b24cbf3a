package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is written into every envelope and required on parse
const EnvelopeVersion = "1"

// Metadata keys. The processor limits keys to 40 characters and values to 500.
const (
	metaVersion            = "envelope_version"
	metaCheckoutRef        = "checkout_ref"
	metaProviderID         = "provider_id"
	metaServiceID          = "service_id"
	metaDate               = "date"
	metaClientID           = "client_id"
	metaGuestName          = "guest_name"
	metaGuestEmail         = "guest_email"
	metaGuestPhone         = "guest_phone"
	metaPaymentMode        = "payment_mode"
	metaAddonIDs           = "addon_ids"
	metaServicePriceCents  = "service_price_cents"
	metaAddonTotalCents    = "addon_total_cents"
	metaPlatformFeeCents   = "platform_fee_cents"
	metaPlatformShareCents = "platform_share_cents"
	metaProviderShareCents = "provider_share_cents"
	metaFeeBypassed        = "fee_bypassed"
	metaAddonsDeferred     = "addons_deferred"
	metaTotalCents         = "total_cents"
)

// ErrInvalidEnvelope is matched by every envelope parse failure
var ErrInvalidEnvelope = errors.New("invalid metadata envelope")

// EnvelopeError lists every problem found while parsing an envelope
type EnvelopeError struct {
	Problems []string
}

func (e *EnvelopeError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidEnvelope.Error(), strings.Join(e.Problems, "; "))
}

func (e *EnvelopeError) Unwrap() error {
	return ErrInvalidEnvelope
}

// MetadataEnvelope is the booking intent carried across the processor
// round-trip. It is only ever constructed by the checkout builder or by
// ParseMetadataEnvelope, so a value in hand is always complete.
type MetadataEnvelope struct {
	Version           string
	CheckoutRef       uuid.UUID
	ProviderID        uuid.UUID
	ServiceID         uuid.UUID
	Date              time.Time
	ClientID          *uuid.UUID
	Guest             *GuestContact
	PaymentMode       PaymentMode
	AddonIDs          []uuid.UUID
	ServicePriceCents int64
	AddonTotalCents   int64
	Fee               FeeBreakdown
	AddonsDeferred    bool
	TotalCents        int64
}

// ExpectedTotalCents is the charge the envelope's mode and amounts imply
func (e *MetadataEnvelope) ExpectedTotalCents() int64 {
	if e.PaymentMode == PaymentModeFeeOnly {
		return e.Fee.PlatformFeeCents
	}
	return e.ServicePriceCents + e.AddonTotalCents + e.Fee.PlatformFeeCents
}

// Encode flattens the envelope into processor metadata
func (e *MetadataEnvelope) Encode() map[string]string {
	meta := map[string]string{
		metaVersion:            EnvelopeVersion,
		metaCheckoutRef:        e.CheckoutRef.String(),
		metaProviderID:         e.ProviderID.String(),
		metaServiceID:          e.ServiceID.String(),
		metaDate:               e.Date.UTC().Format(time.RFC3339),
		metaPaymentMode:        string(e.PaymentMode),
		metaServicePriceCents:  strconv.FormatInt(e.ServicePriceCents, 10),
		metaAddonTotalCents:    strconv.FormatInt(e.AddonTotalCents, 10),
		metaPlatformFeeCents:   strconv.FormatInt(e.Fee.PlatformFeeCents, 10),
		metaPlatformShareCents: strconv.FormatInt(e.Fee.PlatformShareCents, 10),
		metaProviderShareCents: strconv.FormatInt(e.Fee.ProviderShareCents, 10),
		metaFeeBypassed:        strconv.FormatBool(e.Fee.Bypassed),
		metaAddonsDeferred:     strconv.FormatBool(e.AddonsDeferred),
		metaTotalCents:         strconv.FormatInt(e.TotalCents, 10),
	}

	if e.ClientID != nil {
		meta[metaClientID] = e.ClientID.String()
	}
	if e.Guest != nil {
		meta[metaGuestName] = e.Guest.Name
		if e.Guest.Email != "" {
			meta[metaGuestEmail] = e.Guest.Email
		}
		if e.Guest.Phone != "" {
			meta[metaGuestPhone] = e.Guest.Phone
		}
	}
	if len(e.AddonIDs) > 0 {
		ids := make([]string, len(e.AddonIDs))
		for i, id := range e.AddonIDs {
			ids[i] = id.String()
		}
		meta[metaAddonIDs] = strings.Join(ids, ",")
	}

	return meta
}

// envelopeParser accumulates problems so a single parse reports all of them
type envelopeParser struct {
	meta     map[string]string
	problems []string
}

func (p *envelopeParser) fail(format string, args ...interface{}) {
	p.problems = append(p.problems, fmt.Sprintf(format, args...))
}

func (p *envelopeParser) required(key string) (string, bool) {
	value, ok := p.meta[key]
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		p.fail("%s is missing", key)
		return "", false
	}
	return value, true
}

func (p *envelopeParser) uuid(key string) uuid.UUID {
	raw, ok := p.required(key)
	if !ok {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		p.fail("%s is not a valid id", key)
		return uuid.Nil
	}
	return id
}

func (p *envelopeParser) cents(key string) int64 {
	raw, ok := p.required(key)
	if !ok {
		return 0
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		p.fail("%s is not an integer", key)
		return 0
	}
	if value < 0 {
		p.fail("%s is negative", key)
		return 0
	}
	return value
}

func (p *envelopeParser) flag(key string) bool {
	raw, ok := p.required(key)
	if !ok {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail("%s is not a boolean", key)
		return false
	}
	return value
}

// ParseMetadataEnvelope strictly validates echoed processor metadata.
// Anything incomplete or malformed is rejected with an *EnvelopeError.
func ParseMetadataEnvelope(meta map[string]string) (*MetadataEnvelope, error) {
	if len(meta) == 0 {
		return nil, &EnvelopeError{Problems: []string{"metadata is empty"}}
	}

	p := &envelopeParser{meta: meta}
	env := &MetadataEnvelope{}

	if version, ok := p.required(metaVersion); ok && version != EnvelopeVersion {
		p.fail("unsupported %s %q", metaVersion, version)
	}
	env.Version = EnvelopeVersion

	env.CheckoutRef = p.uuid(metaCheckoutRef)
	env.ProviderID = p.uuid(metaProviderID)
	env.ServiceID = p.uuid(metaServiceID)

	if raw, ok := p.required(metaDate); ok {
		date, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			p.fail("%s is not RFC3339", metaDate)
		}
		env.Date = date.UTC()
	}

	if raw, ok := p.required(metaPaymentMode); ok {
		mode, err := ParsePaymentMode(raw)
		if err != nil {
			p.fail("%s %q is unknown", metaPaymentMode, raw)
		}
		env.PaymentMode = mode
	}

	env.ServicePriceCents = p.cents(metaServicePriceCents)
	env.AddonTotalCents = p.cents(metaAddonTotalCents)
	env.Fee = FeeBreakdown{
		PlatformFeeCents:   p.cents(metaPlatformFeeCents),
		PlatformShareCents: p.cents(metaPlatformShareCents),
		ProviderShareCents: p.cents(metaProviderShareCents),
		Bypassed:           p.flag(metaFeeBypassed),
	}
	env.AddonsDeferred = p.flag(metaAddonsDeferred)
	env.TotalCents = p.cents(metaTotalCents)

	if raw := strings.TrimSpace(meta[metaAddonIDs]); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := uuid.Parse(strings.TrimSpace(part))
			if err != nil {
				p.fail("%s contains an invalid id", metaAddonIDs)
				break
			}
			env.AddonIDs = append(env.AddonIDs, id)
		}
	}

	// client identity: registered id, or a guest name with one contact channel
	if raw := strings.TrimSpace(meta[metaClientID]); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			p.fail("%s is not a valid id", metaClientID)
		} else {
			env.ClientID = &id
		}
	} else {
		guest := GuestContact{
			Name:  strings.TrimSpace(meta[metaGuestName]),
			Email: strings.TrimSpace(meta[metaGuestEmail]),
			Phone: strings.TrimSpace(meta[metaGuestPhone]),
		}
		switch {
		case guest.Name == "":
			p.fail("neither %s nor %s is present", metaClientID, metaGuestName)
		case guest.Email == "" && guest.Phone == "":
			p.fail("guest has no email or phone")
		default:
			env.Guest = &guest
		}
	}

	if len(p.problems) == 0 {
		if env.AddonsDeferred != (env.PaymentMode == PaymentModeFeeOnly && len(env.AddonIDs) > 0) {
			p.fail("%s does not match payment mode and add-ons", metaAddonsDeferred)
		}
		if env.PaymentMode == PaymentModeFull && len(env.AddonIDs) == 0 && env.AddonTotalCents != 0 {
			p.fail("%s is set without add-ons", metaAddonTotalCents)
		}
		if env.TotalCents != env.ExpectedTotalCents() {
			p.fail("%s %d does not match the %s charge of %d",
				metaTotalCents, env.TotalCents, env.PaymentMode, env.ExpectedTotalCents())
		}
	}

	if len(p.problems) > 0 {
		return nil, &EnvelopeError{Problems: p.problems}
	}

	return env, nil
}
