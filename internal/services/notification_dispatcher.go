package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/servicehub/booking-backend/internal/metrics"
	"github.com/servicehub/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// ContactResolver looks up who to notify about a booking
type ContactResolver interface {
	GetProviderAccount(ctx context.Context, id uuid.UUID) (*models.ProviderAccount, error)
	GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
}

// DispatcherConfig sizes the notification worker pool
type DispatcherConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// NotificationDispatcher delivers booking confirmations off the webhook path.
// Delivery is best effort: failures are logged and counted, never retried.
type NotificationDispatcher struct {
	transport NotificationTransport
	contacts  ContactResolver
	config    DispatcherConfig
	logger    *logrus.Logger

	jobs    chan *models.Booking
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	closed  bool

	// OnDispatched, when set, receives the records of each finished booking
	OnDispatched func(records []models.NotificationRecord)
}

// NewNotificationDispatcher creates a dispatcher; call Start before Enqueue
func NewNotificationDispatcher(transport NotificationTransport, contacts ContactResolver, cfg DispatcherConfig, logger *logrus.Logger) *NotificationDispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &NotificationDispatcher{
		transport: transport,
		contacts:  contacts,
		config:    cfg,
		logger:    logger,
		jobs:      make(chan *models.Booking, cfg.QueueSize),
	}
}

// Start launches the worker pool
func (d *NotificationDispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	d.logger.WithFields(logrus.Fields{
		"workers":    d.config.Workers,
		"queue_size": d.config.QueueSize,
		"transport":  d.transport.Name(),
	}).Info("Notification dispatcher started")
}

// Enqueue hands a booking to the pool without blocking. It returns false when
// the queue is full or the dispatcher is stopped.
func (d *NotificationDispatcher) Enqueue(booking *models.Booking) bool {
	if booking == nil {
		return false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	select {
	case d.jobs <- booking:
		return true
	default:
		return false
	}
}

// Stop refuses new work, drains the queue and waits for workers until ctx is done
func (d *NotificationDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Notification dispatcher stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notification dispatcher did not drain: %w", ctx.Err())
	}
}

func (d *NotificationDispatcher) worker(id int) {
	defer d.wg.Done()
	for booking := range d.jobs {
		records := d.Dispatch(booking)
		if d.OnDispatched != nil {
			d.OnDispatched(records)
		}
	}
	d.logger.WithField("worker", id).Debug("Notification worker exiting")
}

// Dispatch notifies the provider and the client. Each party is attempted
// independently; one failing never prevents the other.
func (d *NotificationDispatcher) Dispatch(booking *models.Booking) []models.NotificationRecord {
	records := make([]models.NotificationRecord, 0, 2)
	for _, party := range []models.NotificationParty{models.PartyProvider, models.PartyClient} {
		record := d.notify(booking, party)
		records = append(records, record)

		result := "delivered"
		switch {
		case record.Skipped:
			result = "skipped"
		case !record.Delivered:
			result = "failed"
		}
		metrics.RecordNotification(string(party), record.Transport, result)

		entry := d.logger.WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"party":      party,
			"transport":  record.Transport,
		})
		switch result {
		case "failed":
			entry.WithField("error", record.Error).Warn("Booking notification failed")
		case "skipped":
			entry.WithField("reason", record.Error).Info("Booking notification skipped")
		default:
			entry.Debug("Booking notification delivered")
		}
	}
	return records
}

// notify delivers to one party. A panicking transport is contained here.
func (d *NotificationDispatcher) notify(booking *models.Booking, party models.NotificationParty) (record models.NotificationRecord) {
	record = models.NotificationRecord{
		BookingID:   booking.ID,
		Party:       party,
		Transport:   d.transport.Name(),
		AttemptedAt: time.Now(),
	}

	defer func() {
		if r := recover(); r != nil {
			record.Delivered = false
			record.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.config.Timeout)
	defer cancel()

	recipient, err := d.resolveRecipient(ctx, booking, party)
	if err != nil {
		record.Error = err.Error()
		return record
	}
	if !recipient.HasContact() {
		record.Skipped = true
		record.Error = "no contact details"
		return record
	}

	notification := Notification{
		BookingID: booking.ID,
		Recipient: recipient,
		Message:   renderBookingMessage(booking, recipient),
	}
	if err := d.transport.Deliver(ctx, notification); err != nil {
		record.Error = err.Error()
		return record
	}

	record.Delivered = true
	return record
}

func (d *NotificationDispatcher) resolveRecipient(ctx context.Context, booking *models.Booking, party models.NotificationParty) (models.Recipient, error) {
	recipient := models.Recipient{Party: party}

	if party == models.PartyProvider {
		provider, err := d.contacts.GetProviderAccount(ctx, booking.ProviderID)
		if err != nil {
			return recipient, fmt.Errorf("failed to load provider: %w", err)
		}
		if provider == nil {
			return recipient, fmt.Errorf("provider %s not found", booking.ProviderID)
		}
		recipient.Name = provider.DisplayName
		recipient.Phone = deref(provider.Phone)
		recipient.Email = deref(provider.Email)
		return recipient, nil
	}

	if booking.IsGuest() {
		recipient.Name = deref(booking.GuestName)
		recipient.Phone = deref(booking.GuestPhone)
		recipient.Email = deref(booking.GuestEmail)
		return recipient, nil
	}

	client, err := d.contacts.GetClient(ctx, *booking.ClientID)
	if err != nil {
		return recipient, fmt.Errorf("failed to load client: %w", err)
	}
	if client == nil {
		return recipient, fmt.Errorf("client %s not found", *booking.ClientID)
	}
	recipient.Name = client.FullName
	recipient.Phone = deref(client.Phone)
	recipient.Email = deref(client.Email)
	return recipient, nil
}

func renderBookingMessage(booking *models.Booking, recipient models.Recipient) string {
	ref := booking.ID.String()[:8]
	when := booking.BookingDate.UTC().Format("Mon 2 Jan 2006 15:04 MST")

	var msg string
	if recipient.Party == models.PartyProvider {
		msg = fmt.Sprintf("New paid booking for %s. Ref %s.", when, ref)
	} else {
		msg = fmt.Sprintf("Hi %s, your booking for %s is confirmed. Ref %s.", recipient.Name, when, ref)
	}
	if booking.AddonsDeferred {
		msg += " Add-ons are paid at the appointment."
	}
	return msg
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
