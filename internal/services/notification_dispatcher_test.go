package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/servicehub/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTransport captures deliveries and can fail or panic per party
type recordingTransport struct {
	mu        sync.Mutex
	delivered []Notification
	failFor   map[models.NotificationParty]error
	panicFor  models.NotificationParty
	block     chan struct{}
}

func (t *recordingTransport) Name() string { return "test" }

func (t *recordingTransport) Deliver(ctx context.Context, n Notification) error {
	if t.block != nil {
		<-t.block
	}
	if n.Recipient.Party == t.panicFor {
		panic("transport exploded")
	}
	if err := t.failFor[n.Recipient.Party]; err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delivered = append(t.delivered, n)
	return nil
}

func (t *recordingTransport) parties() []models.NotificationParty {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.NotificationParty, 0, len(t.delivered))
	for _, n := range t.delivered {
		out = append(out, n.Recipient.Party)
	}
	return out
}

func guestBooking(f *catalogFixture) *models.Booking {
	name, phone := "Sam Lee", "+15552223333"
	return &models.Booking{
		ID:          uuid.New(),
		ProviderID:  f.providerID,
		ServiceID:   f.serviceID,
		GuestName:   &name,
		GuestPhone:  &phone,
		BookingDate: time.Date(2026, 10, 20, 14, 30, 0, 0, time.UTC),
	}
}

func newTestDispatcher(transport NotificationTransport, contacts ContactResolver, queue int) *NotificationDispatcher {
	return NewNotificationDispatcher(transport, contacts, DispatcherConfig{Workers: 2, QueueSize: queue, Timeout: time.Second}, newTestLogger())
}

func TestNotificationDispatcher_Dispatch(t *testing.T) {
	f := newCatalogFixture(false)

	t.Run("Both parties", func(t *testing.T) {
		transport := &recordingTransport{}
		d := newTestDispatcher(transport, f.catalog, 1)
		booking := guestBooking(f)
		booking.AddonsDeferred = true

		records := d.Dispatch(booking)
		require.Len(t, records, 2)
		assert.True(t, records[0].Delivered)
		assert.True(t, records[1].Delivered)
		assert.Equal(t, []models.NotificationParty{models.PartyProvider, models.PartyClient}, transport.parties())

		client := transport.delivered[1]
		assert.Equal(t, "+15552223333", client.Recipient.Phone)
		assert.Contains(t, client.Message, "Sam Lee")
		assert.Contains(t, client.Message, "Tue 20 Oct 2026 14:30 UTC")
		assert.Contains(t, client.Message, "Add-ons are paid at the appointment")
		assert.Equal(t, "+15550001111", transport.delivered[0].Recipient.Phone)
	})

	t.Run("Registered client", func(t *testing.T) {
		transport := &recordingTransport{}
		d := newTestDispatcher(transport, f.catalog, 1)
		clientID := uuid.New()
		email := "client@example.com"
		f.catalog.clients[clientID] = &models.Client{ID: clientID, FullName: "Alex Doe", Email: &email}

		booking := guestBooking(f)
		booking.GuestName, booking.GuestPhone = nil, nil
		booking.ClientID = &clientID

		records := d.Dispatch(booking)
		assert.True(t, records[1].Delivered)
		assert.Equal(t, "client@example.com", transport.delivered[1].Recipient.Email)
		assert.Equal(t, "Alex Doe", transport.delivered[1].Recipient.Name)
	})

	t.Run("Provider failure does not block client", func(t *testing.T) {
		transport := &recordingTransport{failFor: map[models.NotificationParty]error{
			models.PartyProvider: errors.New("gateway down"),
		}}
		d := newTestDispatcher(transport, f.catalog, 1)

		records := d.Dispatch(guestBooking(f))
		assert.False(t, records[0].Delivered)
		assert.Equal(t, "gateway down", records[0].Error)
		assert.True(t, records[1].Delivered)
	})

	t.Run("Panic is contained", func(t *testing.T) {
		transport := &recordingTransport{panicFor: models.PartyClient}
		d := newTestDispatcher(transport, f.catalog, 1)

		records := d.Dispatch(guestBooking(f))
		assert.True(t, records[0].Delivered)
		assert.False(t, records[1].Delivered)
		assert.Contains(t, records[1].Error, "transport exploded")
	})

	t.Run("Missing contact is skipped", func(t *testing.T) {
		transport := &recordingTransport{}
		d := newTestDispatcher(transport, f.catalog, 1)
		f.catalog.providers[f.providerID].Phone = nil
		defer func() {
			phone := "+15550001111"
			f.catalog.providers[f.providerID].Phone = &phone
		}()

		records := d.Dispatch(guestBooking(f))
		assert.True(t, records[0].Skipped)
		assert.True(t, records[1].Delivered)
	})

	t.Run("Lookup failure", func(t *testing.T) {
		transport := &recordingTransport{}
		catalog := newFakeCatalog()
		catalog.err = errors.New("db down")
		d := newTestDispatcher(transport, catalog, 1)

		records := d.Dispatch(guestBooking(f))
		assert.False(t, records[0].Delivered)
		assert.Contains(t, records[0].Error, "db down")
		assert.True(t, records[1].Delivered)
	})
}

func TestNotificationDispatcher_WorkerPool(t *testing.T) {
	f := newCatalogFixture(false)
	transport := &recordingTransport{}
	d := newTestDispatcher(transport, f.catalog, 16)

	var mu sync.Mutex
	var dispatched [][]models.NotificationRecord
	d.OnDispatched = func(records []models.NotificationRecord) {
		mu.Lock()
		defer mu.Unlock()
		dispatched = append(dispatched, records)
	}

	d.Start()
	for i := 0; i < 5; i++ {
		require.True(t, d.Enqueue(guestBooking(f)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))

	assert.Len(t, dispatched, 5)
	assert.Len(t, transport.parties(), 10)
	assert.False(t, d.Enqueue(guestBooking(f)), "stopped dispatcher accepts nothing")
	assert.NoError(t, d.Stop(ctx), "second stop is a no-op")
}

func TestNotificationDispatcher_EnqueueNeverBlocks(t *testing.T) {
	f := newCatalogFixture(false)
	transport := &recordingTransport{block: make(chan struct{})}
	d := NewNotificationDispatcher(transport, f.catalog, DispatcherConfig{Workers: 1, QueueSize: 1, Timeout: time.Second}, newTestLogger())
	d.Start()

	accepted := 0
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			if d.Enqueue(guestBooking(f)) {
				accepted++
			}
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}

	// one in the worker at most, one in the queue
	assert.LessOrEqual(t, accepted, 2)
	assert.GreaterOrEqual(t, accepted, 1)

	close(transport.block)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, d.Stop(ctx))
}

func TestSMSTransport(t *testing.T) {
	sender := &fakeSMSSender{}
	transport := NewSMSTransport(sender)

	err := transport.Deliver(context.Background(), Notification{
		Recipient: models.Recipient{Party: models.PartyClient, Phone: "+15552223333"},
		Message:   "confirmed",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"+15552223333"}, sender.phones)

	err = transport.Deliver(context.Background(), Notification{
		Recipient: models.Recipient{Party: models.PartyClient, Email: "sam@example.com"},
	})
	assert.ErrorIs(t, err, ErrUnsupportedContact)

	sender.err = errors.New("quota exceeded")
	err = transport.Deliver(context.Background(), Notification{
		Recipient: models.Recipient{Party: models.PartyClient, Phone: "+15552223333"},
	})
	assert.ErrorIs(t, err, sender.err)
}

type fakeSMSSender struct {
	phones []string
	err    error
}

func (s *fakeSMSSender) Send(ctx context.Context, phone, message string) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.phones = append(s.phones, phone)
	return 1, nil
}

func (s *fakeSMSSender) Name() string { return "fake" }

type fakeKafkaWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeKafkaWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaTransport(t *testing.T) {
	writer := &fakeKafkaWriter{}
	transport := NewKafkaTransport(writer)
	bookingID := uuid.New()

	err := transport.Deliver(context.Background(), Notification{
		BookingID: bookingID,
		Recipient: models.Recipient{Party: models.PartyProvider, Name: "Studio Nine", Email: "studio@example.com"},
		Message:   "New paid booking",
	})
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, bookingID.String(), string(msg.Key))
	assert.Contains(t, msg.Headers, kafka.Header{Key: "party", Value: []byte("provider")})

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, "New paid booking", payload["message"])
	assert.Equal(t, bookingID.String(), payload["booking_id"])
	assert.NotEmpty(t, payload["sent_at"])

	err = transport.Deliver(context.Background(), Notification{Recipient: models.Recipient{Party: models.PartyClient}})
	assert.ErrorIs(t, err, ErrUnsupportedContact)

	require.NoError(t, transport.Close())
	assert.True(t, writer.closed)
}

func TestLogTransport(t *testing.T) {
	transport := NewLogTransport(newTestLogger())
	assert.Equal(t, "log", transport.Name())
	assert.NoError(t, transport.Deliver(context.Background(), Notification{Message: "hello"}))
}
