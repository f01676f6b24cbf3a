package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/servicehub/booking-backend/internal/config"
	"github.com/servicehub/booking-backend/internal/models"
	"github.com/servicehub/booking-backend/pkg/sms"
	"github.com/sirupsen/logrus"
)

// ErrUnsupportedContact is returned when a transport cannot reach any of the recipient's channels
var ErrUnsupportedContact = errors.New("recipient has no contact channel this transport can use")

// Notification is one message to one party about one booking
type Notification struct {
	BookingID uuid.UUID        `json:"booking_id"`
	Recipient models.Recipient `json:"recipient"`
	Message   string           `json:"message"`
}

// NotificationTransport delivers a rendered notification
type NotificationTransport interface {
	Name() string
	Deliver(ctx context.Context, n Notification) error
}

// LogTransport writes notifications to the application log
type LogTransport struct {
	logger *logrus.Logger
}

// NewLogTransport creates a log-only transport
func NewLogTransport(logger *logrus.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Name() string { return "log" }

func (t *LogTransport) Deliver(ctx context.Context, n Notification) error {
	t.logger.WithFields(logrus.Fields{
		"booking_id": n.BookingID,
		"party":      n.Recipient.Party,
		"phone":      n.Recipient.Phone,
		"email":      n.Recipient.Email,
	}).Info(n.Message)
	return nil
}

// SMSTransport sends notifications through the SMS gateway
type SMSTransport struct {
	sender sms.Sender
}

// NewSMSTransport creates an SMS transport
func NewSMSTransport(sender sms.Sender) *SMSTransport {
	return &SMSTransport{sender: sender}
}

func (t *SMSTransport) Name() string { return "sms" }

func (t *SMSTransport) Deliver(ctx context.Context, n Notification) error {
	if n.Recipient.Phone == "" {
		return ErrUnsupportedContact
	}
	if _, err := t.sender.Send(ctx, n.Recipient.Phone, n.Message); err != nil {
		return fmt.Errorf("%s: %w", t.sender.Name(), err)
	}
	return nil
}

// MessageWriter is the part of *kafka.Writer the Kafka transport uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaTransport publishes notifications for a downstream delivery service
type KafkaTransport struct {
	writer MessageWriter
}

// NewKafkaWriter builds the notification topic writer
func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: cfg.BatchTimeout,
	}
}

// NewKafkaTransport creates a Kafka transport over writer
func NewKafkaTransport(writer MessageWriter) *KafkaTransport {
	return &KafkaTransport{writer: writer}
}

func (t *KafkaTransport) Name() string { return "kafka" }

// Deliver publishes the notification keyed by booking so both parties' messages
// land on the same partition
func (t *KafkaTransport) Deliver(ctx context.Context, n Notification) error {
	if !n.Recipient.HasContact() {
		return ErrUnsupportedContact
	}

	value, err := json.Marshal(struct {
		Notification
		SentAt time.Time `json:"sent_at"`
	}{Notification: n, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	err = t.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.BookingID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte("booking_confirmed")},
			{Key: "party", Value: []byte(n.Recipient.Party)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Close flushes and closes the writer
func (t *KafkaTransport) Close() error {
	return t.writer.Close()
}
