package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/voyago/flight-bookings/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject)

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	BookingCreated   = "booking.created"
	BookingHeld      = "booking.held"
	BookingFailed    = "booking.failed"
	BookingCanceled  = "booking.canceled"
	BookingExpired   = "booking.expired"
	TicketIssued     = "ticket.issued"
	PaymentFailed    = "payment.failed"
	NotifySend       = "notify.send"
)

// Event payloads
type BookingCreatedEvent struct {
	BookingID int64     `json:"booking_id"`
	Reference string    `json:"reference"`
	Email     string    `json:"email"`
	OfferID   string    `json:"offer_id"`
	CreatedAt time.Time `json:"created_at"`
}

type BookingHeldEvent struct {
	BookingID       int64      `json:"booking_id"`
	Reference       string     `json:"reference"`
	Email           string     `json:"email"`
	PNR             string     `json:"pnr"`
	TotalAmount     string     `json:"total_amount"`
	Currency        string     `json:"currency"`
	PaymentDeadline *time.Time `json:"payment_deadline,omitempty"`
}

type BookingFailedEvent struct {
	BookingID int64  `json:"booking_id"`
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
}

type BookingCanceledEvent struct {
	BookingID  int64     `json:"booking_id"`
	Reference  string    `json:"reference"`
	Reason     string    `json:"reason"`
	CanceledAt time.Time `json:"canceled_at"`
}

type TicketIssuedEvent struct {
	BookingID int64     `json:"booking_id"`
	Reference string    `json:"reference"`
	Email     string    `json:"email"`
	PNR       string    `json:"pnr"`
	Documents []string  `json:"documents"`
	IssuedAt  time.Time `json:"issued_at"`
}

type PaymentFailedEvent struct {
	BookingID  int64  `json:"booking_id"`
	Reference  string `json:"reference"`
	Email      string `json:"email"`
	RetryCount int    `json:"retry_count"`
	Reason     string `json:"reason"`
}

type NotificationEvent struct {
	Type      string                 `json:"type"`
	Recipient string                 `json:"recipient"`
	Subject   string                 `json:"subject"`
	Data      map[string]interface{} `json:"data"`
}
