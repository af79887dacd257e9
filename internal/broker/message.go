//file: internal/broker/message.go

package broker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"webhook-gateway/internal/logger"
)

// Headers attached to every forwarded webhook
const (
	HeaderWebhookID   = "Webhook-Id"
	HeaderSender      = "Webhook-Sender"
	HeaderReceivedAt  = "Webhook-Received-At"
	HeaderContentType = "Content-Type"
)

// Message is an authenticated webhook ready to be forwarded.
type Message struct {
	ID          string
	Sender      string
	Subject     string
	ContentType string
	ReceivedAt  time.Time
	Data        []byte
}

// NewMessage stamps an authenticated payload with a fresh ID and receive time.
func NewMessage(sender, subject string, data []byte) Message {
	return Message{
		ID:         uuid.NewString(),
		Sender:     sender,
		Subject:    subject,
		ReceivedAt: time.Now().UTC(),
		Data:       data,
	}
}

// natsMsg converts the message to a NATS message with gateway headers
func (m Message) natsMsg() *nats.Msg {
	msg := nats.NewMsg(m.Subject)
	msg.Data = m.Data
	msg.Header.Set(HeaderWebhookID, m.ID)
	msg.Header.Set(HeaderSender, m.Sender)
	msg.Header.Set(HeaderReceivedAt, m.ReceivedAt.Format(time.RFC3339Nano))
	if m.ContentType != "" {
		msg.Header.Set(HeaderContentType, m.ContentType)
	}
	return msg
}

// LogPublisher records accepted webhooks in the log instead of forwarding
// them. Used when NATS is disabled.
type LogPublisher struct {
	logger *logger.Logger
}

// NewLogPublisher creates a publisher that only logs
func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{logger: log}
}

// Publish logs the message metadata and never fails
func (p *LogPublisher) Publish(_ context.Context, msg Message) error {
	p.logger.Info("webhook accepted",
		"id", msg.ID,
		"sender", msg.Sender,
		"subject", msg.Subject,
		"bytes", len(msg.Data))
	return nil
}

// Close is a no-op
func (p *LogPublisher) Close() error {
	return nil
}
