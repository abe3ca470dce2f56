// Package notify publishes engine side-effect events to RabbitMQ so agent
// dashboards and downstream automation can react to handoffs and flow
// actions.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange notifications are published to.
const DefaultExchange = "flowbot.events"

// Routing keys for the events the engine emits.
const (
	KeyHandoff      = "conversation.handoff"
	KeyNotification = "conversation.notification"
	KeyTagChanged   = "contact.tag_changed"
	KeyTaskCreated  = "conversation.task_created"
)

// Meta carries the envelope identifiers.
type Meta struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlation_id"`
	OccurredAt    time.Time `json:"occurred_at"`
	Source        string    `json:"source"`
}

// Envelope is the JSON body of every published event.
type Envelope struct {
	Meta           Meta           `json:"meta"`
	TenantID       string         `json:"tenant_id"`
	ConversationID string         `json:"conversation_id"`
	Data           map[string]any `json:"data"`
}

// Publisher sends engine events to a broker.
type Publisher interface {
	Publish(ctx context.Context, key string, env Envelope) error
	Close() error
}

type rmqPublisher struct {
	conn     *amqp091.Connection
	exchange string
}

// New connects to RabbitMQ and declares the topic exchange.
func New(url, exchange string) (Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	slog.Info("notify.New: publisher connected", "exchange", exchange)
	return &rmqPublisher{conn: conn, exchange: exchange}, nil
}

func (p *rmqPublisher) Publish(ctx context.Context, key string, env Envelope) error {
	if env.Meta.ID == "" {
		env.Meta.ID = uuid.NewString()
	}
	if env.Meta.CorrelationID == "" {
		env.Meta.CorrelationID = env.ConversationID
	}
	if env.Meta.OccurredAt.IsZero() {
		env.Meta.OccurredAt = time.Now()
	}
	if env.Meta.Source == "" {
		env.Meta.Source = "flowbot"
	}

	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp091.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp091.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: env.Meta.CorrelationID,
		Timestamp:     env.Meta.OccurredAt,
		Body:          body,
	})
	if err != nil {
		slog.Error("notify.Publish: publish failed", "key", key, "error", err)
		return err
	}
	slog.Debug("notify.Publish: event published", "key", key, "exchange", p.exchange, "messageID", env.Meta.ID)
	return nil
}

func (p *rmqPublisher) Close() error {
	return p.conn.Close()
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, key string, env Envelope) error { return nil }
func (NopPublisher) Close() error                                                { return nil }
