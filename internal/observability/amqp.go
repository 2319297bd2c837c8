package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventPublisher pushes JSON envelopes onto a topic exchange.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// TopicPublisher is the RabbitMQ-backed EventPublisher.
type TopicPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// DialTopicPublisher connects to the broker and declares the exchange.
func DialTopicPublisher(url, exchange string) (*TopicPublisher, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	return &TopicPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *TopicPublisher) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	table := make(amqp.Table, len(headers))
	for key, value := range headers {
		table[key] = value
	}

	return p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers:      table,
	})
}

func (p *TopicPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

const sessionsRoutingKey = "realtime.sessions"

var eventSink EventPublisher

// SetEventPublisher installs the process-wide sink for session events.
func SetEventPublisher(p EventPublisher) {
	eventSink = p
}

// PublishSessionEvent is best effort: without a sink the event is dropped,
// and a publish failure only bumps the error counter.
func PublishSessionEvent(ctx context.Context, ev SessionEvent, headers map[string]string) {
	if eventSink == nil {
		return
	}
	if err := eventSink.Publish(ctx, sessionsRoutingKey, ev, headers); err != nil {
		IncAMQPPublishError()
	}
}
