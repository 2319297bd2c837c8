package rabbitmq

import (
	"context"
	"encoding/json"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"avenir-sync/internal/observability"
	"avenir-sync/internal/telemetry"
)

// Publisher publishes audit events onto the bus.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// NewPublisher connects to the audit bus. Any broker failure degrades to a
// noop publisher that logs entries locally, so the backend runs without a
// broker.
func NewPublisher(amqpURL, exchange string) Publisher {
	if amqpURL == "" {
		return newNoop("no amqp url configured")
	}
	pub, err := dial(amqpURL, exchange)
	if err != nil {
		return newNoop(err.Error())
	}
	log.Printf("audit bus connected exchange=%s", exchange)
	return pub
}

func dial(amqpURL, exchange string) (*busPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &busPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

type busPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func (p *busPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		observability.IncAMQPPublishError()
	}
	return err
}

func (p *busPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func newNoop(reason string) noopPublisher {
	log.Printf("audit bus disabled, logging locally: %s", reason)
	return noopPublisher{}
}

type noopPublisher struct{}

func (noopPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	switch envelope := event.(type) {
	case telemetry.AuditEnvelope:
		log.Printf("audit key=%s severity=%s request_id=%s detail=%q", routingKey, envelope.Severity, envelope.RequestID, envelope.Detail)
	case *telemetry.AuditEnvelope:
		log.Printf("audit key=%s severity=%s request_id=%s detail=%q", routingKey, envelope.Severity, envelope.RequestID, envelope.Detail)
	default:
		log.Printf("audit key=%s", routingKey)
	}
	return nil
}

func (noopPublisher) Close() error { return nil }
