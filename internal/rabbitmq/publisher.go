package rabbitmq

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"karaoke-service/internal/telemetry"
)

// Publisher publishes JSON events to a topic exchange.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
	Close() error
}

// NewPublisher connects to exchange. When AMQP is not configured or the broker
// cannot be reached it returns a publisher that only logs.
func NewPublisher(amqpURL, exchange string) Publisher {
	l, err := openLink(amqpURL, exchange)
	if err != nil {
		log.Printf("rabbitmq: publisher for %s disabled: %v", exchange, err)
		return &noopPublisher{reason: err.Error()}
	}
	log.Printf("rabbitmq: publishing to exchange=%s", exchange)
	return &amqpPublisher{link: l}
}

type amqpPublisher struct {
	*link
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	table := make(amqp.Table, len(headers))
	for key, value := range headers {
		table[key] = value
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers:      table,
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		log.Printf("rabbitmq: publish routing_key=%s failed: %v", routingKey, err)
		return err
	}
	return nil
}

type noopPublisher struct {
	reason string
}

func (p *noopPublisher) Publish(_ context.Context, routingKey string, event any, _ map[string]string) error {
	switch ev := event.(type) {
	case telemetry.AuditEnvelope:
		log.Printf("rabbitmq: noop publish routing_key=%s audit=%s session_id=%s request_id=%s", routingKey, ev.EventType, ev.SessionID, ev.RequestID)
	case json.RawMessage:
		log.Printf("rabbitmq: noop publish routing_key=%s bytes=%d", routingKey, len(ev))
	default:
		log.Printf("rabbitmq: noop publish routing_key=%s", routingKey)
	}
	return nil
}

func (*noopPublisher) Close() error {
	return nil
}

// PublisherMode is "amqp" for a connected publisher and "noop" otherwise.
func PublisherMode(p Publisher) string {
	if _, ok := p.(*amqpPublisher); ok {
		return "amqp"
	}
	if _, ok := p.(*noopPublisher); ok {
		return "noop"
	}
	return "unknown"
}

// PublisherNoopReason says why p is not connected, or "" when it is.
func PublisherNoopReason(p Publisher) string {
	if noop, ok := p.(*noopPublisher); ok {
		return noop.reason
	}
	return ""
}
