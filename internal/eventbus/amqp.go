package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"karaoke-service/internal/rabbitmq"
)

const routingPrefix = "session."

// RoutingKey is the topic key an event is published under.
func RoutingKey(ev Event) string {
	return routingPrefix + ev.Kind()
}

// AMQPBridge fans events out through a RabbitMQ topic exchange so every process
// sharing the store sees every row change. Inbound messages are re-published on
// the local bus, which is where coordinators subscribe.
type AMQPBridge struct {
	publisher rabbitmq.Publisher
	consumer  *rabbitmq.Consumer
	local     Publisher
}

// NewAMQPBridge connects the exchange to the local bus.
func NewAMQPBridge(publisher rabbitmq.Publisher, consumer *rabbitmq.Consumer, local Publisher) *AMQPBridge {
	return &AMQPBridge{publisher: publisher, consumer: consumer, local: local}
}

// Publish sends ev to the exchange.
func (b *AMQPBridge) Publish(ctx context.Context, ev Event) error {
	body, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := b.publisher.Publish(ctx, RoutingKey(ev), json.RawMessage(body), nil); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Kind(), err)
	}
	return nil
}

// Run consumes the exchange into the local bus until ctx is done.
func (b *AMQPBridge) Run(ctx context.Context) error {
	return b.consumer.Consume(ctx, routingPrefix+"#", func(body []byte) {
		ev, err := Decode(body)
		if err != nil {
			log.Printf("eventbus: dropping malformed amqp message: %v", err)
			return
		}
		if err := b.local.Publish(ctx, ev); err != nil {
			log.Printf("eventbus: local publish %s failed: %v", ev.Kind(), err)
		}
	})
}
