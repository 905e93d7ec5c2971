package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Consumer reads messages from an exclusive, auto-deleted queue bound to a topic exchange.
type Consumer struct {
	*link
}

// NewConsumer dials RabbitMQ and declares the exchange.
func NewConsumer(amqpURL, exchange string) (*Consumer, error) {
	l, err := openLink(amqpURL, exchange)
	if err != nil {
		return nil, err
	}
	return &Consumer{link: l}, nil
}

// Consume binds a private queue to bindingKey and calls handle for each message body
// until ctx is done or the channel closes.
func (c *Consumer) Consume(ctx context.Context, bindingKey string, handle func(body []byte)) error {
	q, err := c.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := c.ch.QueueBind(q.Name, bindingKey, c.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	deliveries, err := c.ch.ConsumeWithContext(ctx, q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	log.Printf("rabbitmq consuming exchange=%s binding=%s queue=%s", c.exchange, bindingKey, q.Name)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			handle(d.Body)
		}
	}
}
