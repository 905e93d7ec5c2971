package rabbitmq

import (
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

var errEmptyURL = errors.New("empty amqp url")

// link is one broker connection with a channel on which the service's topic
// exchange has been declared. Publishers and consumers each own one.
type link struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func openLink(amqpURL, exchange string) (*link, error) {
	if amqpURL == "" {
		return nil, errEmptyURL
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// durable, not auto-deleted
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &link{conn: conn, ch: ch, exchange: exchange}, nil
}

func (l *link) Close() error {
	if l == nil {
		return nil
	}
	if l.ch != nil {
		_ = l.ch.Close()
	}
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}
