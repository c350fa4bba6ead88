// ABOUTME: RabbitMQ implementation of the broker interface over a topic exchange.
// ABOUTME: Durable exchange and queues, auto-ack consumers, JSON payloads on the wire.

package rabbit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/agoradev/agora/internal/broker"
)

// DefaultExchange is the topic exchange used when the config leaves it blank.
const DefaultExchange = "agora-chat"

// Broker talks to RabbitMQ through a single connection and channel. Publish
// calls are serialized on the channel; consumers each get their own delivery
// goroutine.
type Broker struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	logger   *slog.Logger

	pubMu sync.Mutex
}

// Dial connects to RabbitMQ and declares the topic exchange. This is the one
// failure in the system that is allowed to be fatal at startup.
func Dial(url, exchange string, logger *slog.Logger) (*Broker, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dialing rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declaring exchange %q: %w", exchange, err)
	}

	return &Broker{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		logger:   logger.With("component", "rabbit"),
	}, nil
}

// DeclareFeed declares a durable queue and binds it to each routing pattern.
func (b *Broker) DeclareFeed(feedName string, routingKeys []string) error {
	if _, err := b.ch.QueueDeclare(feedName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring queue %q: %w", feedName, err)
	}
	for _, key := range routingKeys {
		if err := b.ch.QueueBind(feedName, key, b.exchange, false, nil); err != nil {
			return fmt.Errorf("binding queue %q to %q: %w", feedName, key, err)
		}
	}
	return nil
}

// Consume starts an auto-ack consumer on the queue. Deliveries are handed to
// the handler from a dedicated goroutine.
func (b *Broker) Consume(feedName string, handler broker.Handler) (broker.Consumer, error) {
	tag := "agora-" + feedName
	deliveries, err := b.ch.Consume(feedName, tag, true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consuming queue %q: %w", feedName, err)
	}

	go func() {
		for d := range deliveries {
			handler(d.Body)
		}
	}()

	return &consumer{broker: b, tag: tag}, nil
}

// Publish sends the payload to the topic exchange under the routing key.
func (b *Broker) Publish(ctx context.Context, payload []byte, routingKey string) error {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	err := b.ch.PublishWithContext(ctx, b.exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        payload,
	})
	if err != nil {
		return fmt.Errorf("publishing to %q: %w", routingKey, err)
	}
	return nil
}

// Close shuts down the channel and connection. Closing the channel cancels
// all consumers and ends their delivery ranges.
func (b *Broker) Close() error {
	if err := b.ch.Close(); err != nil {
		b.logger.Warn("closing channel", "error", err)
	}
	return b.conn.Close()
}

type consumer struct {
	broker   *Broker
	tag      string
	stopOnce sync.Once
}

// Stop cancels the consumer. Cancelling closes the delivery channel, which
// ends the handler goroutine.
func (c *consumer) Stop() {
	c.stopOnce.Do(func() {
		if err := c.broker.ch.Cancel(c.tag, false); err != nil {
			c.broker.logger.Warn("cancelling consumer", "tag", c.tag, "error", err)
		}
	})
}
