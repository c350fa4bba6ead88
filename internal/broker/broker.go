// ABOUTME: Narrow transport interface the orchestration core depends on.
// ABOUTME: Topic pub/sub with durable feeds; implementations live in subpackages.

package broker

import "context"

// Handler receives the raw payload of one delivered message. Handlers for
// different feeds run concurrently; a handler must not assume any ordering
// across feeds.
type Handler func(payload []byte)

// Consumer is an active consumption of a feed. Stop is idempotent; after it
// returns no further deliveries are handed to the handler.
type Consumer interface {
	Stop()
}

// Broker is a topic-based publish/subscribe transport. Routing keys follow
// AMQP topic semantics: dot-separated words, `*` matches one word, `#`
// matches zero or more.
type Broker interface {
	// DeclareFeed creates (or re-creates, idempotently) a routable feed
	// bound to the given routing patterns.
	DeclareFeed(feedName string, routingKeys []string) error

	// Consume begins consuming the feed, invoking handler for each delivery.
	Consume(feedName string, handler Handler) (Consumer, error)

	// Publish sends a payload under the given concrete routing key.
	Publish(ctx context.Context, payload []byte, routingKey string) error

	// Close releases the transport connection and stops all consumers.
	Close() error
}
