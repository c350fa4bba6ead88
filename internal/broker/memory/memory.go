// ABOUTME: In-process topic broker with AMQP-style wildcard matching.
// ABOUTME: Backs tests and brokerless development mode; deliveries are async per consumer.

package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/agoradev/agora/internal/broker"
)

// feed is a declared queue: its binding patterns plus active consumers.
type feed struct {
	patterns  []string
	consumers map[string]broker.Handler // consumerID -> handler
}

// Broker is an in-memory implementation of broker.Broker. Messages published
// under a routing key are delivered asynchronously to every consumer of
// every feed whose patterns match the key.
type Broker struct {
	mu     sync.RWMutex
	feeds  map[string]*feed
	closed bool
	wg     sync.WaitGroup
}

// New creates an empty in-memory broker.
func New() *Broker {
	return &Broker{feeds: make(map[string]*feed)}
}

// DeclareFeed registers a feed bound to the given patterns. Re-declaring an
// existing feed replaces its patterns and keeps its consumers.
func (b *Broker) DeclareFeed(feedName string, routingKeys []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("broker closed")
	}

	f, ok := b.feeds[feedName]
	if !ok {
		f = &feed{consumers: make(map[string]broker.Handler)}
		b.feeds[feedName] = f
	}
	f.patterns = append([]string(nil), routingKeys...)
	return nil
}

// Consume attaches a handler to the feed. The returned consumer's Stop is
// idempotent.
func (b *Broker) Consume(feedName string, handler broker.Handler) (broker.Consumer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("broker closed")
	}

	f, ok := b.feeds[feedName]
	if !ok {
		return nil, errors.New("unknown feed: " + feedName)
	}

	id := uuid.New().String()
	f.consumers[id] = handler
	return &consumer{broker: b, feedName: feedName, id: id}, nil
}

// Publish delivers the payload to all matching consumers. Each delivery runs
// on its own goroutine so a slow handler never blocks the publisher.
func (b *Broker) Publish(_ context.Context, payload []byte, routingKey string) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return errors.New("broker closed")
	}
	var targets []broker.Handler
	for _, f := range b.feeds {
		if matchesAny(f.patterns, routingKey) {
			for _, h := range f.consumers {
				targets = append(targets, h)
			}
		}
	}
	b.mu.RUnlock()

	for _, h := range targets {
		body := append([]byte(nil), payload...)
		handler := h
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			handler(body)
		}()
	}
	return nil
}

// Close drops all feeds and waits for in-flight deliveries to finish.
func (b *Broker) Close() error {
	b.mu.Lock()
	b.closed = true
	b.feeds = make(map[string]*feed)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

type consumer struct {
	broker   *Broker
	feedName string
	id       string
	stopOnce sync.Once
}

func (c *consumer) Stop() {
	c.stopOnce.Do(func() {
		c.broker.mu.Lock()
		defer c.broker.mu.Unlock()
		if f, ok := c.broker.feeds[c.feedName]; ok {
			delete(f.consumers, c.id)
		}
	})
}

// matchesAny reports whether the routing key matches at least one pattern.
func matchesAny(patterns []string, key string) bool {
	for _, p := range patterns {
		if matchTopic(p, key) {
			return true
		}
	}
	return false
}

// matchTopic implements AMQP topic matching: `*` matches exactly one word,
// `#` matches zero or more words.
func matchTopic(pattern, key string) bool {
	return matchWords(strings.Split(pattern, "."), strings.Split(key, "."))
}

func matchWords(pattern, words []string) bool {
	if len(pattern) == 0 {
		return len(words) == 0
	}
	switch pattern[0] {
	case "#":
		for i := 0; i <= len(words); i++ {
			if matchWords(pattern[1:], words[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(words) > 0 && matchWords(pattern[1:], words[1:])
	default:
		return len(words) > 0 && words[0] == pattern[0] && matchWords(pattern[1:], words[1:])
	}
}
