package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	contractsv1 "holderdrop/contracts/gen/events/v1"
)

// ErrNoSubscribers is returned by Bus.Publish when nothing consumes the topic.
// The outbox relay leaves such events pending instead of marking them sent.
var ErrNoSubscribers = errors.New("no subscribers for topic")

type subscription struct {
	id      uint64
	handler func(context.Context, contractsv1.Envelope) error
}

// Bus delivers events to in-process consumers when no NATS server is
// configured. Delivery is synchronous: Publish returns once every handler for
// the topic has run, and fails if any of them failed.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	topics map[string][]subscription
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		topics: make(map[string][]subscription),
		logger: logger,
	}
}

func (b *Bus) Publish(ctx context.Context, topic string, event contractsv1.Envelope) error {
	b.mu.RLock()
	subs := append([]subscription(nil), b.topics[topic]...)
	b.mu.RUnlock()

	if len(subs) == 0 {
		b.logger.Warn("event has no consumer",
			"event", "bus_publish_unrouted",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", topic,
			"event_id", event.EventID,
		)
		return fmt.Errorf("%s: %w", topic, ErrNoSubscribers)
	}

	var errs []error
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sub.handler(ctx, event); err != nil {
			b.logger.Error("consumer handler failed",
				"event", "bus_consume_failed",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"event_id", event.EventID,
				"event_type", event.EventType,
				"error", err.Error(),
			)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("deliver %s to %s: %w", event.EventID, topic, errors.Join(errs...))
	}

	b.logger.Debug("event delivered",
		"event", "bus_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
		"consumers", len(subs),
	)
	return nil
}

// Subscribe registers handler for topic until ctx ends.
func (b *Bus) Subscribe(ctx context.Context, topic string, handler func(context.Context, contractsv1.Envelope) error) error {
	if topic == "" || handler == nil {
		return errors.New("bus subscription needs a topic and a handler")
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.topics[topic] = append(b.topics[topic], subscription{id: id, handler: handler})
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unsubscribe(topic, id)
	}()
	return nil
}

func (b *Bus) unsubscribe(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[topic]
	kept := subs[:0:0]
	for _, sub := range subs {
		if sub.id != id {
			kept = append(kept, sub)
		}
	}
	if len(kept) == 0 {
		delete(b.topics, topic)
		return
	}
	b.topics[topic] = kept
}
