// Package eventbus provides a simple publish/subscribe event bus that
// components can use to communicate without depending on each other directly.
package eventbus

import (
	"context"
	"time"
)

// Handler is the function type for event subscribers. Handlers should assume
// they may be called multiple times concurrently.
type Handler func(context.Context, *Message) error

// Message is a single event delivered to a subscriber.
type Message struct {
	// ID uniquely identifies this delivery.
	ID string

	// Topic the message was published on.
	Topic string

	// Data is the payload provided by the publisher.
	Data any

	// Attempt is 1 for the first delivery of a message.
	Attempt int
}

// EventBus provides publish/subscribe for broadcast events and queue
// semantics for work distribution.
type EventBus interface {
	// Subscribe registers a handler for broadcast messages. Every subscriber
	// on a topic receives every message published to it.
	Subscribe(topic string, handler Handler)

	// Publish sends a message to all broadcast subscribers of the topic.
	Publish(topic string, data any)

	// SubscribeQueue registers a handler for queue messages. Each message
	// enqueued on a topic goes to exactly one of its queue subscribers.
	SubscribeQueue(topic string, handler Handler)

	// Enqueue sends a message to one queue subscriber of the topic.
	Enqueue(topic string, data any)

	// Wait blocks until all pending messages have been processed, or until
	// the timeout elapses. Publishers should be stopped first, the bus won't
	// reject new events.
	Wait(ctx context.Context, timeout time.Duration) error

	// Shutdown stops the bus and waits for in-flight handlers to finish.
	Shutdown(ctx context.Context) error
}
