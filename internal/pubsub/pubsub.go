package pubsub

import (
	"context"
)

// Message is the payload received in a pubsub subscriber. The input for
// callback functions.
type Message []byte

// EventHandler is the type that functions handling a topic message must
// comply with.
type EventHandler func(context.Context, Message) error

// Subscription is the owned handle of one topic subscription. Unsubscribe
// stops delivery and releases the underlying resources; it is safe to call
// more than once.
type Subscription interface {
	Unsubscribe()
}

// Publisher sends messages to a topic
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Subscriber subscribes to pubsub topics
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, callback EventHandler) (Subscription, error)
}

// Client is formed by the publisher and subscriber
type Client interface {
	Publisher
	Subscriber
	Close() error
}
