package pubsub

import (
	"context"
	"encoding/json"
	"sync"
)

// Mock is an in-memory pubsub client for tests
type Mock struct {
	mx       sync.Mutex
	handlers map[string][]EventHandler
}

// NewMock returns a new mock pubsub client
func NewMock() *Mock {
	return &Mock{handlers: make(map[string][]EventHandler)}
}

// Publish delivers the payload synchronously to the topic subscribers
func (m *Mock) Publish(ctx context.Context, topic string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	m.mx.Lock()
	handlers := append([]EventHandler(nil), m.handlers[topic]...)
	m.mx.Unlock()

	for _, h := range handlers {
		if err := h(ctx, Message(raw)); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe registers a callback for the topic
func (m *Mock) Subscribe(_ context.Context, topic string, callback EventHandler) (Subscription, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.handlers[topic] = append(m.handlers[topic], callback)
	return &mockSubscription{mock: m, topic: topic}, nil
}

// Close forgets all subscriptions
func (m *Mock) Close() error {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.handlers = make(map[string][]EventHandler)
	return nil
}

type mockSubscription struct {
	mock  *Mock
	topic string
	once  sync.Once
}

func (s *mockSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.mock.mx.Lock()
		defer s.mock.mx.Unlock()
		delete(s.mock.handlers, s.topic)
	})
}
