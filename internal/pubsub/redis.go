package pubsub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/nppfbt/ndi-verifier/internal/log"
)

// RedisClient is a pubsub client over redis channels
type RedisClient struct {
	conn *redis.Client
}

// NewRedis returns a redis pubsub client
func NewRedis(rdb *redis.Client) Client {
	return &RedisClient{conn: rdb}
}

// Publish publishes a new payload on the topic
func (rdb *RedisClient) Publish(ctx context.Context, topic string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return rdb.conn.Publish(ctx, topic, raw).Err()
}

// Subscribe adds a callback for the topic and returns its handle
func (rdb *RedisClient) Subscribe(ctx context.Context, topic string, callback EventHandler) (Subscription, error) {
	ps := rdb.conn.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		return nil, err
	}

	sub := &redisSubscription{ps: ps}
	go func() {
		for {
			select {
			case event, ok := <-ps.Channel():
				if !ok {
					return
				}
				if event.Channel != topic {
					log.Error(ctx, "msg channel != topic", "channel", event.Channel, "topic", topic)
					continue
				}
				if err := callback(ctx, Message(event.Payload)); err != nil {
					log.Error(ctx, "executing callback function", "err", err, "topic", topic)
				}

			case <-ctx.Done():
				sub.Unsubscribe()
				return
			}
		}
	}()

	return sub, nil
}

// Close closes the underlying redis connection
func (rdb *RedisClient) Close() error {
	return rdb.conn.Close()
}

type redisSubscription struct {
	ps   *redis.PubSub
	once sync.Once
}

func (s *redisSubscription) Unsubscribe() {
	s.once.Do(func() {
		_ = s.ps.Close()
	})
}
