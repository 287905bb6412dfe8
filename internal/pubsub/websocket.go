package pubsub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/nppfbt/ndi-verifier/internal/log"
)

const (
	opAuth  = "auth"
	opSub   = "sub"
	opUnsub = "unsub"
	opPub   = "pub"
)

type wsFrame struct {
	Op    string          `json:"op,omitempty"`
	Seed  string          `json:"seed,omitempty"`
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// WSClient is a pubsub client over the NDI event gateway websocket. The
// connection is dialed lazily on the first subscription and authenticated
// with the seed. A dropped connection is not redialed behind the caller's
// back: process suspension kills the socket silently, so resolvers re-subscribe
// on every resume instead of trusting a live connection.
type WSClient struct {
	url  string
	seed string

	mx       sync.Mutex
	conn     *websocket.Conn
	handlers map[string]EventHandler
}

// NewWSClient returns an event gateway client. The seed is a credential and
// must come from configuration or the key store.
func NewWSClient(url, seed string) *WSClient {
	return &WSClient{
		url:      url,
		seed:     seed,
		handlers: make(map[string]EventHandler),
	}
}

// Publish sends a payload on the topic
func (c *WSClient) Publish(ctx context.Context, topic string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	c.mx.Lock()
	defer c.mx.Unlock()
	if err := c.ensureConn(ctx); err != nil {
		return err
	}
	return c.conn.WriteJSON(wsFrame{Op: opPub, Topic: topic, Data: raw})
}

// Subscribe registers a callback for the topic, dialing the gateway if
// needed, and returns the subscription handle.
func (c *WSClient) Subscribe(ctx context.Context, topic string, callback EventHandler) (Subscription, error) {
	c.mx.Lock()
	defer c.mx.Unlock()

	if err := c.ensureConn(ctx); err != nil {
		return nil, err
	}
	if err := c.conn.WriteJSON(wsFrame{Op: opSub, Topic: topic}); err != nil {
		c.dropConn()
		return nil, err
	}
	c.handlers[topic] = callback

	return &wsSubscription{client: c, topic: topic}, nil
}

// Close tears down the connection and forgets all subscriptions
func (c *WSClient) Close() error {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.handlers = make(map[string]EventHandler)
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// ensureConn dials and authenticates the gateway. Callers must hold the lock.
func (c *WSClient) ensureConn(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err := conn.WriteJSON(wsFrame{Op: opAuth, Seed: c.seed}); err != nil {
		_ = conn.Close()
		return err
	}

	c.conn = conn
	go c.readLoop(ctx, conn)
	return nil
}

// readLoop dispatches inbound frames to the handler of their topic. It ends,
// dropping the connection, on the first read error.
func (c *WSClient) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.mx.Lock()
			if c.conn == conn {
				c.dropConn()
			}
			c.mx.Unlock()
			log.Debug(ctx, "event gateway connection closed", "err", err)
			return
		}

		var frame wsFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Error(ctx, "unmarshal event gateway frame", "err", err)
			continue
		}

		c.mx.Lock()
		handler := c.handlers[frame.Topic]
		c.mx.Unlock()
		if handler == nil {
			continue
		}

		payload := Message(frame.Data)
		if len(payload) == 0 {
			payload = Message(raw)
		}
		if err := handler(ctx, payload); err != nil {
			log.Error(ctx, "executing callback function", "err", err, "topic", frame.Topic)
		}
	}
}

// dropConn closes and forgets the connection. Callers must hold the lock.
func (c *WSClient) dropConn() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

type wsSubscription struct {
	client *WSClient
	topic  string
	once   sync.Once
}

func (s *wsSubscription) Unsubscribe() {
	s.once.Do(func() {
		c := s.client
		c.mx.Lock()
		defer c.mx.Unlock()
		delete(c.handlers, s.topic)
		if c.conn != nil {
			_ = c.conn.WriteJSON(wsFrame{Op: opUnsub, Topic: s.topic})
		}
	})
}
