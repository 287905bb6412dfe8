package pubsub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGatewayServer accepts one websocket connection and records the frames
// it receives. Frames written to send are forwarded to the client.
type fakeGatewayServer struct {
	server *httptest.Server
	frames chan wsFrame
	send   chan wsFrame
}

func newFakeGatewayServer(t *testing.T) *fakeGatewayServer {
	t.Helper()
	g := &fakeGatewayServer{
		frames: make(chan wsFrame, 16),
		send:   make(chan wsFrame, 16),
	}

	upgrader := websocket.Upgrader{}
	g.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		go func() {
			for frame := range g.send {
				if err := conn.WriteJSON(frame); err != nil {
					return
				}
			}
		}()

		for {
			var frame wsFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			g.frames <- frame
		}
	}))
	t.Cleanup(g.server.Close)
	return g
}

func (g *fakeGatewayServer) url() string {
	return "ws" + strings.TrimPrefix(g.server.URL, "http")
}

func (g *fakeGatewayServer) nextFrame(t *testing.T) wsFrame {
	t.Helper()
	select {
	case frame := <-g.frames:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received in time")
		return wsFrame{}
	}
}

func TestWSClientSubscribe(t *testing.T) {
	gateway := newFakeGatewayServer(t)
	client := NewWSClient(gateway.url(), "seed-from-config")
	defer func() { assert.NoError(t, client.Close()) }()

	received := make(chan Message, 1)
	sub, err := client.Subscribe(context.Background(), "thread-abc", func(_ context.Context, msg Message) error {
		received <- msg
		return nil
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	// the first frame authenticates with the seed, the second subscribes
	auth := gateway.nextFrame(t)
	assert.Equal(t, "auth", auth.Op)
	assert.Equal(t, "seed-from-config", auth.Seed)

	subFrame := gateway.nextFrame(t)
	assert.Equal(t, "sub", subFrame.Op)
	assert.Equal(t, "thread-abc", subFrame.Topic)

	gateway.send <- wsFrame{
		Topic: "thread-abc",
		Data:  json.RawMessage(`{"data":{"type":"present-proof/presentation-result"}}`),
	}

	select {
	case msg := <-received:
		assert.JSONEq(t, `{"data":{"type":"present-proof/presentation-result"}}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("callback never invoked")
	}
}

func TestWSClientIgnoresUnknownTopics(t *testing.T) {
	gateway := newFakeGatewayServer(t)
	client := NewWSClient(gateway.url(), "seed-from-config")
	defer func() { assert.NoError(t, client.Close()) }()

	received := make(chan Message, 1)
	_, err := client.Subscribe(context.Background(), "thread-abc", func(_ context.Context, msg Message) error {
		received <- msg
		return nil
	})
	require.NoError(t, err)

	gateway.send <- wsFrame{Topic: "thread-other", Data: json.RawMessage(`{"x":1}`)}
	gateway.send <- wsFrame{Topic: "thread-abc", Data: json.RawMessage(`{"x":2}`)}

	select {
	case msg := <-received:
		assert.JSONEq(t, `{"x":2}`, string(msg), "only the subscribed topic may be delivered")
	case <-time.After(2 * time.Second):
		t.Fatal("callback never invoked")
	}
	assert.Empty(t, received)
}

func TestWSClientUnsubscribe(t *testing.T) {
	gateway := newFakeGatewayServer(t)
	client := NewWSClient(gateway.url(), "seed-from-config")
	defer func() { assert.NoError(t, client.Close()) }()

	sub, err := client.Subscribe(context.Background(), "thread-abc", func(_ context.Context, _ Message) error {
		t.Error("handler fired after unsubscribe")
		return nil
	})
	require.NoError(t, err)

	gateway.nextFrame(t) // auth
	gateway.nextFrame(t) // sub

	sub.Unsubscribe()
	unsub := gateway.nextFrame(t)
	assert.Equal(t, "unsub", unsub.Op)
	assert.Equal(t, "thread-abc", unsub.Topic)

	gateway.send <- wsFrame{Topic: "thread-abc", Data: json.RawMessage(`{"x":1}`)}
	time.Sleep(100 * time.Millisecond)
}

func TestWSClientDialFailure(t *testing.T) {
	client := NewWSClient("ws://127.0.0.1:1", "seed-from-config")
	_, err := client.Subscribe(context.Background(), "thread-abc", func(_ context.Context, _ Message) error {
		return nil
	})
	assert.Error(t, err)
}

func TestWSClientPublish(t *testing.T) {
	gateway := newFakeGatewayServer(t)
	client := NewWSClient(gateway.url(), "seed-from-config")
	defer func() { assert.NoError(t, client.Close()) }()

	require.NoError(t, client.Publish(context.Background(), "thread-abc", map[string]int{"x": 1}))

	gateway.nextFrame(t) // auth
	pub := gateway.nextFrame(t)
	assert.Equal(t, "pub", pub.Op)
	assert.Equal(t, "thread-abc", pub.Topic)
	assert.JSONEq(t, `{"x":1}`, string(pub.Data))
}
