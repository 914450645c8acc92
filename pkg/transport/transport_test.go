package transport

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NicolasHaas/gochat/pkg/protocol"
	pb "github.com/NicolasHaas/gochat/pkg/protocol/pb"
)

func TestTCPConnRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	c := NewTCPConn(server, Options{IdleTimeout: time.Second})
	t.Cleanup(func() { _ = c.Close(); _ = client.Close() })

	assert.NotEmpty(t, c.ID())
	assert.NotEqual(t, c.ID(), NewTCPConn(server, Options{}).ID())

	go func() {
		_ = protocol.WriteControlMessage(client, &pb.ControlMessage{Ping: &pb.Ping{Timestamp: 7}})
	}()
	msg, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, pb.TypePing, msg.Type())
	assert.Equal(t, int64(7), msg.Ping.Timestamp)

	errc := make(chan error, 1)
	go func() {
		errc <- c.Send(context.Background(), &pb.ControlMessage{Pong: &pb.Pong{Timestamp: 7}})
	}()
	got, err := protocol.ReadControlMessage(client)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Pong.Timestamp)
	require.NoError(t, <-errc)
}

func TestTCPConnClose(t *testing.T) {
	server, client := net.Pipe()
	defer func() { _ = client.Close() }()
	c := NewTCPConn(server, Options{})

	assert.False(t, c.Closed())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, c.Closed())

	err := c.Send(context.Background(), &pb.ControlMessage{Ping: &pb.Ping{}})
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestTCPConnWriteTimeout(t *testing.T) {
	server, client := net.Pipe()
	defer func() { _ = client.Close() }()
	c := NewTCPConn(server, Options{WriteTimeout: 50 * time.Millisecond})

	// Nobody reads from client, so the pipe write blocks until the deadline.
	err := c.Send(context.Background(), &pb.ControlMessage{Ping: &pb.Ping{}})
	require.Error(t, err)
	assert.True(t, c.Closed())
}

func TestTCPConnIdleTimeout(t *testing.T) {
	server, client := net.Pipe()
	defer func() { _ = client.Close() }()
	c := NewTCPConn(server, Options{IdleTimeout: 50 * time.Millisecond})

	_, err := c.Read()
	var ne net.Error
	require.True(t, errors.As(err, &ne), "got %v", err)
	assert.True(t, ne.Timeout())
}

func newWSPair(t *testing.T) (*WSConn, *websocket.Conn) {
	t.Helper()
	accepted := make(chan *WSConn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := UpgradeWS(w, r, Options{IdleTimeout: 2 * time.Second})
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		accepted <- c
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case c := <-accepted:
		t.Cleanup(func() { _ = c.Close() })
		return c, client
	case <-time.After(2 * time.Second):
		t.Fatal("no websocket accepted")
		return nil, nil
	}
}

func TestWSConnRoundTrip(t *testing.T) {
	c, client := newWSPair(t)
	assert.NotEmpty(t, c.ID())
	assert.NotEmpty(t, c.RemoteAddr())

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"ping":{"timestamp":3}}`)))
	msg, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, int64(3), msg.Ping.Timestamp)

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, c.Send(context.Background(), &pb.ControlMessage{Pong: &pb.Pong{Timestamp: i}}))
	}
	for i := int64(1); i <= 3; i++ {
		_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
		mt, data, err := client.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, mt)
		got, err := protocol.Unmarshal(data)
		require.NoError(t, err)
		assert.Equal(t, i, got.Pong.Timestamp, "messages arrive in send order")
	}
}

func TestWSConnRejectsGarbage(t *testing.T) {
	c, client := newWSPair(t)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("not json")))
	_, err := c.Read()
	assert.Error(t, err)
}

func TestWSConnClose(t *testing.T) {
	c, client := newWSPair(t)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, c.Closed())
	assert.True(t, errors.Is(c.Send(context.Background(), &pb.ControlMessage{Ping: &pb.Ping{}}), ErrClosed))

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := client.ReadMessage()
	assert.Error(t, err)
}
