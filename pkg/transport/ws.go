package transport

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"

	"github.com/NicolasHaas/gochat/pkg/protocol"
	pb "github.com/NicolasHaas/gochat/pkg/protocol/pb"
)

const (
	// DefaultSendQueue is the per-connection outbound buffer.
	DefaultSendQueue = 64

	pingPeriod = 30 * time.Second
)

// Upgrader accepts browser clients from any origin. Authentication happens
// on the control channel, not at the handshake.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WSConn carries one JSON control message per WebSocket text frame.
// Writes go through a single writer goroutine fed by a bounded queue.
type WSConn struct {
	id   string
	ws   *websocket.Conn
	opts Options

	out  chan []byte
	done chan struct{}
	once sync.Once
}

// NewWSConn wraps an upgraded connection and starts its writer.
func NewWSConn(ws *websocket.Conn, opts Options) *WSConn {
	c := &WSConn{
		id:   newConnID(),
		ws:   ws,
		opts: opts,
		out:  make(chan []byte, DefaultSendQueue),
		done: make(chan struct{}),
	}
	ws.SetReadLimit(protocol.MaxControlMessage)
	if opts.IdleTimeout > 0 {
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(opts.IdleTimeout))
		})
	}
	go c.writeLoop()
	return c
}

// UpgradeWS upgrades an HTTP request to a WSConn.
func UpgradeWS(w http.ResponseWriter, r *http.Request, opts Options) (*WSConn, error) {
	ws, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, errors.Wrap(err, "transport: upgrade")
	}
	return NewWSConn(ws, opts), nil
}

func (c *WSConn) ID() string { return c.id }

func (c *WSConn) RemoteAddr() string { return c.ws.RemoteAddr().String() }

// Send queues msg for the writer. It blocks while the queue is full until ctx
// is done.
func (c *WSConn) Send(ctx context.Context, msg *pb.ControlMessage) error {
	if c.Closed() {
		return ErrClosed
	}
	data, err := protocol.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "transport: send")
	}
	select {
	case c.out <- data:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "transport: send queue full")
	}
}

func (c *WSConn) Read() (*pb.ControlMessage, error) {
	if c.opts.IdleTimeout > 0 {
		if err := c.ws.SetReadDeadline(time.Now().Add(c.opts.IdleTimeout)); err != nil {
			return nil, errors.Wrap(err, "transport: set read deadline")
		}
	}
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, errors.Wrap(err, "transport: read")
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		msg, err := protocol.Unmarshal(data)
		if err != nil {
			return nil, errors.Wrap(err, "transport: read")
		}
		return msg, nil
	}
}

func (c *WSConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *WSConn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *WSConn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.writeTimeout()))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("websocket write failed", "conn", c.id, "err", err)
				_ = c.Close()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.opts.writeTimeout())
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				slog.Debug("websocket ping failed", "conn", c.id, "err", err)
				_ = c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
