package transport

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/NicolasHaas/gochat/pkg/protocol"
	pb "github.com/NicolasHaas/gochat/pkg/protocol/pb"
)

// TCPConn carries length-prefixed JSON frames over a stream connection.
type TCPConn struct {
	id   string
	nc   net.Conn
	opts Options

	wmu    sync.Mutex // one frame at a time
	closed atomic.Bool
}

// NewTCPConn wraps nc. It takes ownership of nc.
func NewTCPConn(nc net.Conn, opts Options) *TCPConn {
	return &TCPConn{id: newConnID(), nc: nc, opts: opts}
}

func (c *TCPConn) ID() string { return c.id }

func (c *TCPConn) RemoteAddr() string { return c.nc.RemoteAddr().String() }

func (c *TCPConn) Send(ctx context.Context, msg *pb.ControlMessage) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "transport: send")
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	dl, ok := ctx.Deadline()
	if err := c.nc.SetWriteDeadline(writeDeadline(dl, ok, c.opts.writeTimeout())); err != nil {
		return errors.Wrap(err, "transport: set write deadline")
	}
	if err := protocol.WriteControlMessage(c.nc, msg); err != nil {
		// A partial frame leaves the stream unusable.
		if !errors.Is(err, protocol.ErrMessageTooLarge) {
			_ = c.Close()
		}
		return errors.Wrap(err, "transport: send")
	}
	return nil
}

func (c *TCPConn) Read() (*pb.ControlMessage, error) {
	if c.opts.IdleTimeout > 0 {
		if err := c.nc.SetReadDeadline(time.Now().Add(c.opts.IdleTimeout)); err != nil {
			return nil, errors.Wrap(err, "transport: set read deadline")
		}
	}
	msg, err := protocol.ReadControlMessage(c.nc)
	if err != nil {
		return nil, errors.Wrap(err, "transport: read")
	}
	return msg, nil
}

func (c *TCPConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.nc.Close()
}

func (c *TCPConn) Closed() bool { return c.closed.Load() }
