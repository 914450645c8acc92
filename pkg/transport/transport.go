// Package transport adapts network connections to conn.Conn.
//
// Both transports carry one pb.ControlMessage per frame: TCP uses the
// length-prefixed JSON framing from pkg/protocol, WebSocket uses one text
// frame per message. Reads happen on the caller's goroutine; Send is safe
// for concurrent use.
package transport

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/NicolasHaas/gochat/pkg/conn"
	pb "github.com/NicolasHaas/gochat/pkg/protocol/pb"
)

const (
	// DefaultWriteTimeout bounds a single frame write.
	DefaultWriteTimeout = 10 * time.Second
	// DefaultIdleTimeout closes a connection that sent nothing for this long.
	// Clients keep the connection alive with Ping.
	DefaultIdleTimeout = 90 * time.Second
)

// ErrClosed is returned by Send after the connection was closed.
var ErrClosed = errors.New("transport: connection closed")

// MessageConn is a conn.Conn the server can also read from.
type MessageConn interface {
	conn.Conn
	// Read blocks for the next message. Any error ends the connection.
	Read() (*pb.ControlMessage, error)
}

// Options tunes a connection.
type Options struct {
	WriteTimeout time.Duration
	IdleTimeout  time.Duration // zero disables the read deadline
}

func (o Options) writeTimeout() time.Duration {
	if o.WriteTimeout > 0 {
		return o.WriteTimeout
	}
	return DefaultWriteTimeout
}

// writeDeadline is the earlier of the ctx deadline and now+timeout.
func writeDeadline(ctxDeadline time.Time, hasDeadline bool, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if hasDeadline && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}

func newConnID() string {
	return uuid.NewString()
}
