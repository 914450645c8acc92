// Package conn defines the connection abstraction shared by transports and the core.
package conn

import (
	"context"

	pb "github.com/NicolasHaas/gochat/pkg/protocol/pb"
)

// Conn is one live client connection. Transports implement it.
type Conn interface {
	// ID is unique per accepted connection and is the registry's identity key.
	ID() string

	// Send queues or writes msg. It must be safe for concurrent use and must
	// return an error instead of blocking forever on a dead peer.
	Send(ctx context.Context, msg *pb.ControlMessage) error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string

	// Close closes the connection. Calling it twice is a no-op.
	Close() error

	// Closed reports whether Close has been called or the peer went away.
	Closed() bool
}

// Ref is a late-binding handle to the connection a message arrived on.
// Workflows hold a Ref instead of a Conn because the connection may close
// before they finish.
type Ref struct {
	c Conn
}

// NewRef wraps c. A nil c yields a Ref that never resolves.
func NewRef(c Conn) Ref {
	return Ref{c: c}
}

// Resolve returns the connection if it is still open.
func (r Ref) Resolve() (Conn, bool) {
	if r.c == nil || r.c.Closed() {
		return nil, false
	}
	return r.c, true
}

// ID returns the connection id even when the connection is gone, for logging.
func (r Ref) ID() string {
	if r.c == nil {
		return ""
	}
	return r.c.ID()
}
