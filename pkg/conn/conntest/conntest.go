// Package conntest provides an in-memory conn.Conn that records what it is sent.
package conntest

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/NicolasHaas/gochat/pkg/conn"
	pb "github.com/NicolasHaas/gochat/pkg/protocol/pb"
)

var ErrClosed = errors.New("conntest: connection closed")

var _ conn.Conn = (*Conn)(nil)

// Conn records every message passed to Send.
type Conn struct {
	id string

	mu      sync.Mutex
	msgs    []*pb.ControlMessage
	closed  bool
	sendErr error
}

// New returns an open Conn. An empty id gets a random one.
func New(id string) *Conn {
	if id == "" {
		id = uuid.NewString()
	}
	return &Conn{id: id}
}

func (c *Conn) ID() string         { return c.id }
func (c *Conn) RemoteAddr() string { return "pipe:" + c.id }

func (c *Conn) Send(ctx context.Context, msg *pb.ControlMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// FailSends makes every later Send return err. A nil err restores delivery.
func (c *Conn) FailSends(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

// Messages returns a copy of everything received so far.
func (c *Conn) Messages() []*pb.ControlMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*pb.ControlMessage, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// OfType returns the received messages carrying the given payload type.
func (c *Conn) OfType(t pb.MessageType) []*pb.ControlMessage {
	var out []*pb.ControlMessage
	for _, m := range c.Messages() {
		if m.Type() == t {
			out = append(out, m)
		}
	}
	return out
}

// Reset drops the recorded messages.
func (c *Conn) Reset() {
	c.mu.Lock()
	c.msgs = nil
	c.mu.Unlock()
}
