// Package client implements the GoChat client networking.
package client

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/NicolasHaas/gochat/pkg/protocol"
	pb "github.com/NicolasHaas/gochat/pkg/protocol/pb"
)

// EventHandler is a callback for incoming control events.
type EventHandler func(msg *pb.ControlMessage)

// Options configures Dial.
type Options struct {
	// TLS dials with TLS 1.3 and accepts self-signed certificates.
	TLS bool
}

// ControlClient manages the TCP control plane connection.
type ControlClient struct {
	conn    net.Conn
	mu      sync.Mutex
	handler EventHandler
	done    chan struct{}
}

// Dial connects to the server's control plane.
func Dial(ctx context.Context, addr string, opts Options) (*ControlClient, error) {
	var (
		conn net.Conn
		err  error
	)
	if opts.TLS {
		dialer := &tls.Dialer{Config: &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // self-signed server certs (TOFU model)
			MinVersion:         tls.VersionTLS13,
		}}
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, errors.Wrap(err, "client: connect control")
	}
	return NewControlClient(conn), nil
}

// NewControlClient wraps an established connection.
func NewControlClient(conn net.Conn) *ControlClient {
	return &ControlClient{
		conn: conn,
		done: make(chan struct{}),
	}
}

// SetEventHandler sets the callback for incoming control messages.
// It must be called before StartReceiving.
func (c *ControlClient) SetEventHandler(handler EventHandler) {
	c.handler = handler
}

// Send sends a control message to the server.
func (c *ControlClient) Send(msg *pb.ControlMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return protocol.WriteControlMessage(c.conn, msg)
}

// Login sends a login request and waits for its response. It must be called
// before StartReceiving; messages that arrive first are handed to the event
// handler.
func (c *ControlClient) Login(userID, password string) (*pb.LoginResponse, error) {
	if err := c.Send(&pb.ControlMessage{
		LoginRequest: &pb.LoginRequest{UserID: userID, Password: password},
	}); err != nil {
		return nil, errors.Wrap(err, "client: send login")
	}

	for {
		msg, err := protocol.ReadControlMessage(c.conn)
		if err != nil {
			return nil, errors.Wrap(err, "client: read login response")
		}
		if msg.LoginResponse == nil {
			if c.handler != nil {
				c.handler(msg)
			}
			continue
		}
		if !msg.LoginResponse.Response.State {
			return msg.LoginResponse, errors.Newf("login failed: %s", msg.LoginResponse.Response.Message)
		}
		return msg.LoginResponse, nil
	}
}

// RequestFriend asks target to become a friend of from.
func (c *ControlClient) RequestFriend(from, target, message string) error {
	return c.Send(&pb.ControlMessage{FriendRequestFromClient: &pb.FriendRequestFromClient{
		UserFromID:   from,
		UserTargetID: target,
		Message:      message,
	}})
}

// AnswerFriend accepts or rejects a pending friend request.
func (c *ControlClient) AnswerFriend(requestID int64, accept bool) error {
	return c.Send(&pb.ControlMessage{FriendResponseFromClient: &pb.FriendResponseFromClient{
		RequestID: requestID,
		Accept:    accept,
	}})
}

// UpdateGroup renames a group and replaces its description.
func (c *ControlClient) UpdateGroup(userID, groupID, name, description string) error {
	return c.Send(&pb.ControlMessage{UpdateGroupMessageRequest: &pb.UpdateGroupMessageRequest{
		UserID:      userID,
		GroupID:     groupID,
		Name:        name,
		Description: description,
	}})
}

// StartReceiving starts a goroutine that reads incoming control messages
// and dispatches them to the event handler.
func (c *ControlClient) StartReceiving() {
	go func() {
		defer close(c.done)
		for {
			msg, err := protocol.ReadControlMessage(c.conn)
			if err != nil {
				if errors.IsAny(err, io.EOF, net.ErrClosed) {
					slog.Debug("control connection closed")
					return
				}
				slog.Error("control read error", "err", err)
				return
			}
			if c.handler != nil {
				c.handler(msg)
			}
		}
	}()
}

// Close closes the control connection.
func (c *ControlClient) Close() error {
	return c.conn.Close()
}

// Done returns a channel that's closed when the connection is lost.
func (c *ControlClient) Done() <-chan struct{} {
	return c.done
}
