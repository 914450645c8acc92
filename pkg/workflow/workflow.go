// Package workflow routes inbound control messages to typed processors.
//
// A processor runs on the reading goroutine of the connection the message
// arrived on, so messages from one connection are handled in order. It
// replies to its own connection synchronously and notifies everyone else
// through the registry's fanout.
package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/NicolasHaas/gochat/pkg/conn"
	"github.com/NicolasHaas/gochat/pkg/fanout"
	"github.com/NicolasHaas/gochat/pkg/metrics"
	"github.com/NicolasHaas/gochat/pkg/model"
	pb "github.com/NicolasHaas/gochat/pkg/protocol/pb"
)

const replyTimeout = 5 * time.Second

// Unit is one inbound message and the connection it arrived on.
// The connection may be closed by the time the processor looks at it;
// UserID is the session user captured when the message was dispatched and
// is what processors authorize against. Empty means anonymous.
type Unit[T any] struct {
	Conn    conn.Ref
	UserID  string
	Message *T
}

// Processor handles one message type. The returned error classifies the
// outcome for logs and metrics; replies have already been sent.
type Processor[T any] interface {
	Process(ctx context.Context, u Unit[T]) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc[T any] func(ctx context.Context, u Unit[T]) error

func (f ProcessorFunc[T]) Process(ctx context.Context, u Unit[T]) error { return f(ctx, u) }

// Presence is the part of the session registry processors use.
type Presence interface {
	GetClient(userID string) (conn.Conn, bool)
	ClientLogin(ctx context.Context, c conn.Conn, userID string) error
	ClientLogout(ctx context.Context, c conn.Conn)
	Heartbeat(ctx context.Context, c conn.Conn)
	Session(c conn.Conn) (model.Session, bool)
	Fanout() *fanout.Fanout
}

// Sessions resolves the session a connection is bound to.
type Sessions interface {
	Session(c conn.Conn) (model.Session, bool)
}

type handler func(ctx context.Context, ref conn.Ref, userID string, msg *pb.ControlMessage) error

// Dispatcher maps message types to processors.
type Dispatcher struct {
	handlers map[pb.MessageType]handler
	sessions Sessions
	metrics  *metrics.Metrics
}

// NewDispatcher creates an empty dispatcher. With nil sessions every unit
// is dispatched as anonymous.
func NewDispatcher(m *metrics.Metrics, sessions Sessions) *Dispatcher {
	if m == nil {
		m = metrics.New()
	}
	return &Dispatcher{
		handlers: make(map[pb.MessageType]handler),
		sessions: sessions,
		metrics:  m,
	}
}

// Register binds p to messages of type t. extract pulls the typed payload
// out of the envelope. Registering a type twice replaces the earlier processor.
func Register[T any](d *Dispatcher, t pb.MessageType, extract func(*pb.ControlMessage) *T, p Processor[T]) {
	d.handlers[t] = func(ctx context.Context, ref conn.Ref, userID string, msg *pb.ControlMessage) error {
		payload := extract(msg)
		if payload == nil {
			return errors.Newf("workflow: %s message without payload", t)
		}
		return p.Process(ctx, Unit[T]{Conn: ref, UserID: userID, Message: payload})
	}
}

// Dispatch routes msg from c to its processor. Unknown types are answered
// with a failed CommonResponse.
func (d *Dispatcher) Dispatch(ctx context.Context, c conn.Conn, msg *pb.ControlMessage) error {
	ref := conn.NewRef(c)
	t := msg.Type()
	h, ok := d.handlers[t]
	if !ok {
		slog.Warn("unhandled message type", "type", t, "conn", ref.ID())
		reply(ctx, ref, &pb.ControlMessage{
			CommonResponse: &pb.CommonResponse{State: false, Message: "unsupported message type"},
		})
		d.metrics.WorkflowResult(t.String(), false)
		return errors.Newf("workflow: unhandled message type %s", t)
	}

	var userID string
	if d.sessions != nil {
		s, _ := d.sessions.Session(c)
		userID = s.UserID
	}

	err := h(ctx, ref, userID, msg)
	d.metrics.WorkflowResult(t.String(), err == nil)
	if err != nil {
		slog.Debug("workflow finished with error", "type", t, "conn", ref.ID(), "err", err)
	}
	return err
}

// reply writes msg to the originating connection if it is still open.
// A stale connection or failed write is logged, never returned.
func reply(ctx context.Context, ref conn.Ref, msg *pb.ControlMessage) {
	c, ok := ref.Resolve()
	if !ok {
		slog.Debug("reply skipped, connection gone", "conn", ref.ID(), "type", msg.Type())
		return
	}
	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()
	if err := c.Send(ctx, msg); err != nil {
		slog.Debug("reply failed", "conn", c.ID(), "type", msg.Type(), "err", err)
	}
}

func commonResponse(state bool, message string) *pb.ControlMessage {
	return &pb.ControlMessage{CommonResponse: &pb.CommonResponse{State: state, Message: message}}
}
