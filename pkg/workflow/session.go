package workflow

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/NicolasHaas/gochat/pkg/merr"
	"github.com/NicolasHaas/gochat/pkg/metrics"
	"github.com/NicolasHaas/gochat/pkg/model"
	pb "github.com/NicolasHaas/gochat/pkg/protocol/pb"
	"github.com/NicolasHaas/gochat/pkg/service"
)

// Authenticator checks a user's password.
type Authenticator interface {
	Authenticate(ctx context.Context, userID, password string) (*model.User, error)
}

// LoginProcessor authenticates a connection and binds it to the user.
type LoginProcessor struct {
	Auth     Authenticator
	Presence Presence
	Metrics  *metrics.Metrics
}

func (p *LoginProcessor) Process(ctx context.Context, u Unit[pb.LoginRequest]) error {
	c, ok := u.Conn.Resolve()
	if !ok {
		return errors.Mark(errors.New("workflow: login: connection gone"), merr.ErrStaleConnection)
	}

	user, err := p.Auth.Authenticate(ctx, u.Message.UserID, u.Message.Password)
	if err != nil {
		if p.Metrics != nil {
			p.Metrics.FailedLogins.Add(1)
		}
		text := "login failed"
		if errors.Is(err, service.ErrInvalidCredentials) {
			text = err.Error()
		} else {
			slog.Error("login lookup failed", "user", u.Message.UserID, "err", err)
		}
		reply(ctx, u.Conn, &pb.ControlMessage{LoginResponse: &pb.LoginResponse{
			Response: pb.CommonResponse{State: false, Message: text},
		}})
		return errors.Wrap(err, "workflow: login")
	}

	reply(ctx, u.Conn, &pb.ControlMessage{LoginResponse: &pb.LoginResponse{
		Response: pb.CommonResponse{State: true},
		UserID:   user.ID,
		Username: user.Username,
	}})
	return p.Presence.ClientLogin(ctx, c, user.ID)
}

// LogoutProcessor returns the connection to anonymous.
type LogoutProcessor struct {
	Presence Presence
}

func (p *LogoutProcessor) Process(ctx context.Context, u Unit[pb.LogoutRequest]) error {
	c, ok := u.Conn.Resolve()
	if !ok {
		return errors.Mark(errors.New("workflow: logout: connection gone"), merr.ErrStaleConnection)
	}
	p.Presence.ClientLogout(ctx, c)
	reply(ctx, u.Conn, commonResponse(true, ""))
	return nil
}

// PingProcessor answers keepalives. A ping from a logged-in session also
// renews its presence, before the pong goes out.
type PingProcessor struct {
	Presence Presence
}

func (p *PingProcessor) Process(ctx context.Context, u Unit[pb.Ping]) error {
	if c, ok := u.Conn.Resolve(); ok && u.UserID != "" {
		p.Presence.Heartbeat(ctx, c)
	}
	reply(ctx, u.Conn, &pb.ControlMessage{Pong: &pb.Pong{Timestamp: u.Message.Timestamp}})
	return nil
}
