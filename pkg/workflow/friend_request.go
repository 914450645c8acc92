package workflow

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/NicolasHaas/gochat/pkg/datastore"
	"github.com/NicolasHaas/gochat/pkg/merr"
	"github.com/NicolasHaas/gochat/pkg/model"
	pb "github.com/NicolasHaas/gochat/pkg/protocol/pb"
	"github.com/NicolasHaas/gochat/pkg/service"
)

const (
	msgRequestNotLoggedIn = "please log in first"
	msgRequestSelf        = "you cannot add yourself as a friend"
	msgRequestNoSuchUser  = "user does not exist"
	msgRequestPending     = "a friend request is already pending"
	msgRequestSent        = "friend request sent"
)

// FriendRequestProcessor stores a new pending friend request and forwards it
// to the target if they are online.
type FriendRequestProcessor struct {
	Store    datastore.DataProviderFactory
	Friends  service.FriendService
	Presence Presence
	Now      func() time.Time // defaults to time.Now
}

func (p *FriendRequestProcessor) Process(ctx context.Context, u Unit[pb.FriendRequestFromClient]) error {
	msg := u.Message
	fail := func(text string) {
		reply(ctx, u.Conn, &pb.ControlMessage{FriendRequestResponse: &pb.FriendRequestFromClientResponse{
			Response: pb.CommonResponse{State: false, Message: text},
		}})
	}

	if u.UserID == "" || u.UserID != msg.UserFromID {
		fail(msgRequestNotLoggedIn)
		return errors.Mark(errors.Newf("workflow: friend request: session %q sending as %q", u.UserID, msg.UserFromID), merr.ErrAuthorizationDenied)
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	req := &model.FriendRequest{
		UserFromID:   msg.UserFromID,
		UserTargetID: msg.UserTargetID,
		Group:        msg.Group,
		Remark:       msg.Remark,
		Message:      msg.Message,
		RequestTime:  pb.ParseTime(msg.RequestTime, now()),
	}
	if err := req.Validate(); err != nil {
		text := err.Error()
		if errors.Is(err, model.ErrFriendSelf) {
			text = msgRequestSelf
		}
		fail(text)
		return errors.Wrap(err, "workflow: friend request")
	}

	store := p.Store.NonTx()
	target, err := store.GetUser(ctx, req.UserTargetID)
	if err != nil {
		fail(msgRequestFailed)
		return merr.Persistence(err, "workflow: friend request: load target")
	}
	if target == nil {
		fail(msgRequestNoSuchUser)
		return errors.Wrapf(merr.ErrNotFound, "workflow: friend request: user %s", req.UserTargetID)
	}

	isFriend, err := p.Friends.IsFriend(ctx, req.UserFromID, req.UserTargetID)
	if err != nil {
		fail(msgRequestFailed)
		return merr.Persistence(err, "workflow: friend request: friendship check")
	}
	if isFriend {
		fail(msgAlreadyFriends)
		return errors.Wrap(merr.ErrAlreadyResolved, "workflow: friend request: already friends")
	}

	pending, err := store.FindPendingFriendRequest(ctx, req.UserFromID, req.UserTargetID)
	if err != nil {
		fail(msgRequestFailed)
		return merr.Persistence(err, "workflow: friend request: pending check")
	}
	if pending != nil {
		fail(msgRequestPending)
		return errors.Wrapf(merr.ErrAlreadyResolved, "workflow: friend request: %d pending", pending.ID)
	}

	if err := store.CreateFriendRequest(ctx, req); err != nil {
		fail(msgRequestFailed)
		return merr.Persistence(err, "workflow: friend request: create")
	}

	reply(ctx, u.Conn, &pb.ControlMessage{FriendRequestResponse: &pb.FriendRequestFromClientResponse{
		Response:  pb.CommonResponse{State: true, Message: msgRequestSent},
		RequestID: req.ID,
	}})
	p.Presence.Fanout().Notify(ctx, []string{req.UserTargetID}, &pb.ControlMessage{
		FriendRequestFromServer: &pb.FriendRequestFromServer{
			RequestID:   req.ID,
			UserFromID:  req.UserFromID,
			Message:     req.Message,
			RequestTime: pb.FormatTime(req.RequestTime),
		},
	})
	return nil
}
