package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/NicolasHaas/gochat/pkg/conn"
	"github.com/NicolasHaas/gochat/pkg/datastore"
	"github.com/NicolasHaas/gochat/pkg/merr"
	"github.com/NicolasHaas/gochat/pkg/model"
	pb "github.com/NicolasHaas/gochat/pkg/protocol/pb"
	"github.com/NicolasHaas/gochat/pkg/service"
)

// DefaultSeedDelay lets the NewFriend notices arrive before the greeting.
const DefaultSeedDelay = 150 * time.Millisecond

const (
	msgRequestNotFound   = "friend request does not exist"
	msgRequestHandled    = "friend request has already been handled"
	msgRequestNotYours   = "you cannot answer this friend request"
	msgRequestFailed     = "friend request could not be processed"
	msgAlreadyFriends    = "you are already friends"
	msgFriendRespHandled = "friend request handled"
)

// FriendResponseProcessor resolves a pending friend request. On an accepted
// request between strangers it creates the relation pair and the greeting
// chat message and introduces the two users to each other.
type FriendResponseProcessor struct {
	Store     datastore.DataProviderFactory
	Friends   service.FriendService
	Presence  Presence
	SeedDelay time.Duration
	Now       func() time.Time // defaults to time.Now
}

func (p *FriendResponseProcessor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *FriendResponseProcessor) Process(ctx context.Context, u Unit[pb.FriendResponseFromClient]) error {
	msg := u.Message

	req, err := p.Store.NonTx().GetFriendRequest(ctx, msg.RequestID)
	if err != nil {
		reply(ctx, u.Conn, commonResponse(false, msgRequestFailed))
		return merr.Persistence(err, "workflow: friend response: load request")
	}
	if req == nil {
		reply(ctx, u.Conn, commonResponse(false, msgRequestNotFound))
		return errors.Wrapf(merr.ErrNotFound, "workflow: friend response: request %d", msg.RequestID)
	}
	if u.UserID == "" || u.UserID != req.UserTargetID {
		reply(ctx, u.Conn, commonResponse(false, msgRequestNotYours))
		return errors.Mark(errors.Newf("workflow: friend response: %q answering request for %q", u.UserID, req.UserTargetID), merr.ErrAuthorizationDenied)
	}
	if req.IsSolved {
		reply(ctx, u.Conn, commonResponse(false, msgRequestHandled))
		return errors.Wrapf(merr.ErrAlreadyResolved, "workflow: friend response: request %d", req.ID)
	}

	isFriend, err := p.Friends.IsFriend(ctx, req.UserFromID, req.UserTargetID)
	if err != nil {
		reply(ctx, u.Conn, commonResponse(false, msgRequestFailed))
		return merr.Persistence(err, "workflow: friend response: friendship check")
	}

	solvedAt := pb.ParseTime(msg.ResponseTime, p.now())
	req.Solve(msg.Accept, solvedAt)
	source, sourceOnline := p.Presence.GetClient(req.UserFromID)

	befriend := msg.Accept && !isFriend
	var (
		pair [2]model.FriendRelation
		seed *model.ChatPrivate
	)
	if befriend {
		pair[0], pair[1] = model.RelationPair(req, msg.Group, msg.Remark, solvedAt)
		seed = &model.ChatPrivate{
			UserFromID:   req.UserTargetID,
			UserTargetID: req.UserFromID,
			Message:      model.FriendGreeting,
			Time:         p.now().UTC(),
		}
	}

	res := p.persist(ctx, req, pair[:], seed, befriend)
	if errors.Is(res.Err, merr.ErrAlreadyResolved) {
		// Another response to the same request committed first.
		reply(ctx, u.Conn, commonResponse(false, msgRequestHandled))
		return res.Err
	}
	if !res.OK {
		slog.Warn("friend response not fully persisted", "request", req.ID, "err", res.Err)
	}

	fan := p.Presence.Fanout()
	if befriend && res.OK {
		relationTime := pb.FormatTime(solvedAt)
		chat := &pb.ControlMessage{FriendChat: &pb.FriendChatMessage{
			ID:           seed.ID,
			UserFromID:   seed.UserFromID,
			UserTargetID: seed.UserTargetID,
			Text:         seed.Message,
			Time:         pb.FormatTime(seed.Time),
		}}

		if sourceOnline {
			fan.SendTo(ctx, source, newFriendMessage(pair[0], relationTime))
			fan.SendAfter(ctx, p.seedDelay(), conn.NewRef(source), chat)
		}
		if _, live := u.Conn.Resolve(); live {
			reply(ctx, u.Conn, newFriendMessage(pair[1], relationTime))
			fan.SendAfter(ctx, p.seedDelay(), u.Conn, chat)
		}
	}

	text := msgFriendRespHandled
	if isFriend {
		text = msgAlreadyFriends
	}
	reply(ctx, u.Conn, &pb.ControlMessage{FriendResponseResponse: &pb.FriendResponseFromClientResponse{
		Response: pb.CommonResponse{State: true, Message: text},
	}})

	if sourceOnline {
		fan.SendTo(ctx, source, &pb.ControlMessage{FriendResponseFromServer: &pb.FriendResponseFromServer{
			Accept:       msg.Accept,
			RequestID:    req.ID,
			ResponseTime: pb.FormatTime(solvedAt),
		}})
	}
	return res.Err
}

func (p *FriendResponseProcessor) seedDelay() time.Duration {
	if p.SeedDelay > 0 {
		return p.SeedDelay
	}
	return DefaultSeedDelay
}

// persist saves the solved request together with the relation pair and seed
// message in one transaction. If that fails nothing of it is kept, and the
// solved state alone is saved in a second transaction so a replay of the
// same response still hits the already-handled guard. A request solved by
// someone else in the meantime yields merr.ErrAlreadyResolved and nothing
// is written.
func (p *FriendResponseProcessor) persist(ctx context.Context, req *model.FriendRequest, pair []model.FriendRelation, seed *model.ChatPrivate, befriend bool) merr.Result {
	err := p.inTx(ctx, func(tx datastore.DataStoreTx) error {
		if err := tx.ResolveFriendRequest(ctx, req); err != nil {
			return errors.Wrap(err, "resolve request")
		}
		if !befriend {
			return nil
		}
		for i := range pair {
			if err := tx.CreateFriendRelation(ctx, &pair[i]); err != nil {
				return errors.Wrap(err, "create relation")
			}
		}
		if err := tx.CreateChatPrivate(ctx, seed); err != nil {
			return errors.Wrap(err, "create seed message")
		}
		return nil
	})
	if err == nil {
		return merr.Ok()
	}
	if errors.Is(err, merr.ErrAlreadyResolved) {
		return merr.Result{Err: errors.Wrap(err, "workflow: friend response")}
	}
	if !befriend {
		return merr.Fail(err, "friend response")
	}

	retryErr := p.inTx(ctx, func(tx datastore.DataStoreTx) error {
		return tx.ResolveFriendRequest(ctx, req)
	})
	if errors.Is(retryErr, merr.ErrAlreadyResolved) {
		return merr.Result{Err: errors.Wrap(retryErr, "workflow: friend response")}
	}
	if retryErr != nil {
		err = errors.CombineErrors(err, errors.Wrap(retryErr, "save solved state"))
	}
	return merr.Fail(err, "friend response")
}

func (p *FriendResponseProcessor) inTx(ctx context.Context, fn func(tx datastore.DataStoreTx) error) error {
	tx, err := p.Store.Tx(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "commit")
	}
	return nil
}

// newFriendMessage renders rel from the point of view of rel.User1ID.
func newFriendMessage(rel model.FriendRelation, relationTime string) *pb.ControlMessage {
	return &pb.ControlMessage{NewFriend: &pb.NewFriendMessage{
		UserID:       rel.User1ID,
		FriendID:     rel.User2ID,
		Grouping:     rel.Grouping,
		Remark:       rel.Remark,
		RelationTime: relationTime,
	}}
}
