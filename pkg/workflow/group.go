package workflow

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/NicolasHaas/gochat/pkg/datastore"
	"github.com/NicolasHaas/gochat/pkg/merr"
	"github.com/NicolasHaas/gochat/pkg/model"
	pb "github.com/NicolasHaas/gochat/pkg/protocol/pb"
	"github.com/NicolasHaas/gochat/pkg/service"
)

const (
	msgGroupNoPermission = "you have no permission to change the group"
	msgGroupNotFound     = "group does not exist"
	msgGroupInvalid      = "invalid group information"
	msgGroupFailed       = "group could not be updated"
)

// UpdateGroupMessageRequestProcessor renames a group or changes its
// description, then tells the other members.
type UpdateGroupMessageRequestProcessor struct {
	Store    datastore.DataProviderFactory
	Groups   service.GroupService
	Presence Presence
}

func (p *UpdateGroupMessageRequestProcessor) Process(ctx context.Context, u Unit[pb.UpdateGroupMessageRequest]) error {
	msg := u.Message
	fail := func(text string) {
		reply(ctx, u.Conn, &pb.ControlMessage{UpdateGroupMessage: &pb.UpdateGroupMessage{
			Response: &pb.CommonResponse{State: false, Message: text},
			GroupID:  msg.GroupID,
		}})
	}

	update := model.Group{ID: msg.GroupID, Name: msg.Name, Description: msg.Description}
	if err := update.Validate(); err != nil || msg.GroupID == "" {
		fail(msgGroupInvalid)
		if err == nil {
			err = errors.New("empty group id")
		}
		return errors.Wrap(err, "workflow: update group")
	}

	// A connection may only act for the user it is logged in as.
	if u.UserID == "" || u.UserID != msg.UserID {
		fail(msgGroupNoPermission)
		return errors.Mark(errors.Newf("workflow: update group: session user %q acting as %q", u.UserID, msg.UserID), merr.ErrAuthorizationDenied)
	}
	allowed, err := p.Groups.IsGroupManager(ctx, u.UserID, msg.GroupID)
	if err != nil {
		fail(msgGroupFailed)
		return merr.Persistence(err, "workflow: update group: permission check")
	}
	if !allowed {
		fail(msgGroupNoPermission)
		return errors.Mark(errors.Newf("workflow: update group: %s may not edit %s", msg.UserID, msg.GroupID), merr.ErrAuthorizationDenied)
	}

	res := p.persist(ctx, update)
	if errors.Is(res.Err, merr.ErrNotFound) {
		fail(msgGroupNotFound)
		return res.Err
	}

	reply(ctx, u.Conn, &pb.ControlMessage{UpdateGroupMessage: &pb.UpdateGroupMessage{
		Response: &pb.CommonResponse{State: res.OK},
		GroupID:  msg.GroupID,
	}})
	if !res.OK {
		return res.Err
	}

	members, err := p.Groups.Members(ctx, msg.GroupID)
	if err != nil {
		slog.Warn("group members lookup failed, skipping notice", "group", msg.GroupID, "err", err)
		return nil
	}
	p.Presence.Fanout().Notify(ctx, lo.Without(members, msg.UserID), &pb.ControlMessage{
		UpdateGroupMessage: &pb.UpdateGroupMessage{GroupID: msg.GroupID},
	})
	return nil
}

// persist applies name and description in one transaction.
func (p *UpdateGroupMessageRequestProcessor) persist(ctx context.Context, update model.Group) merr.Result {
	tx, err := p.Store.Tx(ctx)
	if err != nil {
		return merr.Fail(err, "update group: begin")
	}
	defer func() { _ = tx.Rollback() }()

	group, err := tx.GetGroup(ctx, update.ID)
	if err != nil {
		return merr.Fail(err, "update group: load")
	}
	if group == nil {
		return merr.Result{Err: errors.Wrapf(merr.ErrNotFound, "update group %s", update.ID)}
	}
	group.Name = update.Name
	group.Description = update.Description
	if err := tx.UpdateGroup(ctx, group); err != nil {
		return merr.Fail(err, "update group: save")
	}
	if err := tx.Commit(); err != nil {
		return merr.Fail(err, "update group: commit")
	}
	return merr.Ok()
}
