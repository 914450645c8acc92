// Package service exposes the collaborators the presence core consults:
// friendship lookups, group authorization, credential checks and offline
// bookkeeping.
package service

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/NicolasHaas/gochat/pkg/datastore"
	"github.com/NicolasHaas/gochat/pkg/model"
	"github.com/NicolasHaas/gochat/pkg/rbac"
)

type FriendService interface {
	FriendIDs(ctx context.Context, userID string) ([]string, error)
	IsFriend(ctx context.Context, userID, friendID string) (bool, error)
}

type GroupService interface {
	// IsGroupManager reports whether userID may edit groupID (owner or manager).
	IsGroupManager(ctx context.Context, userID, groupID string) (bool, error)
	Members(ctx context.Context, groupID string) ([]string, error)
}

// PresenceService is told when a logged-in session goes offline.
type PresenceService interface {
	OnUserOffline(ctx context.Context, s model.Session) error
}

// OnlineRecorder is optionally implemented by a PresenceService that also
// wants to hear about logins.
type OnlineRecorder interface {
	OnUserOnline(ctx context.Context, s model.Session) error
}

// Heartbeater is optionally implemented by a PresenceService that keeps
// per-session state alive while the client keeps pinging.
type Heartbeater interface {
	OnUserHeartbeat(ctx context.Context, s model.Session) error
}

// Friends answers friendship questions from the datastore.
type Friends struct {
	store datastore.DataProviderFactory
}

func NewFriends(store datastore.DataProviderFactory) *Friends {
	return &Friends{store: store}
}

func (f *Friends) FriendIDs(ctx context.Context, userID string) ([]string, error) {
	return f.store.NonTx().ListFriendIDs(ctx, userID)
}

func (f *Friends) IsFriend(ctx context.Context, userID, friendID string) (bool, error) {
	return f.store.NonTx().IsFriend(ctx, userID, friendID)
}

// Groups answers group membership and permission questions from the datastore.
type Groups struct {
	store datastore.DataProviderFactory
}

func NewGroups(store datastore.DataProviderFactory) *Groups {
	return &Groups{store: store}
}

func (g *Groups) IsGroupManager(ctx context.Context, userID, groupID string) (bool, error) {
	member, err := g.store.NonTx().GetGroupMember(ctx, groupID, userID)
	if err != nil {
		return false, errors.Wrap(err, "service: group manager check")
	}
	if member == nil {
		return false, nil
	}
	return rbac.HasPermission(member.Role, model.PermEditGroup), nil
}

func (g *Groups) Members(ctx context.Context, groupID string) ([]string, error) {
	return g.store.NonTx().ListGroupMemberIDs(ctx, groupID)
}

// MultiPresence fans an offline event out to several presence services.
// Every service is called even if an earlier one fails.
type MultiPresence []PresenceService

func (m MultiPresence) OnUserOffline(ctx context.Context, s model.Session) error {
	var errs error
	for _, p := range m {
		if err := p.OnUserOffline(ctx, s); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	return errs
}

func (m MultiPresence) OnUserOnline(ctx context.Context, s model.Session) error {
	var errs error
	for _, p := range m {
		r, ok := p.(OnlineRecorder)
		if !ok {
			continue
		}
		if err := r.OnUserOnline(ctx, s); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	return errs
}

func (m MultiPresence) OnUserHeartbeat(ctx context.Context, s model.Session) error {
	var errs error
	for _, p := range m {
		hb, ok := p.(Heartbeater)
		if !ok {
			continue
		}
		if err := hb.OnUserHeartbeat(ctx, s); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	return errs
}
