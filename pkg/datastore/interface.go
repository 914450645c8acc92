package datastore

import (
	"context"
	"time"

	"github.com/NicolasHaas/gochat/pkg/model"
)

// DataProviderFactory hands out stores. NonTx statements autocommit; a Tx
// store is one unit of work that must end in Commit or Rollback.
type DataProviderFactory interface {
	NonTx() DataStore
	Tx(context.Context) (DataStoreTx, error)
	Close() error
}

type DataStoreTx interface {
	DataStore
	Rollback() error
	Commit() error
}

// DataStore defines the persistence interface for all GoChat entities.
// Finders return (nil, nil) when the entity does not exist.
type DataStore interface {
	UserReadProvider
	UserWriteProvider

	FriendRequestReadProvider
	FriendRequestWriteProvider

	FriendRelationReadProvider
	FriendRelationWriteProvider

	ChatReadProvider
	ChatWriteProvider

	GroupReadProvider
	GroupWriteProvider
}

// Compile-time check: *ProviderFactory implements DataProviderFactory.
var _ DataProviderFactory = (*ProviderFactory)(nil)

type UserReadProvider interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
}

type UserWriteProvider interface {
	CreateUser(ctx context.Context, user *model.User) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
	TouchLogout(ctx context.Context, id string, at time.Time) error
}

type FriendRequestReadProvider interface {
	GetFriendRequest(ctx context.Context, id int64) (*model.FriendRequest, error)
	FindPendingFriendRequest(ctx context.Context, fromID, targetID string) (*model.FriendRequest, error)
}

type FriendRequestWriteProvider interface {
	CreateFriendRequest(ctx context.Context, req *model.FriendRequest) error
	// ResolveFriendRequest fails with merr.ErrAlreadyResolved unless req is still pending.
	ResolveFriendRequest(ctx context.Context, req *model.FriendRequest) error
}

type FriendRelationReadProvider interface {
	ListFriendIDs(ctx context.Context, userID string) ([]string, error)
	IsFriend(ctx context.Context, userID, friendID string) (bool, error)
	GetFriendRelation(ctx context.Context, userID, friendID string) (*model.FriendRelation, error)
}

type FriendRelationWriteProvider interface {
	CreateFriendRelation(ctx context.Context, rel *model.FriendRelation) error
}

type ChatReadProvider interface {
	ListChatPrivate(ctx context.Context, userA, userB string) ([]model.ChatPrivate, error)
}

type ChatWriteProvider interface {
	CreateChatPrivate(ctx context.Context, msg *model.ChatPrivate) error
}

type GroupReadProvider interface {
	GetGroup(ctx context.Context, id string) (*model.Group, error)
	GetGroupMember(ctx context.Context, groupID, userID string) (*model.GroupMember, error)
	ListGroupMemberIDs(ctx context.Context, groupID string) ([]string, error)
}

type GroupWriteProvider interface {
	CreateGroup(ctx context.Context, group *model.Group) error
	AddGroupMember(ctx context.Context, member *model.GroupMember) error
	UpdateGroup(ctx context.Context, group *model.Group) error
}
