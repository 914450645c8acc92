package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxGroupNameLength = 64
	MaxGroupDescLength = 256
)

var ErrGroupNameEmpty = errors.New("group name must not be empty")
var ErrGroupNameTooLong = errors.New("group name too long")
var ErrGroupDescTooLong = errors.New("group description too long")
var ErrInvalidGroupRole = errors.New("invalid group role: must be member (0), manager (1), or owner (2)")

// GroupRole represents a member's permission level inside one group.
type GroupRole int

const (
	GroupRoleMember  GroupRole = iota // Can chat in the group
	GroupRoleManager                  // Can edit group info
	GroupRoleOwner                    // Full control over the group
)

func (r GroupRole) String() string {
	switch r {
	case GroupRoleMember:
		return "member"
	case GroupRoleManager:
		return "manager"
	case GroupRoleOwner:
		return "owner"
	default:
		return "unknown"
	}
}

// Valid returns true if the role is a recognised value.
func (r GroupRole) Valid() bool {
	return r >= GroupRoleMember && r <= GroupRoleOwner
}

// GroupPermission is an action checked against a member's group role.
type GroupPermission int

const (
	PermEditGroup GroupPermission = iota
)

// Group is a chat group. Name and Description are the mutable fields.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks the mutable fields of a group.
func (g *Group) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrGroupNameEmpty
	} else if utf8.RuneCountInString(g.Name) > MaxGroupNameLength {
		return ErrGroupNameTooLong
	}
	if utf8.RuneCountInString(g.Description) > MaxGroupDescLength {
		return ErrGroupDescTooLong
	}
	return nil
}

// GroupMember links a user to a group with a role.
type GroupMember struct {
	GroupID  string    `json:"group_id"`
	UserID   string    `json:"user_id"`
	Role     GroupRole `json:"role"`
	JoinTime time.Time `json:"join_time"`
}
