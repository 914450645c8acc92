package model

import (
	"errors"
	"time"
	"unicode/utf8"
)

const (
	MaxRemarkLength   = 32
	MaxGroupingLength = 32
	MaxRequestMessage = 128

	// DefaultGrouping is used when a client does not pick a friend grouping.
	DefaultGrouping = "Friends"
)

var ErrFriendSelf = errors.New("cannot send a friend request to yourself")
var ErrRemarkTooLong = errors.New("remark too long")
var ErrGroupingTooLong = errors.New("grouping too long")
var ErrRequestMessageTooLong = errors.New("request message too long")

// FriendRequest is a pending or solved invitation from UserFromID to UserTargetID.
// Group and Remark describe how the requester files the target once accepted.
type FriendRequest struct {
	ID           int64     `json:"id"`
	UserFromID   string    `json:"user_from_id"`
	UserTargetID string    `json:"user_target_id"`
	Group        string    `json:"group"`
	Remark       string    `json:"remark"`
	Message      string    `json:"message"`
	RequestTime  time.Time `json:"request_time"`
	IsSolved     bool      `json:"is_solved"`
	IsAccept     bool      `json:"is_accept"`
	SolveTime    time.Time `json:"solve_time"` // zero while pending
}

// Validate checks a request before it is stored.
func (r *FriendRequest) Validate() error {
	if err := ValidateUserID(r.UserFromID); err != nil {
		return err
	}
	if err := ValidateUserID(r.UserTargetID); err != nil {
		return err
	}
	if r.UserFromID == r.UserTargetID {
		return ErrFriendSelf
	}
	if utf8.RuneCountInString(r.Remark) > MaxRemarkLength {
		return ErrRemarkTooLong
	}
	if utf8.RuneCountInString(r.Group) > MaxGroupingLength {
		return ErrGroupingTooLong
	}
	if utf8.RuneCountInString(r.Message) > MaxRequestMessage {
		return ErrRequestMessageTooLong
	}
	return nil
}

// Solve moves the request into its terminal state. It does not persist anything.
func (r *FriendRequest) Solve(accept bool, at time.Time) {
	r.IsSolved = true
	r.IsAccept = accept
	r.SolveTime = at
}

// FriendRelation is one direction of a friendship: User1ID lists User2ID under
// Grouping with Remark. Friendships are always stored as a pair of rows.
type FriendRelation struct {
	ID        int64     `json:"id"`
	User1ID   string    `json:"user1_id"`
	User2ID   string    `json:"user2_id"`
	Grouping  string    `json:"grouping"`
	Remark    string    `json:"remark"`
	GroupTime time.Time `json:"group_time"`
}

// RelationPair builds both directions of a new friendship from an accepted
// request. The requester keeps the request's grouping and remark, the target
// uses the ones supplied with its answer.
func RelationPair(req *FriendRequest, targetGroup, targetRemark string, at time.Time) (source, target FriendRelation) {
	source = FriendRelation{
		User1ID:   req.UserFromID,
		User2ID:   req.UserTargetID,
		Grouping:  groupingOrDefault(req.Group),
		Remark:    req.Remark,
		GroupTime: at,
	}
	target = FriendRelation{
		User1ID:   req.UserTargetID,
		User2ID:   req.UserFromID,
		Grouping:  groupingOrDefault(targetGroup),
		Remark:    targetRemark,
		GroupTime: at,
	}
	return source, target
}

func groupingOrDefault(g string) string {
	if g == "" {
		return DefaultGrouping
	}
	return g
}
