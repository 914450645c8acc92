package model

import (
	"strings"
	"testing"
	"time"
)

func TestValidateUserID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid simple", "alice", nil},
		{"valid with numbers", "user123", nil},
		{"valid with underscore", "my_user", nil},
		{"valid with hyphen", "my-user", nil},
		{"valid max length", strings.Repeat("a", MaxUserIDLength), nil},
		{"empty", "", ErrUserIDEmpty},
		{"too long", strings.Repeat("a", MaxUserIDLength+1), ErrUserIDTooLong},
		{"contains space", "has space", ErrUserIDInvalidChars},
		{"contains dot", "user.name", ErrUserIDInvalidChars},
		{"newline", "user\nname", ErrUserIDInvalidChars},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUserID(tt.input)
			if err != tt.wantErr {
				t.Errorf("ValidateUserID(%q) = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestGroupRoleValid(t *testing.T) {
	tests := []struct {
		name string
		role GroupRole
		want bool
	}{
		{"member", GroupRoleMember, true},
		{"manager", GroupRoleManager, true},
		{"owner", GroupRoleOwner, true},
		{"negative", GroupRole(-1), false},
		{"three", GroupRole(3), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.role.Valid(); got != tt.want {
				t.Errorf("GroupRole(%d).Valid() = %v, want %v", tt.role, got, tt.want)
			}
		})
	}
}

func TestGroupValidate(t *testing.T) {
	tests := []struct {
		name    string
		group   Group
		wantErr error
	}{
		{"ok", Group{Name: "gophers", Description: "talk"}, nil},
		{"empty name", Group{Name: "  "}, ErrGroupNameEmpty},
		{"long name", Group{Name: strings.Repeat("n", MaxGroupNameLength+1)}, ErrGroupNameTooLong},
		{"long desc", Group{Name: "g", Description: strings.Repeat("d", MaxGroupDescLength+1)}, ErrGroupDescTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.group.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFriendRequestValidate(t *testing.T) {
	req := FriendRequest{UserFromID: "u1", UserTargetID: "u1"}
	if err := req.Validate(); err != ErrFriendSelf {
		t.Fatalf("Validate() = %v, want %v", err, ErrFriendSelf)
	}
	req.UserTargetID = "u2"
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	req.Remark = strings.Repeat("r", MaxRemarkLength+1)
	if err := req.Validate(); err != ErrRemarkTooLong {
		t.Fatalf("Validate() = %v, want %v", err, ErrRemarkTooLong)
	}
}

func TestRelationPair(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	req := &FriendRequest{UserFromID: "u1", UserTargetID: "u2", Group: "work", Remark: "bob"}

	src, dst := RelationPair(req, "", "alice", at)

	if src.User1ID != "u1" || src.User2ID != "u2" || src.Grouping != "work" || src.Remark != "bob" {
		t.Errorf("source relation = %+v", src)
	}
	if dst.User1ID != "u2" || dst.User2ID != "u1" || dst.Grouping != DefaultGrouping || dst.Remark != "alice" {
		t.Errorf("target relation = %+v", dst)
	}
	if !src.GroupTime.Equal(at) || !dst.GroupTime.Equal(at) {
		t.Errorf("group time not propagated")
	}
}

func TestSessionLoggedIn(t *testing.T) {
	if (Session{}).LoggedIn() {
		t.Error("anonymous session reported logged in")
	}
	if !(Session{UserID: "u1"}).LoggedIn() {
		t.Error("bound session reported anonymous")
	}
}
