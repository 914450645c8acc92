// Package model defines the core domain types for GoChat.
package model

import (
	"errors"
	"fmt"
	"time"
)

const MaxUserIDLength = 32

var ErrUserIDEmpty = errors.New("user id must not be empty")
var ErrUserIDTooLong = fmt.Errorf("user id must not exceed %d characters", MaxUserIDLength)
var ErrUserIDInvalidChars = errors.New("user id must contain only alphanumeric characters, underscores, or hyphens")

// User represents a registered account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash []byte    `json:"-"`
	Salt         []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	LastLoginAt  time.Time `json:"last_login_at"`  // zero = never
	LastLogoutAt time.Time `json:"last_logout_at"` // zero = never
}

// ValidateUserID checks that a user id is 1-32 ASCII alphanumeric, underscore,
// or hyphen characters. Returns nil on success or a descriptive error.
func ValidateUserID(id string) error {
	if len(id) == 0 {
		return ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLength {
		return ErrUserIDTooLong
	}
	for _, r := range id {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' && r != '-' {
			return ErrUserIDInvalidChars
		}
	}
	return nil
}
