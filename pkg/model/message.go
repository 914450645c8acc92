package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const MessageMaxBodyLength = 2000

// FriendGreeting is the seed message stored when two users become friends.
const FriendGreeting = "We are friends now, let's start chatting!"

var ErrMessageBodyTooLong = fmt.Errorf("message body exceeds %d characters", MessageMaxBodyLength)
var ErrMessageBodyEmpty = errors.New("message body cannot be empty")

// ChatPrivate is a direct message between two users.
type ChatPrivate struct {
	ID           int64     `json:"id"`
	UserFromID   string    `json:"user_from_id"`
	UserTargetID string    `json:"user_target_id"`
	Message      string    `json:"message"`
	Time         time.Time `json:"time"`
	IsRetracted  bool      `json:"is_retracted"`
	RetractTime  time.Time `json:"retract_time"`
}

func (m *ChatPrivate) Validate() error {
	if strings.TrimSpace(m.Message) == "" {
		return ErrMessageBodyEmpty
	} else if utf8.RuneCountInString(m.Message) > MessageMaxBodyLength {
		return ErrMessageBodyTooLong
	}

	return nil
}
