package model

import "time"

// Session is the in-memory association between a live connection and an
// optional authenticated user. Only the registry creates and mutates these;
// everyone else receives copies.
type Session struct {
	ConnID      string
	RemoteAddr  string
	UserID      string // empty = anonymous
	ConnectedAt time.Time
	LoginAt     time.Time
}

// LoggedIn reports whether the session is bound to a user.
func (s Session) LoggedIn() bool {
	return s.UserID != ""
}
