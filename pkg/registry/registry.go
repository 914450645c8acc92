// Package registry tracks live connections and which user each one is logged in as.
//
// The registry is the single in-process authority on presence. Every public
// operation follows the same shape: lock, copy or mutate in-memory state,
// unlock, then do I/O (sends, datastore and service calls) with the copy.
package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/NicolasHaas/gochat/pkg/conn"
	"github.com/NicolasHaas/gochat/pkg/fanout"
	"github.com/NicolasHaas/gochat/pkg/metrics"
	"github.com/NicolasHaas/gochat/pkg/model"
	pb "github.com/NicolasHaas/gochat/pkg/protocol/pb"
	"github.com/NicolasHaas/gochat/pkg/service"
)

// DisplacedMessage is sent to a session evicted by a login elsewhere.
const DisplacedMessage = "your account was logged in elsewhere"

const displaceTimeout = 5 * time.Second

type Config struct {
	Friends  service.FriendService
	Presence service.PresenceService // optional
	Metrics  *metrics.Metrics        // optional
	Fanout   fanout.Options
}

type entry struct {
	conn    conn.Conn
	session model.Session

	// logoutDone is non-nil while a logout of this session is in flight and
	// is closed when it finishes.
	logoutDone chan struct{}
}

// Registry maps connections to sessions.
type Registry struct {
	friends  service.FriendService
	presence service.PresenceService
	metrics  *metrics.Metrics
	fan      *fanout.Fanout
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*entry // conn id -> entry
	byUser  map[string]string // user id -> conn id
}

// New creates a registry and the fanout that resolves recipients through it.
func New(cfg Config) (*Registry, error) {
	if cfg.Friends == nil {
		return nil, errors.New("registry: friend service is required")
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.New()
	}
	r := &Registry{
		friends:  cfg.Friends,
		presence: cfg.Presence,
		metrics:  m,
		now:      time.Now,
		entries:  make(map[string]*entry),
		byUser:   make(map[string]string),
	}
	fan, err := fanout.New(r, m, cfg.Fanout)
	if err != nil {
		return nil, errors.Wrap(err, "registry: create fanout")
	}
	r.fan = fan
	return r, nil
}

// Fanout returns the notification fanout bound to this registry.
func (r *Registry) Fanout() *fanout.Fanout {
	return r.fan
}

// Close waits for pending notifications and stops the fanout.
func (r *Registry) Close() {
	r.fan.Close()
}

// AddClient registers c as an anonymous session. Adding a known connection is a no-op.
func (r *Registry) AddClient(c conn.Conn) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[c.ID()]; ok {
		return
	}
	r.addLocked(c)
}

func (r *Registry) addLocked(c conn.Conn) *entry {
	e := &entry{
		conn: c,
		session: model.Session{
			ConnID:      c.ID(),
			RemoteAddr:  c.RemoteAddr(),
			ConnectedAt: r.now(),
		},
	}
	r.entries[c.ID()] = e
	r.updateGaugesLocked()
	return e
}

func (r *Registry) updateGaugesLocked() {
	r.metrics.ActiveSessions.Store(int64(len(r.entries)))
	r.metrics.OnlineUsers.Store(int64(len(r.byUser)))
}

// RemoveClient logs c out and forgets it. Unknown and nil connections are tolerated.
func (r *Registry) RemoveClient(ctx context.Context, c conn.Conn) {
	if c == nil {
		return
	}
	if _, wait := r.logout(ctx, c, false); wait != nil {
		_ = waitDone(ctx, wait)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[c.ID()]; ok && e.conn == c {
		delete(r.entries, c.ID())
		if r.byUser[e.session.UserID] == c.ID() {
			delete(r.byUser, e.session.UserID)
		}
	}
	r.updateGaugesLocked()
}

// ClientLogin binds c to userID. A session already logged in as userID on
// another connection is logged out and sent a LogoutCommand before c is
// marked logged in. Online friends are then told userID came online.
func (r *Registry) ClientLogin(ctx context.Context, c conn.Conn, userID string) error {
	if c == nil {
		return errors.New("registry: login on nil connection")
	}
	if userID == "" {
		return errors.New("registry: login with empty user id")
	}

	var sess model.Session
	for {
		r.mu.Lock()
		e, ok := r.entries[c.ID()]
		if !ok {
			e = r.addLocked(c)
		}

		if done := e.logoutDone; done != nil {
			r.mu.Unlock()
			if err := waitDone(ctx, done); err != nil {
				return err
			}
			continue
		}
		if e.session.UserID == userID {
			r.mu.Unlock()
			return nil
		}
		if e.session.LoggedIn() {
			// Same connection switching accounts: the old account goes offline first.
			r.mu.Unlock()
			r.ClientLogout(ctx, c)
			continue
		}
		if priorID, ok := r.byUser[userID]; ok && priorID != c.ID() {
			prior, ok := r.entries[priorID]
			if !ok {
				delete(r.byUser, userID)
				r.mu.Unlock()
				continue
			}
			r.mu.Unlock()
			if err := r.displace(ctx, prior.conn, userID); err != nil {
				return err
			}
			continue
		}

		e.session.UserID = userID
		e.session.LoginAt = r.now()
		r.byUser[userID] = c.ID()
		r.updateGaugesLocked()
		sess = e.session
		r.mu.Unlock()
		break
	}

	r.metrics.Logins.Add(1)
	slog.Info("user logged in", "user", userID, "conn", c.ID(), "remote", c.RemoteAddr())

	if rec, ok := r.presence.(service.OnlineRecorder); ok {
		if err := rec.OnUserOnline(ctx, sess); err != nil {
			slog.Warn("presence online hook failed", "user", userID, "err", err)
		}
	}

	friendIDs, err := r.friends.FriendIDs(ctx, userID)
	if err != nil {
		slog.Warn("friend lookup failed, skipping online notice", "user", userID, "err", err)
		return nil
	}
	r.fan.Notify(ctx, friendIDs, &pb.ControlMessage{
		FriendLogin: &pb.FriendLoginMessage{
			FriendID:  userID,
			LoginTime: pb.FormatTime(sess.LoginAt),
		},
	})
	return nil
}

// displace logs out the session of prior and, if this call performed the
// logout, tells it why. If another flow is already logging prior out it
// waits for that instead. A prior connection removed in the meantime is
// not registered again.
func (r *Registry) displace(ctx context.Context, prior conn.Conn, userID string) error {
	started, wait := r.logout(ctx, prior, false)
	if !started {
		if wait != nil {
			return waitDone(ctx, wait)
		}
		return nil
	}

	r.metrics.Displacements.Add(1)
	slog.Info("displacing session", "user", userID, "conn", prior.ID())

	sendCtx, cancel := context.WithTimeout(ctx, displaceTimeout)
	defer cancel()
	err := prior.Send(sendCtx, &pb.ControlMessage{
		LogoutCommand: &pb.LogoutCommand{ID: userID, Message: DisplacedMessage},
	})
	if err != nil {
		slog.Debug("displacement notice not delivered", "user", userID, "conn", prior.ID(), "err", err)
	}
	return nil
}

// ClientLogout returns c's session to anonymous and tells online friends.
// An unknown connection is registered anonymously; a session that is not
// logged in, or is already being logged out, is left alone.
func (r *Registry) ClientLogout(ctx context.Context, c conn.Conn) {
	if c == nil {
		return
	}
	r.logout(ctx, c, true)
}

type peer struct {
	userID string
	conn   conn.Conn
}

// logout runs the logout protocol. started reports whether this call did the
// work; otherwise wait is the completion channel of a logout already in flight.
// An unknown connection is registered anonymously only if registerUnknown is set.
func (r *Registry) logout(ctx context.Context, c conn.Conn, registerUnknown bool) (started bool, wait <-chan struct{}) {
	r.mu.Lock()
	e, ok := r.entries[c.ID()]
	if !ok {
		if registerUnknown {
			r.addLocked(c)
		}
		r.mu.Unlock()
		return false, nil
	}
	if e.logoutDone != nil {
		r.mu.Unlock()
		return false, e.logoutDone
	}
	if !e.session.LoggedIn() {
		r.mu.Unlock()
		return false, nil
	}

	done := make(chan struct{})
	e.logoutDone = done
	sess := e.session
	var online []peer
	for id, other := range r.entries {
		if id == c.ID() || !other.session.LoggedIn() {
			continue
		}
		online = append(online, peer{userID: other.session.UserID, conn: other.conn})
	}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		e.session.UserID = ""
		e.session.LoginAt = time.Time{}
		if r.byUser[sess.UserID] == c.ID() {
			delete(r.byUser, sess.UserID)
		}
		e.logoutDone = nil
		r.updateGaugesLocked()
		r.mu.Unlock()
		close(done)
	}()

	if r.presence != nil {
		if err := r.presence.OnUserOffline(ctx, sess); err != nil {
			slog.Warn("presence offline hook failed", "user", sess.UserID, "err", err)
		}
	}

	msg := &pb.ControlMessage{
		FriendLogout: &pb.FriendLogoutMessage{
			FriendID:   sess.UserID,
			LogoutTime: pb.FormatTime(r.now()),
		},
	}
	for _, p := range online {
		if p.userID == sess.UserID {
			continue
		}
		isFriend, err := r.friends.IsFriend(ctx, p.userID, sess.UserID)
		if err != nil {
			slog.Warn("friend check failed", "user", p.userID, "friend", sess.UserID, "err", err)
			continue
		}
		if isFriend {
			r.fan.SendTo(ctx, p.conn, msg)
		}
	}

	r.metrics.Logouts.Add(1)
	slog.Info("user logged out", "user", sess.UserID, "conn", c.ID())
	return true, nil
}

// Heartbeat tells the presence service that the session on c is still
// alive. Anonymous, unknown and logging-out sessions are ignored.
func (r *Registry) Heartbeat(ctx context.Context, c conn.Conn) {
	hb, ok := r.presence.(service.Heartbeater)
	if !ok || c == nil {
		return
	}
	r.mu.Lock()
	e, ok := r.entries[c.ID()]
	if !ok || e.logoutDone != nil || !e.session.LoggedIn() {
		r.mu.Unlock()
		return
	}
	sess := e.session
	r.mu.Unlock()

	if err := hb.OnUserHeartbeat(ctx, sess); err != nil {
		slog.Warn("presence heartbeat hook failed", "user", sess.UserID, "err", err)
	}
}

// ClientOnline reports whether userID is logged in on some connection.
func (r *Registry) ClientOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byUser[userID]
	return ok
}

// GetClient returns the connection userID is logged in on.
func (r *Registry) GetClient(userID string) (conn.Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byUser[userID]
	if !ok {
		return nil, false
	}
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.conn, true
}

// Session returns a copy of the session of c.
func (r *Registry) Session(c conn.Conn) (model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[c.ID()]
	if !ok {
		return model.Session{}, false
	}
	return e.session, true
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// OnlineCount returns the number of logged-in users.
func (r *Registry) OnlineCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser)
}

// Snapshot returns copies of all sessions.
func (r *Registry) Snapshot() []model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Session, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.session)
	}
	return out
}

func waitDone(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
