package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NicolasHaas/gochat/pkg/datastore"
	"github.com/NicolasHaas/gochat/pkg/model"
)

func newTestStore(t *testing.T) *datastore.ProviderFactory {
	t.Helper()
	st, err := datastore.NewProviderFactory(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	login := NewLoginService(st)

	_, err := login.RegisterUser(ctx, "alice", "", "s3cret")
	require.NoError(t, err)

	_, err = login.RegisterUser(ctx, "alice", "", "other")
	assert.ErrorIs(t, err, ErrUserExists)

	user, err := login.Authenticate(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.False(t, user.LastLoginAt.IsZero())

	_, err = login.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = login.Authenticate(ctx, "nobody", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = login.Authenticate(ctx, "bad id", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginServiceOnUserOffline(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	login := NewLoginService(st)
	fixed := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	login.now = func() time.Time { return fixed }

	_, err := login.RegisterUser(ctx, "alice", "Alice", "pw")
	require.NoError(t, err)

	require.NoError(t, login.OnUserOffline(ctx, model.Session{ConnID: "c1"}))
	require.NoError(t, login.OnUserOffline(ctx, model.Session{ConnID: "c1", UserID: "alice"}))

	u, err := st.NonTx().GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, u.LastLogoutAt.Equal(fixed))
}

func TestGroupsIsGroupManager(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	for _, id := range []string{"owner", "mgr", "member", "outsider"} {
		require.NoError(t, st.NonTx().CreateUser(ctx, &model.User{ID: id}))
	}
	require.NoError(t, st.NonTx().CreateGroup(ctx, &model.Group{ID: "g", Name: "G", OwnerID: "owner"}))
	require.NoError(t, st.NonTx().AddGroupMember(ctx, &model.GroupMember{GroupID: "g", UserID: "mgr", Role: model.GroupRoleManager}))
	require.NoError(t, st.NonTx().AddGroupMember(ctx, &model.GroupMember{GroupID: "g", UserID: "member", Role: model.GroupRoleMember}))

	groups := NewGroups(st)
	tcases := map[string]bool{
		"owner":    true,
		"mgr":      true,
		"member":   false,
		"outsider": false,
	}
	for user, want := range tcases {
		got, err := groups.IsGroupManager(ctx, user, "g")
		require.NoError(t, err)
		assert.Equal(t, want, got, user)
	}

	members, err := groups.Members(ctx, "g")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"owner", "mgr", "member"}, members)
}

func TestFriends(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	for _, id := range []string{"alice", "bob"} {
		require.NoError(t, st.NonTx().CreateUser(ctx, &model.User{ID: id}))
	}
	src, dst := model.RelationPair(&model.FriendRequest{UserFromID: "alice", UserTargetID: "bob"}, "", "", time.Now())
	require.NoError(t, st.NonTx().CreateFriendRelation(ctx, &src))
	require.NoError(t, st.NonTx().CreateFriendRelation(ctx, &dst))

	friends := NewFriends(st)
	ids, err := friends.FriendIDs(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, ids)

	ok, err := friends.IsFriend(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, ok)
}

type recordingPresence struct {
	offline   []string
	online    []string
	heartbeat []string
	err       error
}

func (r *recordingPresence) OnUserHeartbeat(_ context.Context, s model.Session) error {
	r.heartbeat = append(r.heartbeat, s.UserID)
	return r.err
}

func (r *recordingPresence) OnUserOffline(_ context.Context, s model.Session) error {
	r.offline = append(r.offline, s.UserID)
	return r.err
}

func (r *recordingPresence) OnUserOnline(_ context.Context, s model.Session) error {
	r.online = append(r.online, s.UserID)
	return r.err
}

type offlineOnly struct{ calls int }

func (o *offlineOnly) OnUserOffline(context.Context, model.Session) error {
	o.calls++
	return nil
}

func TestMultiPresence(t *testing.T) {
	ctx := context.Background()
	failing := &recordingPresence{err: errors.New("boom")}
	plain := &offlineOnly{}
	ok := &recordingPresence{}
	multi := MultiPresence{failing, plain, ok}

	err := multi.OnUserOffline(ctx, model.Session{UserID: "alice"})
	require.Error(t, err)
	assert.Equal(t, []string{"alice"}, failing.offline)
	assert.Equal(t, 1, plain.calls)
	assert.Equal(t, []string{"alice"}, ok.offline)

	require.Error(t, multi.OnUserOnline(ctx, model.Session{UserID: "bob"}))
	assert.Equal(t, []string{"bob"}, ok.online)

	require.Error(t, multi.OnUserHeartbeat(ctx, model.Session{UserID: "carol"}))
	assert.Equal(t, []string{"carol"}, failing.heartbeat)
	assert.Equal(t, []string{"carol"}, ok.heartbeat)
}

func TestRedisPresence(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	p := NewRedisPresenceClient(rdb, time.Minute)
	defer func() { _ = p.Close() }()

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	s := model.Session{ConnID: "conn-1", UserID: "alice"}
	require.NoError(t, p.OnUserOnline(ctx, s))
	got, err := mr.Get(presenceKey("alice"))
	require.NoError(t, err)
	assert.Equal(t, "conn-1", got)
	assert.Equal(t, time.Minute, mr.TTL(presenceKey("alice")))

	assert.False(t, mr.Exists(lastSeenKey("alice")))

	require.NoError(t, p.OnUserOffline(ctx, s))
	assert.False(t, mr.Exists(presenceKey("alice")))
	seen, err := mr.Get(lastSeenKey("alice"))
	require.NoError(t, err)
	assert.Equal(t, "2026-01-02T03:04:05Z", seen)
}

func TestRedisPresenceHeartbeatRenewsTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	p := NewRedisPresenceClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	defer func() { _ = p.Close() }()

	s := model.Session{ConnID: "conn-1", UserID: "alice"}
	require.NoError(t, p.OnUserOnline(ctx, s))

	mr.FastForward(40 * time.Second)
	require.NoError(t, p.OnUserHeartbeat(ctx, s))
	assert.Equal(t, time.Minute, mr.TTL(presenceKey("alice")))

	// Past the original expiry, kept alive by the heartbeat.
	mr.FastForward(40 * time.Second)
	assert.True(t, mr.Exists(presenceKey("alice")))

	// Silent for a full TTL.
	mr.FastForward(time.Minute)
	assert.False(t, mr.Exists(presenceKey("alice")))

	// A late heartbeat brings the key back.
	require.NoError(t, p.OnUserHeartbeat(ctx, s))
	got, err := mr.Get(presenceKey("alice"))
	require.NoError(t, err)
	assert.Equal(t, "conn-1", got)
}

func TestNewRedisPresenceUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedisPresence(ctx, addr, time.Minute)
	assert.Error(t, err)
}
