package datastore

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"

	"github.com/NicolasHaas/gochat/pkg/merr"
	"github.com/NicolasHaas/gochat/pkg/model"
)

const dbTimeLayout = "2006-01-02 15:04:05"

type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type baseProvider struct {
	DB
}

type nonTxProvider struct {
	baseProvider
}

type txProvider struct {
	baseProvider
	tx *sql.Tx
}

func (c *txProvider) Rollback() error {
	return c.tx.Rollback()
}

func (c *txProvider) Commit() error {
	return c.tx.Commit()
}

// ProviderFactory provides database access for all GoChat entities.
type ProviderFactory struct {
	DB *sql.DB
}

func (sf *ProviderFactory) NonTx() DataStore {
	return &nonTxProvider{
		baseProvider: baseProvider{
			DB: sf.DB,
		},
	}
}

func (sf *ProviderFactory) Tx(ctx context.Context) (DataStoreTx, error) {
	tx, err := sf.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "datastore: begin")
	}

	return &txProvider{
		baseProvider: baseProvider{
			DB: tx,
		},
		tx: tx,
	}, nil
}

// NewProviderFactory opens (or creates) a SQLite database and runs migrations.
//
// Pragmas go through the DSN so every pooled connection gets them; write
// transactions take the lock up front (_txlock=immediate) so two concurrent
// units of work queue on busy_timeout instead of failing on lock upgrade.
func NewProviderFactory(dbPath string) (*ProviderFactory, error) {
	dsn := "file:" + dbPath +
		"?_txlock=immediate" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)"
	DB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "datastore: open DB")
	}

	s := &ProviderFactory{DB: DB}
	if err := s.migrate(); err != nil {
		_ = DB.Close()
		return nil, errors.Wrap(err, "datastore: migrate")
	}
	return s, nil
}

// Close closes the database connection.
func (s *ProviderFactory) Close() error {
	return s.DB.Close()
}

func (s *ProviderFactory) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id             TEXT    PRIMARY KEY CHECK(length(id) > 0 AND length(id) <= 32),
		username       TEXT    NOT NULL DEFAULT '',
		password_hash  BLOB,
		salt           BLOB,
		created_at     TEXT    NOT NULL DEFAULT (datetime('now')),
		last_login_at  TEXT    NOT NULL DEFAULT '',
		last_logout_at TEXT    NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS friend_requests (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		user_from_id   TEXT    NOT NULL REFERENCES users(id),
		user_target_id TEXT    NOT NULL REFERENCES users(id),
		grouping_name  TEXT    NOT NULL DEFAULT '',
		remark         TEXT    NOT NULL DEFAULT '',
		message        TEXT    NOT NULL DEFAULT '',
		request_time   TEXT    NOT NULL DEFAULT '',
		is_solved      INTEGER NOT NULL DEFAULT 0,
		is_accept      INTEGER NOT NULL DEFAULT 0,
		solve_time     TEXT    NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS friend_relations (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		user1_id      TEXT    NOT NULL REFERENCES users(id),
		user2_id      TEXT    NOT NULL REFERENCES users(id),
		grouping_name TEXT    NOT NULL DEFAULT '',
		remark        TEXT    NOT NULL DEFAULT '',
		group_time    TEXT    NOT NULL DEFAULT '',
		UNIQUE(user1_id, user2_id)
	);

	CREATE TABLE IF NOT EXISTS chat_private (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		user_from_id   TEXT    NOT NULL REFERENCES users(id),
		user_target_id TEXT    NOT NULL REFERENCES users(id),
		message        TEXT    NOT NULL DEFAULT '',
		time           TEXT    NOT NULL DEFAULT '',
		is_retracted   INTEGER NOT NULL DEFAULT 0,
		retract_time   TEXT    NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS groups (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		owner_id    TEXT NOT NULL REFERENCES users(id),
		created_at  TEXT NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS group_members (
		group_id  TEXT    NOT NULL REFERENCES groups(id),
		user_id   TEXT    NOT NULL REFERENCES users(id),
		role      INTEGER NOT NULL DEFAULT 0 CHECK(role >= 0 AND role <= 2),
		join_time TEXT    NOT NULL DEFAULT '',
		PRIMARY KEY (group_id, user_id)
	);
	`
	ctx := context.Background()
	if err := s.ensureSchemaMigrations(ctx); err != nil {
		return err
	}
	currentVersion, err := s.getSchemaVersion(ctx)
	if err != nil {
		return err
	}

	migrations := []struct {
		version    int
		statements []string
	}{
		{
			version:    1,
			statements: []string{schema},
		},
		{
			version: 2,
			statements: []string{
				"CREATE INDEX IF NOT EXISTS idx_friend_requests_pair ON friend_requests (user_from_id, user_target_id, is_solved)",
				"CREATE INDEX IF NOT EXISTS idx_chat_private_pair ON chat_private (user_from_id, user_target_id)",
			},
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		for _, stmt := range m.statements {
			if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
				return errors.Wrapf(err, "datastore: migrate v%d", m.version)
			}
		}
		if err := s.setSchemaVersion(ctx, m.version); err != nil {
			return err
		}
	}
	return nil
}

func (s *ProviderFactory) ensureSchemaMigrations(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)"); err != nil {
		return errors.Wrap(err, "datastore: create schema_migrations")
	}
	var count int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return errors.Wrap(err, "datastore: check schema_migrations")
	}
	if count == 0 {
		if _, err := s.DB.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (0)"); err != nil {
			return errors.Wrap(err, "datastore: init schema_migrations")
		}
	}
	return nil
}

func (s *ProviderFactory) getSchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.DB.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version); err != nil {
		return 0, errors.Wrap(err, "datastore: read schema version")
	}
	return version, nil
}

func (s *ProviderFactory) setSchemaVersion(ctx context.Context, version int) error {
	if _, err := s.DB.ExecContext(ctx, "UPDATE schema_migrations SET version = ?", version); err != nil {
		return errors.Wrap(err, "datastore: update schema version")
	}
	return nil
}

// Zero times are stored as '' so "never" round-trips.
func formatDBTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dbTimeLayout)
}

func parseDBTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dbTimeLayout, value, time.UTC)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ---- Users ----

// CreateUser inserts a user. The id format is validated before inserting.
func (s *baseProvider) CreateUser(ctx context.Context, user *model.User) error {
	if err := model.ValidateUserID(user.ID); err != nil {
		return errors.Wrap(err, "datastore: create user")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	_, err := s.ExecContext(ctx,
		"INSERT INTO users (id, username, password_hash, salt, created_at) VALUES (?, ?, ?, ?, ?)",
		user.ID, user.Username, user.PasswordHash, user.Salt, formatDBTime(user.CreatedAt))
	if err != nil {
		return errors.Wrap(err, "datastore: create user")
	}
	return nil
}

// GetUser retrieves a user by id.
func (s *baseProvider) GetUser(ctx context.Context, id string) (*model.User, error) {
	u := &model.User{}
	var createdAt, lastLogin, lastLogout string
	err := s.QueryRowContext(ctx,
		"SELECT id, username, password_hash, salt, created_at, last_login_at, last_logout_at FROM users WHERE id = ?", id).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Salt, &createdAt, &lastLogin, &lastLogout)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "datastore: get user")
	}
	if u.CreatedAt, err = parseDBTime(createdAt); err != nil {
		return nil, errors.Wrap(err, "datastore: get user")
	}
	if u.LastLoginAt, err = parseDBTime(lastLogin); err != nil {
		return nil, errors.Wrap(err, "datastore: get user")
	}
	if u.LastLogoutAt, err = parseDBTime(lastLogout); err != nil {
		return nil, errors.Wrap(err, "datastore: get user")
	}
	return u, nil
}

// ListUsers returns all users without credentials.
func (s *baseProvider) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.QueryContext(ctx, "SELECT id, username, created_at, last_login_at FROM users ORDER BY id")
	if err != nil {
		return nil, errors.Wrap(err, "datastore: list users")
	}
	defer func() { _ = rows.Close() }()

	var users []model.User
	for rows.Next() {
		var u model.User
		var createdAt, lastLogin string
		if err := rows.Scan(&u.ID, &u.Username, &createdAt, &lastLogin); err != nil {
			return nil, errors.Wrap(err, "datastore: scan user")
		}
		if u.CreatedAt, err = parseDBTime(createdAt); err != nil {
			return nil, errors.Wrap(err, "datastore: scan user")
		}
		if u.LastLoginAt, err = parseDBTime(lastLogin); err != nil {
			return nil, errors.Wrap(err, "datastore: scan user")
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// TouchLogin records the last successful login of a user.
func (s *baseProvider) TouchLogin(ctx context.Context, id string, at time.Time) error {
	if _, err := s.ExecContext(ctx, "UPDATE users SET last_login_at = ? WHERE id = ?", formatDBTime(at), id); err != nil {
		return errors.Wrap(err, "datastore: touch login")
	}
	return nil
}

// TouchLogout records when a user went offline.
func (s *baseProvider) TouchLogout(ctx context.Context, id string, at time.Time) error {
	if _, err := s.ExecContext(ctx, "UPDATE users SET last_logout_at = ? WHERE id = ?", formatDBTime(at), id); err != nil {
		return errors.Wrap(err, "datastore: touch logout")
	}
	return nil
}

// ---- Friend requests ----

const friendRequestColumns = "id, user_from_id, user_target_id, grouping_name, remark, message, request_time, is_solved, is_accept, solve_time"

func scanFriendRequest(row *sql.Row) (*model.FriendRequest, error) {
	r := &model.FriendRequest{}
	var requestTime, solveTime string
	var solved, accept int
	err := row.Scan(&r.ID, &r.UserFromID, &r.UserTargetID, &r.Group, &r.Remark, &r.Message,
		&requestTime, &solved, &accept, &solveTime)
	if err != nil {
		return nil, err
	}
	r.IsSolved = solved != 0
	r.IsAccept = accept != 0
	if r.RequestTime, err = parseDBTime(requestTime); err != nil {
		return nil, err
	}
	if r.SolveTime, err = parseDBTime(solveTime); err != nil {
		return nil, err
	}
	return r, nil
}

// CreateFriendRequest inserts a pending request and assigns its id.
func (s *baseProvider) CreateFriendRequest(ctx context.Context, req *model.FriendRequest) error {
	if err := req.Validate(); err != nil {
		return errors.Wrap(err, "datastore: create friend request")
	}
	res, err := s.ExecContext(ctx,
		"INSERT INTO friend_requests (user_from_id, user_target_id, grouping_name, remark, message, request_time, is_solved, is_accept, solve_time) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		req.UserFromID, req.UserTargetID, req.Group, req.Remark, req.Message,
		formatDBTime(req.RequestTime), boolToInt(req.IsSolved), boolToInt(req.IsAccept), formatDBTime(req.SolveTime))
	if err != nil {
		return errors.Wrap(err, "datastore: create friend request")
	}
	req.ID, _ = res.LastInsertId()
	return nil
}

// GetFriendRequest retrieves a request by id.
func (s *baseProvider) GetFriendRequest(ctx context.Context, id int64) (*model.FriendRequest, error) {
	r, err := scanFriendRequest(s.QueryRowContext(ctx, "SELECT "+friendRequestColumns+" FROM friend_requests WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "datastore: get friend request")
	}
	return r, nil
}

// FindPendingFriendRequest returns the newest unsolved request from fromID to targetID.
func (s *baseProvider) FindPendingFriendRequest(ctx context.Context, fromID, targetID string) (*model.FriendRequest, error) {
	r, err := scanFriendRequest(s.QueryRowContext(ctx,
		"SELECT "+friendRequestColumns+" FROM friend_requests WHERE user_from_id = ? AND user_target_id = ? AND is_solved = 0 ORDER BY id DESC LIMIT 1",
		fromID, targetID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "datastore: find pending friend request")
	}
	return r, nil
}

// ResolveFriendRequest moves a pending request to solved with the accept
// flag and solve time of req. A request that is already solved is left as
// it is and merr.ErrAlreadyResolved is returned, so of two concurrent
// resolutions exactly one wins.
func (s *baseProvider) ResolveFriendRequest(ctx context.Context, req *model.FriendRequest) error {
	res, err := s.ExecContext(ctx,
		"UPDATE friend_requests SET is_solved = 1, is_accept = ?, solve_time = ? WHERE id = ? AND is_solved = 0",
		boolToInt(req.IsAccept), formatDBTime(req.SolveTime), req.ID)
	if err != nil {
		return errors.Wrap(err, "datastore: resolve friend request")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "datastore: resolve friend request")
	}
	if n == 1 {
		return nil
	}

	var solved int
	err = s.QueryRowContext(ctx, "SELECT is_solved FROM friend_requests WHERE id = ?", req.ID).Scan(&solved)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(merr.ErrNotFound, "datastore: resolve friend request %d", req.ID)
	}
	if err != nil {
		return errors.Wrap(err, "datastore: resolve friend request")
	}
	return errors.Wrapf(merr.ErrAlreadyResolved, "datastore: resolve friend request %d", req.ID)
}

// ---- Friend relations ----

// CreateFriendRelation inserts one direction of a friendship.
func (s *baseProvider) CreateFriendRelation(ctx context.Context, rel *model.FriendRelation) error {
	res, err := s.ExecContext(ctx,
		"INSERT INTO friend_relations (user1_id, user2_id, grouping_name, remark, group_time) VALUES (?, ?, ?, ?, ?)",
		rel.User1ID, rel.User2ID, rel.Grouping, rel.Remark, formatDBTime(rel.GroupTime))
	if err != nil {
		return errors.Wrap(err, "datastore: create friend relation")
	}
	rel.ID, _ = res.LastInsertId()
	return nil
}

// ListFriendIDs returns everyone userID lists as a friend.
func (s *baseProvider) ListFriendIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.QueryContext(ctx, "SELECT user2_id FROM friend_relations WHERE user1_id = ? ORDER BY user2_id", userID)
	if err != nil {
		return nil, errors.Wrap(err, "datastore: list friends")
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "datastore: scan friend")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IsFriend reports whether userID lists friendID as a friend.
func (s *baseProvider) IsFriend(ctx context.Context, userID, friendID string) (bool, error) {
	var n int
	err := s.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM friend_relations WHERE user1_id = ? AND user2_id = ?", userID, friendID).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, "datastore: is friend")
	}
	return n > 0, nil
}

// GetFriendRelation retrieves the userID -> friendID direction of a friendship.
func (s *baseProvider) GetFriendRelation(ctx context.Context, userID, friendID string) (*model.FriendRelation, error) {
	rel := &model.FriendRelation{}
	var groupTime string
	err := s.QueryRowContext(ctx,
		"SELECT id, user1_id, user2_id, grouping_name, remark, group_time FROM friend_relations WHERE user1_id = ? AND user2_id = ?",
		userID, friendID).Scan(&rel.ID, &rel.User1ID, &rel.User2ID, &rel.Grouping, &rel.Remark, &groupTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "datastore: get friend relation")
	}
	if rel.GroupTime, err = parseDBTime(groupTime); err != nil {
		return nil, errors.Wrap(err, "datastore: get friend relation")
	}
	return rel, nil
}

// ---- Private chat ----

// CreateChatPrivate stores a direct message and assigns its id.
func (s *baseProvider) CreateChatPrivate(ctx context.Context, msg *model.ChatPrivate) error {
	if err := msg.Validate(); err != nil {
		return errors.Wrap(err, "datastore: create chat")
	}
	res, err := s.ExecContext(ctx,
		"INSERT INTO chat_private (user_from_id, user_target_id, message, time, is_retracted, retract_time) VALUES (?, ?, ?, ?, ?, ?)",
		msg.UserFromID, msg.UserTargetID, msg.Message, formatDBTime(msg.Time), boolToInt(msg.IsRetracted), formatDBTime(msg.RetractTime))
	if err != nil {
		return errors.Wrap(err, "datastore: create chat")
	}
	msg.ID, _ = res.LastInsertId()
	return nil
}

// ListChatPrivate returns the messages exchanged between two users, oldest first.
func (s *baseProvider) ListChatPrivate(ctx context.Context, userA, userB string) ([]model.ChatPrivate, error) {
	rows, err := s.QueryContext(ctx,
		`SELECT id, user_from_id, user_target_id, message, time, is_retracted, retract_time FROM chat_private
		WHERE (user_from_id = ? AND user_target_id = ?) OR (user_from_id = ? AND user_target_id = ?) ORDER BY id`,
		userA, userB, userB, userA)
	if err != nil {
		return nil, errors.Wrap(err, "datastore: list chat")
	}
	defer func() { _ = rows.Close() }()

	var msgs []model.ChatPrivate
	for rows.Next() {
		var m model.ChatPrivate
		var at, retractAt string
		var retracted int
		if err := rows.Scan(&m.ID, &m.UserFromID, &m.UserTargetID, &m.Message, &at, &retracted, &retractAt); err != nil {
			return nil, errors.Wrap(err, "datastore: scan chat")
		}
		m.IsRetracted = retracted != 0
		if m.Time, err = parseDBTime(at); err != nil {
			return nil, errors.Wrap(err, "datastore: scan chat")
		}
		if m.RetractTime, err = parseDBTime(retractAt); err != nil {
			return nil, errors.Wrap(err, "datastore: scan chat")
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// ---- Groups ----

// CreateGroup inserts a group and registers its owner as a member.
// Run it inside a Tx to make both inserts atomic.
func (s *baseProvider) CreateGroup(ctx context.Context, group *model.Group) error {
	if err := group.Validate(); err != nil {
		return errors.Wrap(err, "datastore: create group")
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	_, err := s.ExecContext(ctx,
		"INSERT INTO groups (id, name, description, owner_id, created_at) VALUES (?, ?, ?, ?, ?)",
		group.ID, group.Name, group.Description, group.OwnerID, formatDBTime(group.CreatedAt))
	if err != nil {
		return errors.Wrap(err, "datastore: create group")
	}
	return s.AddGroupMember(ctx, &model.GroupMember{
		GroupID:  group.ID,
		UserID:   group.OwnerID,
		Role:     model.GroupRoleOwner,
		JoinTime: group.CreatedAt,
	})
}

// AddGroupMember adds a user to a group.
func (s *baseProvider) AddGroupMember(ctx context.Context, member *model.GroupMember) error {
	if !member.Role.Valid() {
		return errors.Wrap(model.ErrInvalidGroupRole, "datastore: add group member")
	}
	_, err := s.ExecContext(ctx,
		"INSERT INTO group_members (group_id, user_id, role, join_time) VALUES (?, ?, ?, ?)",
		member.GroupID, member.UserID, int(member.Role), formatDBTime(member.JoinTime))
	if err != nil {
		return errors.Wrap(err, "datastore: add group member")
	}
	return nil
}

// GetGroup retrieves a group by id.
func (s *baseProvider) GetGroup(ctx context.Context, id string) (*model.Group, error) {
	g := &model.Group{}
	var createdAt string
	err := s.QueryRowContext(ctx, "SELECT id, name, description, owner_id, created_at FROM groups WHERE id = ?", id).
		Scan(&g.ID, &g.Name, &g.Description, &g.OwnerID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "datastore: get group")
	}
	if g.CreatedAt, err = parseDBTime(createdAt); err != nil {
		return nil, errors.Wrap(err, "datastore: get group")
	}
	return g, nil
}

// GetGroupMember retrieves a membership row.
func (s *baseProvider) GetGroupMember(ctx context.Context, groupID, userID string) (*model.GroupMember, error) {
	m := &model.GroupMember{}
	var role int
	var joinTime string
	err := s.QueryRowContext(ctx,
		"SELECT group_id, user_id, role, join_time FROM group_members WHERE group_id = ? AND user_id = ?", groupID, userID).
		Scan(&m.GroupID, &m.UserID, &role, &joinTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "datastore: get group member")
	}
	m.Role = model.GroupRole(role)
	if m.JoinTime, err = parseDBTime(joinTime); err != nil {
		return nil, errors.Wrap(err, "datastore: get group member")
	}
	return m, nil
}

// ListGroupMemberIDs returns the user ids of every member of a group.
func (s *baseProvider) ListGroupMemberIDs(ctx context.Context, groupID string) ([]string, error) {
	rows, err := s.QueryContext(ctx, "SELECT user_id FROM group_members WHERE group_id = ? ORDER BY user_id", groupID)
	if err != nil {
		return nil, errors.Wrap(err, "datastore: list group members")
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "datastore: scan group member")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateGroup writes the mutable fields (name, description) of a group.
func (s *baseProvider) UpdateGroup(ctx context.Context, group *model.Group) error {
	if err := group.Validate(); err != nil {
		return errors.Wrap(err, "datastore: update group")
	}
	res, err := s.ExecContext(ctx,
		"UPDATE groups SET name = ?, description = ? WHERE id = ?", group.Name, group.Description, group.ID)
	if err != nil {
		return errors.Wrap(err, "datastore: update group")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(merr.ErrNotFound, "datastore: update group %s", group.ID)
	}
	return nil
}
