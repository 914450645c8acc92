package service

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/NicolasHaas/gochat/pkg/crypto"
	"github.com/NicolasHaas/gochat/pkg/datastore"
	"github.com/NicolasHaas/gochat/pkg/model"
)

// ErrInvalidCredentials covers both unknown users and wrong passwords.
var ErrInvalidCredentials = errors.New("invalid user id or password")

// ErrUserExists is returned by RegisterUser for a taken id.
var ErrUserExists = errors.New("user already exists")

// LoginService checks credentials and stamps login/logout times on users.
type LoginService struct {
	store datastore.DataProviderFactory
	now   func() time.Time
}

func NewLoginService(store datastore.DataProviderFactory) *LoginService {
	return &LoginService{store: store, now: time.Now}
}

// Authenticate returns the user when password matches its stored hash.
func (l *LoginService) Authenticate(ctx context.Context, userID, password string) (*model.User, error) {
	if err := model.ValidateUserID(userID); err != nil {
		return nil, ErrInvalidCredentials
	}
	user, err := l.store.NonTx().GetUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "service: authenticate")
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := crypto.VerifyPassword(password, user.Salt, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}
	at := l.now().UTC().Truncate(time.Second)
	if err := l.store.NonTx().TouchLogin(ctx, userID, at); err != nil {
		return nil, errors.Wrap(err, "service: authenticate")
	}
	user.LastLoginAt = at
	return user, nil
}

// RegisterUser creates an account with an Argon2id password hash.
func (l *LoginService) RegisterUser(ctx context.Context, userID, username, password string) (*model.User, error) {
	if err := model.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, errors.New("service: register user: empty password")
	}
	existing, err := l.store.NonTx().GetUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "service: register user")
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, errors.Wrap(err, "service: register user")
	}
	if username == "" {
		username = userID
	}
	user := &model.User{
		ID:           userID,
		Username:     username,
		PasswordHash: crypto.HashPassword(password, salt),
		Salt:         salt,
		CreatedAt:    l.now().UTC().Truncate(time.Second),
	}
	if err := l.store.NonTx().CreateUser(ctx, user); err != nil {
		return nil, errors.Wrap(err, "service: register user")
	}
	return user, nil
}

// OnUserOffline records when the session's user went offline.
func (l *LoginService) OnUserOffline(ctx context.Context, s model.Session) error {
	if !s.LoggedIn() {
		return nil
	}
	return l.store.NonTx().TouchLogout(ctx, s.UserID, l.now().UTC().Truncate(time.Second))
}
