package service

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/NicolasHaas/gochat/pkg/model"
)

// RedisPresence mirrors presence into Redis for external dashboards.
// The registry never reads it back.
//
// Keys:
//
//	gochat:presence:<user>  = connection id, expires after ttl
//	gochat:lastseen:<user>  = RFC 3339 logout time
type RedisPresence struct {
	rdb redis.UniversalClient
	ttl time.Duration
	now func() time.Time
}

// NewRedisPresence connects to addr and checks the server is reachable.
func NewRedisPresence(ctx context.Context, addr string, ttl time.Duration) (*RedisPresence, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "service: redis ping %s", addr)
	}
	return NewRedisPresenceClient(rdb, ttl), nil
}

func NewRedisPresenceClient(rdb redis.UniversalClient, ttl time.Duration) *RedisPresence {
	return &RedisPresence{rdb: rdb, ttl: ttl, now: time.Now}
}

func presenceKey(user string) string { return "gochat:presence:" + user }
func lastSeenKey(user string) string { return "gochat:lastseen:" + user }

func (p *RedisPresence) OnUserOnline(ctx context.Context, s model.Session) error {
	if err := p.rdb.Set(ctx, presenceKey(s.UserID), s.ConnID, p.ttl).Err(); err != nil {
		return errors.Wrap(err, "service: redis presence online")
	}
	return nil
}

// OnUserHeartbeat renews the presence key. A key that already expired while
// the client was silent is written again.
func (p *RedisPresence) OnUserHeartbeat(ctx context.Context, s model.Session) error {
	if err := p.rdb.Set(ctx, presenceKey(s.UserID), s.ConnID, p.ttl).Err(); err != nil {
		return errors.Wrap(err, "service: redis presence heartbeat")
	}
	return nil
}

func (p *RedisPresence) OnUserOffline(ctx context.Context, s model.Session) error {
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, presenceKey(s.UserID))
		pipe.Set(ctx, lastSeenKey(s.UserID), p.now().UTC().Format(time.RFC3339), 0)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "service: redis presence offline")
	}
	return nil
}

func (p *RedisPresence) Close() error {
	return p.rdb.Close()
}
