// Package fanout delivers notifications to online users without blocking the caller.
package fanout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	ants "github.com/panjf2000/ants/v2"
	"github.com/samber/lo"

	"github.com/NicolasHaas/gochat/pkg/conn"
	"github.com/NicolasHaas/gochat/pkg/merr"
	"github.com/NicolasHaas/gochat/pkg/metrics"
	pb "github.com/NicolasHaas/gochat/pkg/protocol/pb"
)

const (
	DefaultPoolSize    = 256
	DefaultSendTimeout = 5 * time.Second
)

// Resolver finds the live connection of a logged-in user.
type Resolver interface {
	GetClient(userID string) (conn.Conn, bool)
}

type Options struct {
	PoolSize    int           // concurrent sends (default: DefaultPoolSize)
	SendTimeout time.Duration // per-send deadline (default: DefaultSendTimeout)
}

// Fanout runs sends on a bounded worker pool. Errors are logged and counted,
// never returned to the workflow that triggered them.
type Fanout struct {
	resolver    Resolver
	pool        *ants.Pool
	metrics     *metrics.Metrics
	sendTimeout time.Duration

	// mu orders wg.Add against Close so no send is scheduled after Wait starts.
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func New(resolver Resolver, m *metrics.Metrics, opts Options) (*Fanout, error) {
	size := opts.PoolSize
	if size <= 0 {
		size = DefaultPoolSize
	}
	timeout := opts.SendTimeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	if m == nil {
		m = metrics.New()
	}

	pool, err := ants.NewPool(size,
		ants.WithPanicHandler(func(v any) {
			slog.Error("fanout send panicked", "panic", v)
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "fanout: create pool")
	}
	return &Fanout{
		resolver:    resolver,
		pool:        pool,
		metrics:     m,
		sendTimeout: timeout,
	}, nil
}

// Notify sends msg to every listed user that is online right now.
// Duplicate ids get one copy.
func (f *Fanout) Notify(ctx context.Context, userIDs []string, msg *pb.ControlMessage) {
	for _, id := range lo.Uniq(userIDs) {
		c, ok := f.resolver.GetClient(id)
		if !ok {
			f.metrics.FanoutOffline.Add(1)
			slog.Debug("fanout recipient offline", "user", id, "type", msg.Type())
			continue
		}
		f.SendTo(ctx, c, msg)
	}
}

// SendTo sends msg to one connection asynchronously.
func (f *Fanout) SendTo(ctx context.Context, c conn.Conn, msg *pb.ControlMessage) {
	if c == nil {
		f.metrics.FanoutOffline.Add(1)
		return
	}
	base := context.WithoutCancel(ctx)
	f.submit(func() { _ = f.deliver(base, c, msg) })
}

// SendAfter sends msg on ref after delay, if the connection is still open then.
func (f *Fanout) SendAfter(ctx context.Context, delay time.Duration, ref conn.Ref, msg *pb.ControlMessage) {
	if !f.acquire() {
		return
	}
	base := context.WithoutCancel(ctx)
	time.AfterFunc(delay, func() {
		defer f.wg.Done()
		c, ok := ref.Resolve()
		if !ok {
			f.metrics.FanoutOffline.Add(1)
			return
		}
		_ = f.deliver(base, c, msg)
	})
}

// Wait blocks until every scheduled send, delayed ones included, has finished.
func (f *Fanout) Wait() {
	f.wg.Wait()
}

// Close stops accepting work, waits for in-flight sends and releases the pool.
func (f *Fanout) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.mu.Unlock()

	f.wg.Wait()
	f.pool.Release()
}

// acquire registers one unit of work unless the fanout is closed.
func (f *Fanout) acquire() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		f.metrics.FanoutFailed.Add(1)
		slog.Debug("fanout closed, dropping send")
		return false
	}
	f.wg.Add(1)
	return true
}

func (f *Fanout) submit(task func()) {
	if !f.acquire() {
		return
	}
	err := f.pool.Submit(func() {
		defer f.wg.Done()
		task()
	})
	if err != nil {
		f.wg.Done()
		f.metrics.FanoutFailed.Add(1)
		slog.Warn("fanout submit failed", "err", err)
	}
}

// deliver reports a failed send marked with merr.ErrDelivery.
func (f *Fanout) deliver(ctx context.Context, c conn.Conn, msg *pb.ControlMessage) error {
	ctx, cancel := context.WithTimeout(ctx, f.sendTimeout)
	defer cancel()
	if err := c.Send(ctx, msg); err != nil {
		err = merr.Delivery(err, "fanout: send")
		f.metrics.FanoutFailed.Add(1)
		slog.Debug("fanout send failed", "conn", c.ID(), "type", msg.Type(), "err", err)
		return err
	}
	f.metrics.FanoutDelivered.Add(1)
	return nil
}
