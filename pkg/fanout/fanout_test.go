package fanout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NicolasHaas/gochat/pkg/conn"
	"github.com/NicolasHaas/gochat/pkg/conn/conntest"
	"github.com/NicolasHaas/gochat/pkg/merr"
	"github.com/NicolasHaas/gochat/pkg/metrics"
	pb "github.com/NicolasHaas/gochat/pkg/protocol/pb"
)

type mapResolver struct {
	mu    sync.Mutex
	conns map[string]conn.Conn
}

func (r *mapResolver) GetClient(userID string) (conn.Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[userID]
	return c, ok
}

func newFanout(t *testing.T, conns map[string]conn.Conn) (*Fanout, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	f, err := New(&mapResolver{conns: conns}, m, Options{PoolSize: 4})
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f, m
}

func ping(n int64) *pb.ControlMessage {
	return &pb.ControlMessage{Ping: &pb.Ping{Timestamp: n}}
}

func TestNotifyOnlineOnly(t *testing.T) {
	alice, bob := conntest.New("a"), conntest.New("b")
	f, m := newFanout(t, map[string]conn.Conn{"alice": alice, "bob": bob})

	f.Notify(context.Background(), []string{"alice", "bob", "carol", "alice"}, ping(1))
	f.Wait()

	assert.Len(t, alice.Messages(), 1)
	assert.Len(t, bob.Messages(), 1)
	assert.Equal(t, int64(2), m.FanoutDelivered.Load())
	assert.Equal(t, int64(1), m.FanoutOffline.Load())
}

func TestNotifyToleratesSendFailure(t *testing.T) {
	alice, bob := conntest.New("a"), conntest.New("b")
	alice.FailSends(errors.New("broken pipe"))
	f, m := newFanout(t, map[string]conn.Conn{"alice": alice, "bob": bob})

	f.Notify(context.Background(), []string{"alice", "bob"}, ping(1))
	f.Wait()

	assert.Empty(t, alice.Messages())
	assert.Len(t, bob.Messages(), 1)
	assert.Equal(t, int64(1), m.FanoutFailed.Load())
}

func TestDeliverMarksSendFailure(t *testing.T) {
	c := conntest.New("a")
	cause := errors.New("broken pipe")
	c.FailSends(cause)
	f, m := newFanout(t, nil)

	err := f.deliver(context.Background(), c, ping(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, merr.ErrDelivery))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, int64(1), m.FanoutFailed.Load())

	require.NoError(t, f.deliver(context.Background(), conntest.New("b"), ping(2)))
	assert.Equal(t, int64(1), m.FanoutDelivered.Load())
}

func TestSendToOutlivesCallerContext(t *testing.T) {
	c := conntest.New("")
	f, _ := newFanout(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	f.SendTo(ctx, c, ping(7))
	cancel()
	f.Wait()

	require.Len(t, c.Messages(), 1)
	assert.Equal(t, int64(7), c.Messages()[0].Ping.Timestamp)
}

func TestSendAfter(t *testing.T) {
	c := conntest.New("")
	f, _ := newFanout(t, nil)

	start := time.Now()
	f.SendAfter(context.Background(), 50*time.Millisecond, conn.NewRef(c), ping(1))
	assert.Empty(t, c.Messages())

	f.Wait()
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Len(t, c.Messages(), 1)
}

func TestSendAfterSkipsClosedConn(t *testing.T) {
	c := conntest.New("")
	f, m := newFanout(t, nil)

	f.SendAfter(context.Background(), 20*time.Millisecond, conn.NewRef(c), ping(1))
	require.NoError(t, c.Close())
	f.Wait()

	assert.Empty(t, c.Messages())
	assert.Equal(t, int64(1), m.FanoutOffline.Load())
}

func TestClosedFanoutDropsSends(t *testing.T) {
	c := conntest.New("")
	f, m := newFanout(t, nil)
	f.Close()
	f.Close()

	f.SendTo(context.Background(), c, ping(1))
	f.SendAfter(context.Background(), time.Millisecond, conn.NewRef(c), ping(2))
	f.Wait()

	assert.Empty(t, c.Messages())
	assert.Equal(t, int64(2), m.FanoutFailed.Load())
}

func TestNotifyManyConcurrent(t *testing.T) {
	const users = 50
	conns := make(map[string]conn.Conn, users)
	var ids []string
	for i := 0; i < users; i++ {
		id := string(rune('A' + i))
		conns[id] = conntest.New(id)
		ids = append(ids, id)
	}
	f, m := newFanout(t, conns)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Notify(context.Background(), ids, ping(1))
		}()
	}
	wg.Wait()
	f.Wait()

	assert.Equal(t, int64(users*10), m.FanoutDelivered.Load())
	for _, c := range conns {
		assert.Len(t, c.(*conntest.Conn).Messages(), 10)
	}
}
