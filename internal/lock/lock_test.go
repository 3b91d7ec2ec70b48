package lock

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bsm/redislock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/joseph-ayodele/gvb-ingest/internal/common"
)

func TestNoop(t *testing.T) {
	l, closeFn := New(common.RedisConfig{}, nil)
	require.IsType(t, Noop{}, l)
	require.NoError(t, closeFn())

	release, err := l.Obtain(context.Background(), "k")
	require.NoError(t, err)
	assert.NoError(t, release(context.Background()))
}

func TestRedisUnreachable(t *testing.T) {
	r := NewRedis(common.RedisConfig{Addr: "127.0.0.1:1"}, nil)
	t.Cleanup(func() { _ = r.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := r.Obtain(ctx, "gvb-ingest:batch")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotObtained))
}

func TestRedisLockIsExclusive(t *testing.T) {
	if testing.Short() {
		t.Skip("redis integration test skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	endpoint, err := c.Endpoint(ctx, "")
	require.NoError(t, err)

	cfg := common.RedisConfig{Addr: endpoint, LockTTL: time.Minute}
	a, closeA := New(cfg, nil)
	b, closeB := New(cfg, nil)
	t.Cleanup(func() { _ = closeA(); _ = closeB() })

	release, err := a.Obtain(ctx, "gvb-ingest:batch")
	require.NoError(t, err)

	_, err = b.Obtain(ctx, "gvb-ingest:batch")
	assert.ErrorIs(t, err, ErrNotObtained)

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx), "double release is harmless")

	release, err = b.Obtain(ctx, "gvb-ingest:batch")
	require.NoError(t, err)
	require.NoError(t, release(ctx))

	// a batch longer than the TTL keeps the lock
	short := common.RedisConfig{Addr: endpoint, LockTTL: time.Second}
	c1, closeC1 := New(short, nil)
	c2, closeC2 := New(short, nil)
	t.Cleanup(func() { _ = closeC1(); _ = closeC2() })

	release, err = c1.Obtain(ctx, "gvb-ingest:long")
	require.NoError(t, err)
	time.Sleep(2500 * time.Millisecond)
	_, err = c2.Obtain(ctx, "gvb-ingest:long")
	assert.ErrorIs(t, err, ErrNotObtained)
	require.NoError(t, release(ctx))

	release, err = c2.Obtain(ctx, "gvb-ingest:long")
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestKeepAliveRefreshesUntilStopped(t *testing.T) {
	var calls atomic.Int32
	stop := keepAlive(10*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	}, slog.Default())

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	stop()
	stop()
	n := calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, calls.Load())
}

func TestKeepAliveLogsLostLock(t *testing.T) {
	var buf bytes.Buffer
	stop := keepAlive(10*time.Millisecond, func(context.Context) error {
		return redislock.ErrNotObtained
	}, slog.New(slog.NewTextHandler(&buf, nil)))
	time.Sleep(50 * time.Millisecond)
	stop()
	assert.Contains(t, buf.String(), "batch lock lost")
}
