package lock

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/gvb-ingest/internal/common"
)

// ErrNotObtained means another process holds the lock.
var ErrNotObtained = errors.New("lock held by another process")

// Release gives a lock back.
type Release func(ctx context.Context) error

// Locker serializes batches across processes.
type Locker interface {
	Obtain(ctx context.Context, key string) (Release, error)
}

// Noop grants every request; used when no Redis is configured.
type Noop struct{}

func (Noop) Obtain(context.Context, string) (Release, error) {
	return func(context.Context) error { return nil }, nil
}

// Redis is a Locker backed by bsm/redislock.
type Redis struct {
	client *redis.Client
	locker *redislock.Client
	ttl    time.Duration
	log    *slog.Logger
}

func NewRedis(cfg common.RedisConfig, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Redis{client: client, locker: redislock.New(client), ttl: ttl, log: logger}
}

// New returns a Redis locker when an address is configured and Noop
// otherwise. The returned close func releases the Redis connection.
func New(cfg common.RedisConfig, logger *slog.Logger) (Locker, func() error) {
	if cfg.Addr == "" {
		return Noop{}, func() error { return nil }
	}
	r := NewRedis(cfg, logger)
	return r, r.Close
}

// Obtain takes the lock without waiting. The holder refreshes it every half
// TTL until release, so it only expires when the holder dies.
func (r *Redis) Obtain(ctx context.Context, key string) (Release, error) {
	l, err := r.locker.Obtain(ctx, key, r.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		r.log.Warn("batch lock not obtained", "key", key)
		return nil, ErrNotObtained
	}
	if err != nil {
		r.log.Error("batch lock failed", "key", key, "err", err)
		return nil, err
	}
	r.log.Debug("batch lock obtained", "key", key, "ttl", r.ttl)
	stop := keepAlive(r.ttl/2, func(ctx context.Context) error {
		return l.Refresh(ctx, r.ttl, nil)
	}, r.log.With("key", key))
	return func(ctx context.Context) error {
		stop()
		if err := l.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			r.log.Error("batch lock release failed", "key", key, "err", err)
			return err
		}
		return nil
	}, nil
}

// keepAlive calls refresh every interval until the returned stop func is
// called. stop waits for an in-flight refresh and may be called twice.
func keepAlive(every time.Duration, refresh func(context.Context) error, log *slog.Logger) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				err := refresh(ctx)
				switch {
				case err == nil, ctx.Err() != nil:
				case errors.Is(err, redislock.ErrNotObtained):
					log.Error("batch lock lost", "err", err)
				default:
					log.Error("batch lock refresh failed", "err", err)
				}
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
