// Package lock provides non-blocking mutual exclusion for operations that
// must not run twice at once, such as the daily sync.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrBusy means another holder owns the key. Callers reject rather than wait.
var ErrBusy = errors.New("lock is held")

var (
	_ Locker = (*Local)(nil)
	_ Locker = (*Redis)(nil)
)

type Locker interface {
	// Obtain returns a release func, or ErrBusy without blocking.
	Obtain(ctx context.Context, key string) (func(), error)
}

// Local guards keys within one process.
type Local struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocal() *Local {
	return &Local{locks: make(map[string]*sync.Mutex)}
}

func (l *Local) Obtain(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	if !m.TryLock() {
		return nil, ErrBusy
	}
	var once sync.Once
	return func() { once.Do(m.Unlock) }, nil
}

// Redis guards keys across server instances. The TTL bounds how long a
// crashed holder can block others; a live holder refreshes the key every
// third of the TTL until it releases, so long syncs keep the lock.
type Redis struct {
	client *redislock.Client
	ttl    time.Duration
	prefix string
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Redis{
		client: redislock.New(rdb),
		ttl:    ttl,
		prefix: "tarpaulin:lock:",
	}
}

func (r *Redis) Obtain(ctx context.Context, key string) (func(), error) {
	held, err := r.client.Obtain(ctx, r.prefix+key, r.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrBusy
	}
	if err != nil {
		return nil, fmt.Errorf("obtain redis lock %s: %w", key, err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.keepAlive(held, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// a fresh context so a cancelled request still releases the key
			releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = held.Release(releaseCtx)
		})
	}, nil
}

func (r *Redis) keepAlive(held *redislock.Lock, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(refreshInterval(r.ttl))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), refreshInterval(r.ttl))
			err := held.Refresh(ctx, r.ttl, nil)
			cancel()
			if err != nil {
				// the key expired or was taken over; nothing left to extend
				return
			}
		}
	}
}

func refreshInterval(ttl time.Duration) time.Duration {
	interval := ttl / 3
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	return interval
}
