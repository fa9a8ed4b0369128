// Package lock provides the per-identity mutual-exclusion gate that serializes
// cart mutations. The in-process implementation gives no guarantee across
// server processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront-be/internal/logger"
	"storefront-be/internal/metrics"

	"go.uber.org/zap"
)

var ErrLockTimeout = errors.New("timed out waiting for lock")

// DefaultPollInterval is how often a waiting caller re-checks a held key.
const DefaultPollInterval = 50 * time.Millisecond

// Locker serializes work per key.
type Locker interface {
	// Acquire blocks until key is free or maxWait elapses.
	Acquire(ctx context.Context, key string, maxWait time.Duration) error
	// Release frees key. Releasing a key that is not held is a no-op.
	Release(key string)
}

// KeyedMutex is an in-memory Locker.
type KeyedMutex struct {
	mu       sync.Mutex
	held     map[string]struct{}
	interval time.Duration

	waits    *metrics.Counter
	timeouts *metrics.Counter
}

type Option func(*KeyedMutex)

func WithPollInterval(d time.Duration) Option {
	return func(k *KeyedMutex) {
		if d > 0 {
			k.interval = d
		}
	}
}

func WithMetrics(r *metrics.Registry) Option {
	return func(k *KeyedMutex) {
		k.waits = r.Counter("lock.waits")
		k.timeouts = r.Counter("lock.timeouts")
	}
}

func NewKeyedMutex(opts ...Option) *KeyedMutex {
	k := &KeyedMutex{
		held:     make(map[string]struct{}),
		interval: DefaultPollInterval,
		waits:    &metrics.Counter{},
		timeouts: &metrics.Counter{},
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

var _ Locker = (*KeyedMutex)(nil)

func (k *KeyedMutex) tryAcquire(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, busy := k.held[key]; busy {
		return false
	}
	k.held[key] = struct{}{}
	return true
}

func (k *KeyedMutex) Acquire(ctx context.Context, key string, maxWait time.Duration) error {
	if k.tryAcquire(key) {
		return nil
	}

	k.waits.Inc()
	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			k.timeouts.Inc()
			logger.FromCtx(ctx).Warn("lock acquire timed out",
				zap.String("key", key),
				zap.Duration("max_wait", maxWait),
			)
			return fmt.Errorf("%w: %s", ErrLockTimeout, key)
		case <-ticker.C:
			if k.tryAcquire(key) {
				return nil
			}
		}
	}
}

func (k *KeyedMutex) Release(key string) {
	k.mu.Lock()
	delete(k.held, key)
	k.mu.Unlock()
}

// Held reports whether key is currently held.
func (k *KeyedMutex) Held(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.held[key]
	return ok
}

// WithLock runs fn while holding key and releases it on every exit path,
// including panics.
func WithLock(ctx context.Context, l Locker, key string, maxWait time.Duration, fn func() error) error {
	if err := l.Acquire(ctx, key, maxWait); err != nil {
		return err
	}
	defer l.Release(key)

	return fn()
}
