package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront-be/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_AcquireRelease(t *testing.T) {
	k := NewKeyedMutex(WithPollInterval(time.Millisecond))
	ctx := context.Background()

	require.NoError(t, k.Acquire(ctx, "user:1", time.Second))
	assert.True(t, k.Held("user:1"))

	// different keys do not block each other
	require.NoError(t, k.Acquire(ctx, "guest:abc", 10*time.Millisecond))

	k.Release("user:1")
	assert.False(t, k.Held("user:1"))

	// idempotent
	assert.NotPanics(t, func() {
		k.Release("user:1")
		k.Release("never-held")
	})
}

func TestKeyedMutex_Timeout(t *testing.T) {
	reg := metrics.NewRegistry()
	k := NewKeyedMutex(WithPollInterval(time.Millisecond), WithMetrics(reg))
	ctx := context.Background()

	require.NoError(t, k.Acquire(ctx, "user:1", time.Second))

	start := time.Now()
	err := k.Acquire(ctx, "user:1", 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, uint64(1), reg.Snapshot()["lock.timeouts"])
}

func TestKeyedMutex_WaitsForRelease(t *testing.T) {
	k := NewKeyedMutex(WithPollInterval(time.Millisecond))
	ctx := context.Background()

	require.NoError(t, k.Acquire(ctx, "user:1", time.Second))
	go func() {
		time.Sleep(10 * time.Millisecond)
		k.Release("user:1")
	}()

	assert.NoError(t, k.Acquire(ctx, "user:1", time.Second))
}

func TestKeyedMutex_ContextCanceled(t *testing.T) {
	k := NewKeyedMutex(WithPollInterval(time.Millisecond))
	require.NoError(t, k.Acquire(context.Background(), "k", time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := k.Acquire(ctx, "k", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithLock(t *testing.T) {
	k := NewKeyedMutex(WithPollInterval(time.Millisecond))
	ctx := context.Background()

	t.Run("ReleasesOnError", func(t *testing.T) {
		boom := errors.New("boom")
		err := WithLock(ctx, k, "cart", time.Second, func() error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.False(t, k.Held("cart"))
	})

	t.Run("ReleasesOnPanic", func(t *testing.T) {
		assert.Panics(t, func() {
			_ = WithLock(ctx, k, "cart", time.Second, func() error { panic("x") })
		})
		assert.False(t, k.Held("cart"))
	})

	t.Run("SerializesReadModifyWrite", func(t *testing.T) {
		counter := 0
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := WithLock(ctx, k, "cart", 5*time.Second, func() error {
					v := counter
					time.Sleep(time.Millisecond)
					counter = v + 1
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Equal(t, 20, counter)
	})
}
