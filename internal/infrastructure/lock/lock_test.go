package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRedis_WithLockRunsAndReleases(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewRedis(client, Options{})

	executed := false
	err := l.WithLock(context.Background(), PurchaseKey(7), func(ctx context.Context) error {
		executed = true
		assert.True(t, mr.Exists("lock:purchase:7"))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, executed)
	assert.False(t, mr.Exists("lock:purchase:7"))
}

func TestRedis_WithLockPropagatesError(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := NewRedis(client, Options{})

	err := l.WithLock(context.Background(), "k", func(ctx context.Context) error {
		return assert.AnError
	})
	assert.Equal(t, assert.AnError, err)
}

func TestRedis_SerialisesConcurrentHolders(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := NewRedis(client, Options{Tries: 200, RetryDelay: 5 * time.Millisecond})

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithLock(context.Background(), "shared", func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestRedis_BusyLockGivesUp(t *testing.T) {
	client, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("held", "someone-else"))
	l := NewRedis(client, Options{Tries: 2, RetryDelay: time.Millisecond})

	err := l.WithLock(context.Background(), "held", func(ctx context.Context) error {
		t.Fatal("must not run")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockBusy)
}

func TestNoop_RunsDirectly(t *testing.T) {
	called := false
	err := Noop{}.WithLock(context.Background(), "x", func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}
