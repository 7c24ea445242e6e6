// Package lock serialises work on a single key across API instances.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var ErrLockBusy = errors.New("resource is locked, try again")

// Locker runs fn while holding the lock named key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// Noop runs fn directly. Used when Redis is not configured; the database
// transaction still serialises writers.
type Noop struct{}

func (Noop) WithLock(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

type Options struct {
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		Expiry:     10 * time.Second,
		Tries:      20,
		RetryDelay: 100 * time.Millisecond,
	}
}

// Redis is a Locker backed by redsync.
type Redis struct {
	rs   *redsync.Redsync
	opts Options
}

func NewRedis(rdb redis.UniversalClient, opts Options) *Redis {
	def := DefaultOptions()
	if opts.Expiry <= 0 {
		opts.Expiry = def.Expiry
	}
	if opts.Tries < 1 {
		opts.Tries = def.Tries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	return &Redis{rs: redsync.New(goredis.NewPool(rdb)), opts: opts}
}

// WithLock returns fn's error unchanged, or ErrLockBusy when the lock could not
// be taken within the configured tries.
func (l *Redis) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	mutex := l.rs.NewMutex(key,
		redsync.WithExpiry(l.opts.Expiry),
		redsync.WithTries(l.opts.Tries),
		redsync.WithRetryDelay(l.opts.RetryDelay),
	)
	if err := mutex.LockContext(ctx); err != nil {
		log.Warn().Err(err).Str("lock_key", key).Msg("failed to acquire lock")
		return fmt.Errorf("%w: %s", ErrLockBusy, key)
	}
	defer func() {
		if ok, err := mutex.UnlockContext(context.WithoutCancel(ctx)); !ok || err != nil {
			log.Warn().Err(err).Str("lock_key", key).Bool("unlock_ok", ok).Msg("failed to release lock")
		}
	}()
	return fn(ctx)
}

// PurchaseKey names the lock guarding one purchase's ledger.
func PurchaseKey(purchaseID uint) string {
	return fmt.Sprintf("lock:purchase:%d", purchaseID)
}

// LotKey names the lock guarding a lot while it is being bought.
func LotKey(lotID uint) string {
	return fmt.Sprintf("lock:lot:%d", lotID)
}
