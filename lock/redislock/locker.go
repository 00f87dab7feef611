// Package redislock implements till.Locker on Redis with redsync, so tills
// in several processes can share one store without racing on stock or the
// drawer.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/xraph/till"
)

// Defaults.
const (
	DefaultExpiry     = 30 * time.Second
	DefaultRetryDelay = 50 * time.Millisecond
	DefaultWait       = 5 * time.Second
)

var _ till.Locker = (*Locker)(nil)

// Locker takes one redsync mutex per key.
type Locker struct {
	rs         *redsync.Redsync
	expiry     time.Duration
	retryDelay time.Duration
	logger     *slog.Logger
}

// Option configures a Locker.
type Option func(*Locker)

// WithExpiry sets how long a lock survives a crashed holder.
func WithExpiry(d time.Duration) Option {
	return func(l *Locker) {
		if d > 0 {
			l.expiry = d
		}
	}
}

// WithRetryDelay sets the pause between acquisition attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(l *Locker) {
		if d > 0 {
			l.retryDelay = d
		}
	}
}

// WithLogger sets the logger for the locker.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Locker) { l.logger = logger }
}

// New creates a Locker on client.
func New(client redis.UniversalClient, opts ...Option) *Locker {
	l := &Locker{
		rs:         redsync.New(goredis.NewPool(client)),
		expiry:     DefaultExpiry,
		retryDelay: DefaultRetryDelay,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock acquires keys in order. When wait elapses first, keys already held
// are released and the error matches till.ErrBusy.
func (l *Locker) Lock(ctx context.Context, keys []string, wait time.Duration) (func(context.Context) error, error) {
	if wait <= 0 {
		wait = DefaultWait
	}
	lockCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	tries := int(wait/l.retryDelay) + 1
	held := make([]*redsync.Mutex, 0, len(keys))
	for _, key := range keys {
		m := l.rs.NewMutex(key,
			redsync.WithExpiry(l.expiry),
			redsync.WithTries(tries),
			redsync.WithRetryDelay(l.retryDelay),
		)
		if err := m.LockContext(lockCtx); err != nil {
			if relErr := release(context.WithoutCancel(ctx), held); relErr != nil {
				l.logger.Warn("release after failed lock", "error", relErr)
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if isContention(err) || errors.Is(lockCtx.Err(), context.DeadlineExceeded) {
				l.logger.Debug("lock busy", "key", key, "wait", wait)
				return nil, fmt.Errorf("%w: %s", till.ErrBusy, key)
			}
			return nil, fmt.Errorf("till/redislock: lock %s: %w", key, err)
		}
		held = append(held, m)
	}

	return func(ctx context.Context) error { return release(ctx, held) }, nil
}

// release unlocks in reverse acquisition order. An expired lock is not an
// error; its holder already lost it.
func release(ctx context.Context, held []*redsync.Mutex) error {
	var errs []error
	for i := len(held) - 1; i >= 0; i-- {
		ok, err := held[i].UnlockContext(ctx)
		switch {
		case errors.Is(err, redsync.ErrLockAlreadyExpired):
		case err != nil:
			errs = append(errs, fmt.Errorf("till/redislock: unlock %s: %w", held[i].Name(), err))
		case !ok:
			errs = append(errs, fmt.Errorf("till/redislock: unlock %s: not held", held[i].Name()))
		}
	}
	return errors.Join(errs...)
}

func isContention(err error) bool {
	if errors.Is(err, redsync.ErrFailed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "lock already taken") || strings.Contains(msg, "failed to acquire lock")
}
