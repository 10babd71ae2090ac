package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const ledgerLockKey = "lock:ledger:batch"

// ErrLockBusy is returned when a batch lock could not be obtained before the context expired
var ErrLockBusy = errors.New("ledger batch lock is held by another writer")

// BatchLocker serializes ledger batch writes across processes
type BatchLocker interface {
	// Lock blocks until the lock is held and returns the function that releases it
	Lock(ctx context.Context) (func(), error)
}

type redisBatchLocker struct {
	locker *redislock.Client
	ttl    time.Duration
	retry  redislock.RetryStrategy
}

type noopBatchLocker struct{}

// NewBatchLocker returns a redislock based locker, or a no-op locker when client is nil
func NewBatchLocker(client *redis.Client, ttl time.Duration) BatchLocker {
	if client == nil {
		return noopBatchLocker{}
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &redisBatchLocker{
		locker: redislock.New(client),
		ttl:    ttl,
		retry:  redislock.LinearBackoff(100 * time.Millisecond),
	}
}

func (l *redisBatchLocker) Lock(ctx context.Context) (func(), error) {
	// retries until ctx is done, or for one ttl when ctx has no deadline
	lock, err := l.locker.Obtain(ctx, ledgerLockKey, l.ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockBusy
	}
	if err != nil {
		return nil, fmt.Errorf("obtain ledger lock: %w", err)
	}

	return func() {
		// release with a fresh context so a cancelled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			log.Warn().Err(err).Msg("failed to release ledger lock")
		}
	}, nil
}

func (noopBatchLocker) Lock(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return func() {}, nil
}
