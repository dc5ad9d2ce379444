package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/altovisual/artist-management-sub002/pkg/logger"
)

const dispatchLockPrefix = "lock:signature-dispatch:"

// IdempotencyKey identifies a dispatch by contract id and document
// fingerprint (see Compositor.Fingerprint). Re-sending an unchanged contract
// yields the same key on any day.
func IdempotencyKey(contractID, fingerprint string) string {
	sum := sha256.Sum256([]byte(contractID + ":" + fingerprint))
	return hex.EncodeToString(sum[:])
}

// DispatchLock marks a dispatch as in flight. The returned release function
// is always safe to call.
type DispatchLock interface {
	Acquire(ctx context.Context, key string) (release func(context.Context), err error)
}

// RedisDispatchLock holds the in-flight marker in Redis
type RedisDispatchLock struct {
	locker *redislock.Client
	ttl    time.Duration
}

func NewRedisDispatchLock(client redis.UniversalClient, ttl time.Duration) *RedisDispatchLock {
	return &RedisDispatchLock{locker: redislock.New(client), ttl: ttl}
}

// Acquire fails with KindDispatchInFlight when another request holds the
// key. When Redis itself is unreachable the dispatch proceeds unlocked.
func (l *RedisDispatchLock) Acquire(ctx context.Context, key string) (func(context.Context), error) {
	lock, err := l.locker.Obtain(ctx, dispatchLockPrefix+key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return func(context.Context) {}, &PipelineError{
			Kind:    KindDispatchInFlight,
			Message: "A signature request for this contract is already in progress",
			Details: key,
		}
	}
	if err != nil {
		logger.Warn(ctx, "could not obtain dispatch lock; proceeding without lock", "error", err)
		return func(context.Context) {}, nil
	}

	return func(ctx context.Context) {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.Warn(ctx, "failed to release dispatch lock", "error", err)
		}
	}, nil
}

// NoopDispatchLock is used when no Redis is configured
type NoopDispatchLock struct{}

func (NoopDispatchLock) Acquire(context.Context, string) (func(context.Context), error) {
	return func(context.Context) {}, nil
}
