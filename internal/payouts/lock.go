package payouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
)

const (
	lockScope         = "payout"
	defaultLockTTL    = 30 * time.Second
	defaultLockWait   = 5 * time.Second
	lockRetryInterval = 50 * time.Millisecond
)

// Locker serializes payout work for a single coach.
type Locker interface {
	Lock(ctx context.Context, coachID uuid.UUID) (release func(), err error)
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseIfOwner(ctx context.Context, key, owner string) (bool, error)
	LockKey(scope, id string) string
}

// RedisLocker is a per-coach lock built on SETNX with an owner token.
type RedisLocker struct {
	store lockStore
	ttl   time.Duration
	wait  time.Duration
}

// NewRedisLocker builds a Redis-backed per-coach locker. The ttl must outlive one
// payout submission including the gateway timeout.
func NewRedisLocker(store lockStore, ttl, wait time.Duration) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("redis client required for payout lock")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &RedisLocker{store: store, ttl: ttl, wait: wait}, nil
}

// Lock waits up to the configured wait for the coach's lock.
func (l *RedisLocker) Lock(ctx context.Context, coachID uuid.UUID) (func(), error) {
	key := l.store.LockKey(lockScope, coachID.String())
	owner := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.store.SetNX(ctx, key, owner, l.ttl)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire payout lock")
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
				defer cancel()
				_, _ = l.store.ReleaseIfOwner(releaseCtx, key, owner)
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "another payout for this coach is in progress")
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for payout lock: %w", ctx.Err())
		case <-time.After(lockRetryInterval):
		}
	}
}
