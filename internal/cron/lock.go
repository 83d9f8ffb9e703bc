package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLeaseTTL = 30 * time.Minute

// ErrLeaseLost reports a lease that expired, or was taken over, before release.
var ErrLeaseLost = errors.New("cron lease lost before release")

// Locker hands out one lease per job name across worker replicas.
type Locker interface {
	TryLock(ctx context.Context, job string) (Lease, bool, error)
}

// Lease is a held job lock.
type Lease interface {
	Release(ctx context.Context) error
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseIfOwner(ctx context.Context, key, owner string) (bool, error)
	LockKey(scope, id string) string
}

// RedisLocker leases job names with SETNX and an owner token.
type RedisLocker struct {
	client redisStore
	scope  string
	ttl    time.Duration
}

// NewRedisLocker builds a locker whose keys live under scope. ttl must
// outlast the slowest job.
func NewRedisLocker(client redisStore, scope string, ttl time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for cron locker")
	}
	if scope == "" {
		return nil, errors.New("cron lock scope is required")
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &RedisLocker{client: client, scope: scope, ttl: ttl}, nil
}

func (l *RedisLocker) TryLock(ctx context.Context, job string) (Lease, bool, error) {
	key := l.client.LockKey(l.scope, job)
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, owner, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("lease %s: %w", job, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{client: l.client, key: key, owner: owner}, true, nil
}

type redisLease struct {
	client redisStore
	key    string
	owner  string
}

func (l *redisLease) Release(ctx context.Context) error {
	released, err := l.client.ReleaseIfOwner(ctx, l.key, l.owner)
	if err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	if !released {
		return ErrLeaseLost
	}
	return nil
}
