package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type memoryStore struct {
	values map[string]string
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryStore) ReleaseIfOwner(_ context.Context, key, owner string) (bool, error) {
	if m.values[key] != owner {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func (m *memoryStore) LockKey(scope, id string) string { return "cl:lock:" + scope + ":" + id }

func TestRedisLockerLeasesPerJob(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{values: map[string]string{}}
	first, err := NewRedisLocker(store, "cron-worker:prod", time.Minute)
	if err != nil {
		t.Fatalf("new locker: %v", err)
	}
	second, _ := NewRedisLocker(store, "cron-worker:prod", time.Minute)

	lease, ok, err := first.TryLock(ctx, "monthly-payouts")
	if err != nil || !ok {
		t.Fatalf("first lease should succeed: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := second.TryLock(ctx, "monthly-payouts"); ok {
		t.Fatal("same job must not be leased twice")
	}
	if _, ok, _ := second.TryLock(ctx, "ledger-export"); !ok {
		t.Fatal("other jobs stay leasable")
	}
	if _, held := store.values["cl:lock:cron-worker:prod:monthly-payouts"]; !held {
		t.Fatalf("unexpected keys %v", store.values)
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := second.TryLock(ctx, "monthly-payouts"); !ok {
		t.Fatal("lease after release should succeed")
	}
}

func TestLeaseReleaseAfterTakeover(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{values: map[string]string{}}
	locker, _ := NewRedisLocker(store, "cron", time.Minute)

	lease, _, _ := locker.TryLock(ctx, "payout-reconcile")
	// simulate expiry followed by another worker taking the key
	store.values["cl:lock:cron:payout-reconcile"] = "someone-else"

	if err := lease.Release(ctx); !errors.Is(err, ErrLeaseLost) {
		t.Fatalf("expected ErrLeaseLost, got %v", err)
	}
	if store.values["cl:lock:cron:payout-reconcile"] != "someone-else" {
		t.Fatal("release must not delete a lease it no longer owns")
	}
}

func TestNewRedisLockerValidates(t *testing.T) {
	if _, err := NewRedisLocker(nil, "x", 0); err == nil {
		t.Fatal("expected error without client")
	}
	if _, err := NewRedisLocker(&memoryStore{values: map[string]string{}}, "", 0); err == nil {
		t.Fatal("expected error without scope")
	}
}
