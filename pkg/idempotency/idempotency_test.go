package idempotency

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type memStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newMemStore() *memStore {
	return &memStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return nil
}

func (m *memStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memStore) IdempotencyKey(scope, id string) string {
	return "cl:idempotency:" + scope + ":" + id
}

func newTestGuard(t *testing.T, store *memStore) *Guard {
	t.Helper()
	guard, err := NewGuard(store, "sales-ledger", 5*time.Minute, 720*time.Hour)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	return guard
}

func TestGuardLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	guard := newTestGuard(t, store)
	eventID := uuid.New()
	key := "cl:idempotency:evt:sales-ledger:" + eventID.String()

	state, err := guard.Claim(ctx, eventID)
	if err != nil || state != Fresh {
		t.Fatalf("first claim: state=%v err=%v", state, err)
	}
	if !strings.HasPrefix(store.values[key], claimedPrefix) || store.ttls[key] != 5*time.Minute {
		t.Fatalf("unexpected claim marker %q ttl %v", store.values[key], store.ttls[key])
	}

	if state, _ := guard.Claim(ctx, eventID); state != InFlight {
		t.Fatalf("concurrent delivery should see in-flight, got %v", state)
	}

	if err := guard.Complete(ctx, eventID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if store.ttls[key] != 720*time.Hour {
		t.Fatalf("done marker should use the long ttl, got %v", store.ttls[key])
	}
	if state, _ := guard.Claim(ctx, eventID); state != Done {
		t.Fatalf("redelivery after completion should be done, got %v", state)
	}
}

func TestGuardReleaseAllowsRetry(t *testing.T) {
	ctx := context.Background()
	guard := newTestGuard(t, newMemStore())
	eventID := uuid.New()

	if _, err := guard.Claim(ctx, eventID); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := guard.Release(ctx, eventID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if state, _ := guard.Claim(ctx, eventID); state != Fresh {
		t.Fatalf("released event should be claimable, got %v", state)
	}
}

func TestGuardErrors(t *testing.T) {
	store := newMemStore()
	guard := newTestGuard(t, store)

	if _, err := guard.Claim(context.Background(), uuid.Nil); err == nil {
		t.Fatal("expected missing event id error")
	}
	store.err = errors.New("redis down")
	if _, err := guard.Claim(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected store error to surface")
	}
}

func TestNewGuardValidation(t *testing.T) {
	store := newMemStore()
	cases := []struct {
		name     string
		store    Store
		consumer string
		claim    time.Duration
		done     time.Duration
	}{
		{"nil store", nil, "c", time.Minute, time.Hour},
		{"blank consumer", store, " ", time.Minute, time.Hour},
		{"zero claim", store, "c", 0, time.Hour},
		{"done shorter than claim", store, "c", time.Hour, time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewGuard(tc.store, tc.consumer, tc.claim, tc.done); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestStateString(t *testing.T) {
	if InFlight.String() != "in_flight" || Done.String() != "done" || State(9).String() != "unknown" {
		t.Fatal("unexpected state names")
	}
}
