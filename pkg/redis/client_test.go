package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/coachledger-backend/pkg/config"
)

func TestIncrWithTTLArmsExpiryOnce(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommander()
	client := &Client{cmd: fake}
	key := client.RateLimitKey("payout:caller", "coach-1")

	for want := int64(1); want <= 3; want++ {
		got, err := client.IncrWithTTL(ctx, key, time.Hour)
		if err != nil {
			t.Fatalf("incr %d: %v", want, err)
		}
		if got != want {
			t.Fatalf("expected counter %d got %d", want, got)
		}
	}
	if ttl := fake.ttls[key]; ttl != time.Hour {
		t.Fatalf("expected window of 1h, got %v", ttl)
	}
	if fake.expiries != 1 {
		t.Fatalf("expiry should be armed once, got %d", fake.expiries)
	}
}

func TestReleaseIfOwner(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeCommander()}
	key := client.LockKey("payout", "coach-1")

	ok, err := client.SetNX(ctx, key, "owner-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected lock acquisition, ok=%v err=%v", ok, err)
	}

	released, err := client.ReleaseIfOwner(ctx, key, "owner-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if released {
		t.Fatalf("foreign owner must not release the lock")
	}

	released, err = client.ReleaseIfOwner(ctx, key, "owner-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !released {
		t.Fatalf("owner should release the lock")
	}
	if _, err := client.Get(ctx, key); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil after release, got %v", err)
	}
}

func TestZeroClientReportsNotConnected(t *testing.T) {
	var client Client
	if err := client.Ping(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if _, err := client.IncrWithTTL(context.Background(), "k", time.Second); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("closing a zero client should be a no-op, got %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	cases := map[string]string{
		client.IdempotencyKey("scope", "id"):          "cl:idempotency:scope:id",
		client.RateLimitKey("api:ip", "10.0.0.1"):     "cl:rate_limit:api:ip:10.0.0.1",
		client.LockKey("payout", "coach-1"):           "cl:lock:payout:coach-1",
		client.WatermarkKey("ledger-export"):          "cl:watermark:ledger-export",
		client.LockKey("cron", ""):                    "cl:lock:cron",
		client.IdempotencyKey(" sales ", " sale-42 "): "cl:idempotency:sales:sale-42",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected %s got %s", want, got)
		}
	}
}

func TestBuildOptions(t *testing.T) {
	opts, err := buildOptions(config.RedisConfig{
		URL:         "redis://:pw@cache.internal:6380/2",
		PoolSize:    25,
		DialTimeout: 3 * time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache.internal:6380" || opts.DB != 2 || opts.Password != "pw" {
		t.Fatalf("url settings not applied: %+v", opts)
	}
	if opts.PoolSize != 25 || opts.DialTimeout != 3*time.Second {
		t.Fatalf("discrete settings should fill gaps: pool=%d dial=%v", opts.PoolSize, opts.DialTimeout)
	}

	if _, err := buildOptions(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}
}

type fakeCommander struct {
	data     map[string]string
	counters map[string]int64
	ttls     map[string]time.Duration
	expiries int
}

func newFakeCommander() *fakeCommander {
	return &fakeCommander{
		data:     map[string]string{},
		counters: map[string]int64{},
		ttls:     map[string]time.Duration{},
	}
}

func (f *fakeCommander) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCommander) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCommander) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCommander) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := f.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommander) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(f.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (f *fakeCommander) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	if len(keys) != 1 || len(args) != 1 {
		return redis.NewCmdResult(nil, fmt.Errorf("unexpected eval arity"))
	}
	key := keys[0]
	switch script {
	case incrWindowScript:
		f.counters[key]++
		if f.counters[key] == 1 {
			ms, _ := args[0].(int64)
			f.ttls[key] = time.Duration(ms) * time.Millisecond
			f.expiries++
		}
		return redis.NewCmdResult(f.counters[key], nil)
	case releaseOwnerScript:
		if v, ok := f.data[key]; ok && v == fmt.Sprint(args[0]) {
			delete(f.data, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unknown script"))
}
