// Package idempotency deduplicates at-least-once event deliveries per consumer.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// State is what a delivery finds when it claims an event.
type State int

const (
	// Fresh means the caller now owns the event and must Complete or Release it.
	Fresh State = iota
	// InFlight means another delivery holds an unexpired claim.
	InFlight
	// Done means the event was already handled.
	Done
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case InFlight:
		return "in_flight"
	case Done:
		return "done"
	}
	return "unknown"
}

const (
	claimedPrefix = "claimed:"
	doneValue     = "done"
)

// Store is the redis surface a Guard needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Guard marks events in two steps. A short claim covers the handling window so
// a crashed worker's events become claimable again; a long done marker then
// filters redeliveries. Ledger uniqueness constraints still back this up.
type Guard struct {
	store    Store
	consumer string
	claimTTL time.Duration
	doneTTL  time.Duration
}

func NewGuard(store Store, consumer string, claimTTL, doneTTL time.Duration) (*Guard, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case strings.TrimSpace(consumer) == "":
		return nil, errors.New("consumer name is required")
	case claimTTL <= 0:
		return nil, errors.New("claim ttl must be positive")
	case doneTTL < claimTTL:
		return nil, errors.New("done ttl must not be shorter than the claim ttl")
	}
	return &Guard{store: store, consumer: consumer, claimTTL: claimTTL, doneTTL: doneTTL}, nil
}

// Claim tries to take eventID for this delivery.
func (g *Guard) Claim(ctx context.Context, eventID uuid.UUID) (State, error) {
	key, err := g.key(eventID)
	if err != nil {
		return Fresh, err
	}
	won, err := g.store.SetNX(ctx, key, claimedPrefix+time.Now().UTC().Format(time.RFC3339), g.claimTTL)
	if err != nil {
		return Fresh, fmt.Errorf("claim event: %w", err)
	}
	if won {
		return Fresh, nil
	}
	current, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		// expired between SETNX and GET; let the broker redeliver
		return InFlight, nil
	case err != nil:
		return Fresh, fmt.Errorf("read event marker: %w", err)
	case current == doneValue:
		return Done, nil
	default:
		return InFlight, nil
	}
}

// Complete records eventID as handled.
func (g *Guard) Complete(ctx context.Context, eventID uuid.UUID) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	if err := g.store.Set(ctx, key, doneValue, g.doneTTL); err != nil {
		return fmt.Errorf("complete event: %w", err)
	}
	return nil
}

// Release drops the claim so the next delivery can retry.
func (g *Guard) Release(ctx context.Context, eventID uuid.UUID) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(eventID uuid.UUID) (string, error) {
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey("evt:"+g.consumer, eventID.String()), nil
}
