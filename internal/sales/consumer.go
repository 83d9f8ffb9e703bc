package sales

import (
	"context"
	"errors"
	"sync/atomic"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
	"github.com/angelmondragon/coachledger-backend/pkg/events"
	"github.com/angelmondragon/coachledger-backend/pkg/idempotency"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
)

// ConsumerName scopes the sales consumer's event markers.
const ConsumerName = "sales-ledger"

type eventGuard interface {
	Claim(ctx context.Context, eventID uuid.UUID) (idempotency.State, error)
	Complete(ctx context.Context, eventID uuid.UUID) error
	Release(ctx context.Context, eventID uuid.UUID) error
}

// Consumer turns sale-completed Pub/Sub messages into ledger rows.
type Consumer struct {
	subscription *gcppubsub.Subscriber
	sales        Service
	guard        eventGuard
	logg         *logger.Logger

	acked  atomic.Int64
	nacked atomic.Int64
}

// ConsumerStats counts settled deliveries since start.
type ConsumerStats struct {
	Acked  int64
	Nacked int64
}

func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{Acked: c.acked.Load(), Nacked: c.nacked.Load()}
}

func NewConsumer(subscription *gcppubsub.Subscriber, sales Service, guard eventGuard, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, errors.New("sales subscription is required")
	}
	if sales == nil {
		return nil, errors.New("sales service is required")
	}
	if guard == nil {
		return nil, errors.New("event guard is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{subscription: subscription, sales: sales, guard: guard, logg: logg}, nil
}

// Run receives messages until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if c.handle(innerCtx, msg.ID, msg.Data) {
			c.nacked.Add(1)
			msg.Nack()
			return
		}
		c.acked.Add(1)
		msg.Ack()
	})
}

// handle reports whether the message should be redelivered.
func (c *Consumer) handle(ctx context.Context, messageID string, data []byte) (retry bool) {
	fields := map[string]any{"message_id": messageID}
	logCtx := c.logg.WithFields(ctx, fields)

	env, err := events.DecodeEnvelope(data)
	if err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "invalid sale envelope")
		return false
	}
	fields["event_id"] = env.EventID.String()
	fields["event_type"] = env.EventType
	logCtx = c.logg.WithFields(ctx, fields)

	evt, err := events.DecodeSaleCompleted(env)
	if err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "unsupported sale event")
		return false
	}
	input, err := FromEvent(evt)
	if err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "malformed sale payload")
		return false
	}

	state, err := c.guard.Claim(logCtx, env.EventID)
	if err != nil {
		c.logg.Error(logCtx, "event claim failed", err)
		return true
	}
	switch state {
	case idempotency.Done:
		c.logg.Info(logCtx, "sale event already processed")
		return false
	case idempotency.InFlight:
		c.logg.Info(logCtx, "sale event is being handled by another delivery")
		return true
	}

	_, err = c.sales.Complete(logCtx, input)
	if err != nil && pkgerrors.Retryable(err) {
		c.logg.Error(logCtx, "sale event failed", err)
		if relErr := c.guard.Release(logCtx, env.EventID); relErr != nil {
			c.logg.Error(logCtx, "release event claim", relErr)
		}
		return true
	}
	if err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "sale event rejected")
	}
	if doneErr := c.guard.Complete(logCtx, env.EventID); doneErr != nil {
		// the claim expires on its own and ledger constraints absorb the rerun
		c.logg.Error(logCtx, "mark sale event done", doneErr)
	}
	return false
}
