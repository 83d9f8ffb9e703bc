package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/coachledger-backend/internal/ledger"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
)

const (
	defaultReconcileBatch       = 100
	defaultReconcileMinAge      = 2 * time.Minute
	defaultReconcileParallelism = 4
)

type payoutReconciler interface {
	InFlight(ctx context.Context, olderThan time.Duration, limit int) ([]uuid.UUID, error)
	Reconcile(ctx context.Context, payoutID uuid.UUID) (*ledger.Entry, error)
}

// PayoutReconcileJobParams configures gateway status polling.
type PayoutReconcileJobParams struct {
	Logger      *logger.Logger
	Payouts     payoutReconciler
	BatchSize   int
	MinAge      time.Duration
	Parallelism int
}

func NewPayoutReconcileJob(params PayoutReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout service required")
	}
	if params.BatchSize <= 0 {
		params.BatchSize = defaultReconcileBatch
	}
	if params.MinAge <= 0 {
		params.MinAge = defaultReconcileMinAge
	}
	if params.Parallelism <= 0 {
		params.Parallelism = defaultReconcileParallelism
	}
	return &payoutReconcileJob{
		logg:        params.Logger,
		payouts:     params.Payouts,
		batchSize:   params.BatchSize,
		minAge:      params.MinAge,
		parallelism: params.Parallelism,
	}, nil
}

type payoutReconcileJob struct {
	logg        *logger.Logger
	payouts     payoutReconciler
	batchSize   int
	minAge      time.Duration
	parallelism int
}

func (j *payoutReconcileJob) Name() string { return "payout-reconcile" }

// Run reconciles one batch of processing payouts. Anything left over is picked up next cycle.
func (j *payoutReconcileJob) Run(ctx context.Context) error {
	ids, err := j.payouts.InFlight(ctx, j.minAge, j.batchSize)
	if err != nil {
		return fmt.Errorf("list in-flight payouts: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	var (
		mu      sync.Mutex
		errs    error
		settled = map[string]int{}
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(j.parallelism)
	for _, id := range ids {
		payoutID := id
		group.Go(func() error {
			entry, err := j.payouts.Reconcile(groupCtx, payoutID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("payout %s: %w", payoutID, err))
				return nil
			}
			settled[string(entry.Status)]++
			return nil
		})
	}
	_ = group.Wait()

	fields := map[string]any{"checked": len(ids), "errors": len(multierr.Errors(errs))}
	for status, n := range settled {
		fields["status_"+status] = n
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "payout reconciliation complete")
	return errs
}
