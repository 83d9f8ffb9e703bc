package cron

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/coachledger-backend/internal/balance"
	"github.com/angelmondragon/coachledger-backend/internal/ledger"
	"github.com/angelmondragon/coachledger-backend/internal/payouts"
	"github.com/angelmondragon/coachledger-backend/internal/settings"
	"github.com/angelmondragon/coachledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
)

const (
	defaultMonthlyBatchSize   = 200
	defaultMonthlyParallelism = 4
	maxMonthlyAttempts        = 3
)

type payoutReadyLister interface {
	ListPayoutReady(ctx context.Context, after uuid.UUID, limit int) ([]models.Coach, error)
}

type payoutRequester interface {
	RequestPayout(ctx context.Context, input payouts.RequestInput) (*ledger.Entry, error)
}

// MonthlyPayoutJobParams configures the monthly payout batch.
type MonthlyPayoutJobParams struct {
	Logger      *logger.Logger
	Coaches     payoutReadyLister
	Balances    balance.Service
	Settings    settings.Provider
	Payouts     payoutRequester
	BatchSize   int
	Parallelism int
	Now         func() time.Time
}

// NewMonthlyPayoutJob builds the job that pays out every eligible coach's full spendable
// balance on the configured day of the month.
func NewMonthlyPayoutJob(params MonthlyPayoutJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.Coaches == nil:
		return nil, fmt.Errorf("coach lister required")
	case params.Balances == nil:
		return nil, fmt.Errorf("balance service required")
	case params.Settings == nil:
		return nil, fmt.Errorf("settings provider required")
	case params.Payouts == nil:
		return nil, fmt.Errorf("payout service required")
	}
	if params.BatchSize <= 0 {
		params.BatchSize = defaultMonthlyBatchSize
	}
	if params.Parallelism <= 0 {
		params.Parallelism = defaultMonthlyParallelism
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &monthlyPayoutJob{
		logg:        params.Logger,
		coaches:     params.Coaches,
		balances:    params.Balances,
		settings:    params.Settings,
		payouts:     params.Payouts,
		batchSize:   params.BatchSize,
		parallelism: params.Parallelism,
		now:         params.Now,
	}, nil
}

type monthlyPayoutJob struct {
	logg        *logger.Logger
	coaches     payoutReadyLister
	balances    balance.Service
	settings    settings.Provider
	payouts     payoutRequester
	batchSize   int
	parallelism int
	now         func() time.Time
}

func (j *monthlyPayoutJob) Name() string { return "monthly-payouts" }

type monthlyTally struct {
	requested atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
}

func (j *monthlyPayoutJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cfg, err := j.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if now.Day() != cfg.Payout.MonthlyDayOfMonth {
		return nil
	}

	key := "monthly-" + now.Format("2006-01")
	narration := "Monthly payout " + now.Format("Jan 2006")
	ctx = j.logg.WithField(ctx, "idempotency_key", key)

	var (
		tally  monthlyTally
		mu     sync.Mutex
		errs   error
		cursor uuid.UUID
	)
	for {
		batch, err := j.coaches.ListPayoutReady(ctx, cursor, j.batchSize)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list payout-ready coaches: %w", err))
		}
		if len(batch) == 0 {
			break
		}

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(j.parallelism)
		for _, coach := range batch {
			coachID := coach.ID
			group.Go(func() error {
				if err := j.payCoach(groupCtx, coachID, cfg, key, narration, &tally); err != nil {
					mu.Lock()
					errs = multierr.Append(errs, fmt.Errorf("coach %s: %w", coachID, err))
					mu.Unlock()
				}
				return nil
			})
		}
		_ = group.Wait()

		cursor = batch[len(batch)-1].ID
		if len(batch) < j.batchSize {
			break
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"requested": tally.requested.Load(),
		"skipped":   tally.skipped.Load(),
		"failed":    tally.failed.Load(),
	}), "monthly payout batch complete")
	return errs
}

func (j *monthlyPayoutJob) payCoach(ctx context.Context, coachID uuid.UUID, cfg settings.Settings, key, narration string, tally *monthlyTally) error {
	bal, err := j.balances.Get(ctx, coachID, ledger.Period{})
	if err != nil {
		tally.failed.Add(1)
		return err
	}
	if !bal.Spendable.IsPositive() || bal.Spendable.LessThan(cfg.MinimumPayoutAmount) {
		tally.skipped.Add(1)
		return nil
	}

	for attempt := 1; ; attempt++ {
		_, err = j.payouts.RequestPayout(ctx, payouts.RequestInput{
			CoachID:        coachID,
			Amount:         bal.Spendable,
			Narration:      narration,
			IdempotencyKey: monthlyAttemptKey(key, attempt),
		})
		// an earlier attempt this month failed or was cancelled
		if !pkgerrors.Is(err, pkgerrors.CodeDuplicateOperation) || attempt == maxMonthlyAttempts {
			break
		}
	}
	switch {
	case err == nil:
		tally.requested.Add(1)
		return nil
	case pkgerrors.Is(err, pkgerrors.CodeInsufficientBalance, pkgerrors.CodeValidation):
		// balance moved or the identity was deactivated since the listing
		tally.skipped.Add(1)
		j.logg.Warn(j.logg.WithFields(ctx, map[string]any{"coach_id": coachID.String(), "reason": err.Error()}), "monthly payout skipped")
		return nil
	default:
		tally.failed.Add(1)
		return err
	}
}

// monthlyAttemptKey keeps the first attempt on the bare monthly key.
func monthlyAttemptKey(key string, attempt int) string {
	if attempt <= 1 {
		return key
	}
	return fmt.Sprintf("%s-%d", key, attempt)
}
