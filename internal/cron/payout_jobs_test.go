package cron

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coachledger-backend/internal/balance"
	"github.com/angelmondragon/coachledger-backend/internal/ledger"
	"github.com/angelmondragon/coachledger-backend/internal/payouts"
	"github.com/angelmondragon/coachledger-backend/internal/settings"
	"github.com/angelmondragon/coachledger-backend/pkg/db/models"
	"github.com/angelmondragon/coachledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
)

type staticSettings struct{ s settings.Settings }

func (p staticSettings) Get(context.Context) (settings.Settings, error) { return p.s, nil }

type pagedCoaches struct {
	ids   []uuid.UUID
	calls int
}

func (p *pagedCoaches) ListPayoutReady(_ context.Context, after uuid.UUID, limit int) ([]models.Coach, error) {
	p.calls++
	start := 0
	if after != uuid.Nil {
		for i, id := range p.ids {
			if id == after {
				start = i + 1
			}
		}
	}
	var out []models.Coach
	for _, id := range p.ids[start:] {
		if len(out) == limit {
			break
		}
		out = append(out, models.Coach{ID: id})
	}
	return out, nil
}

type mapBalances map[uuid.UUID]decimal.Decimal

func (m mapBalances) Get(_ context.Context, coachID uuid.UUID, _ ledger.Period) (*balance.Balance, error) {
	return &balance.Balance{CoachID: coachID, Spendable: m[coachID]}, nil
}

type recordingPayouts struct {
	mu        sync.Mutex
	inputs    []payouts.RequestInput
	tried     []string
	errFor    map[uuid.UUID]error
	errForKey map[string]error
}

func (r *recordingPayouts) RequestPayout(_ context.Context, input payouts.RequestInput) (*ledger.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tried = append(r.tried, input.IdempotencyKey)
	if err := r.errFor[input.CoachID]; err != nil {
		return nil, err
	}
	if err := r.errForKey[input.IdempotencyKey]; err != nil {
		return nil, err
	}
	r.inputs = append(r.inputs, input)
	return &ledger.Entry{ID: uuid.New(), CoachID: input.CoachID}, nil
}

func monthlySettings(day int) settings.Settings {
	return settings.Settings{
		MinimumPayoutAmount: decimal.NewFromInt(500),
		Payout:              settings.Payout{MonthlyDayOfMonth: day},
	}
}

func TestMonthlyPayoutJobSkipsOtherDays(t *testing.T) {
	coaches := &pagedCoaches{ids: []uuid.UUID{uuid.New()}}
	job, err := NewMonthlyPayoutJob(MonthlyPayoutJobParams{
		Logger:   logger.Nop(),
		Coaches:  coaches,
		Balances: mapBalances{},
		Settings: staticSettings{s: monthlySettings(1)},
		Payouts:  &recordingPayouts{},
		Now:      func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if coaches.calls != 0 {
		t.Fatalf("expected no listing off the payout day, got %d calls", coaches.calls)
	}
}

func TestMonthlyPayoutJobPaysEligibleCoaches(t *testing.T) {
	rich, poor, gone, broken := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	ids := []uuid.UUID{rich, poor, gone, broken}
	balances := mapBalances{
		rich:   decimal.NewFromInt(1200),
		poor:   decimal.NewFromInt(100),
		gone:   decimal.NewFromInt(900),
		broken: decimal.NewFromInt(700),
	}
	requests := &recordingPayouts{errFor: map[uuid.UUID]error{
		gone:   pkgerrors.New(pkgerrors.CodeInsufficientBalance, "insufficient balance"),
		broken: pkgerrors.New(pkgerrors.CodeGateway, "gateway down"),
	}}
	job, err := NewMonthlyPayoutJob(MonthlyPayoutJobParams{
		Logger:    logger.Nop(),
		Coaches:   &pagedCoaches{ids: ids},
		Balances:  balances,
		Settings:  staticSettings{s: monthlySettings(1)},
		Payouts:   requests,
		BatchSize: 2,
		Now:       func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	err = job.Run(context.Background())
	if !pkgerrors.Is(err, pkgerrors.CodeGateway) {
		t.Fatalf("expected gateway failure to surface, got %v", err)
	}
	if len(requests.inputs) != 1 {
		t.Fatalf("expected one payout request, got %d", len(requests.inputs))
	}
	got := requests.inputs[0]
	if got.CoachID != rich || !got.Amount.Equal(decimal.NewFromInt(1200)) {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.IdempotencyKey != "monthly-2026-03" {
		t.Fatalf("unexpected idempotency key %q", got.IdempotencyKey)
	}
	if got.Narration != "Monthly payout Mar 2026" {
		t.Fatalf("unexpected narration %q", got.Narration)
	}
	if got.Instant {
		t.Fatal("monthly payouts must not be instant")
	}
}

func TestMonthlyPayoutJobRetriesAfterFailedAttempt(t *testing.T) {
	coachID := uuid.New()
	failedEarlier := pkgerrors.New(pkgerrors.CodeDuplicateOperation, "payout for this idempotency key is failed")
	requests := &recordingPayouts{errForKey: map[string]error{"monthly-2026-03": failedEarlier}}
	job, err := NewMonthlyPayoutJob(MonthlyPayoutJobParams{
		Logger:   logger.Nop(),
		Coaches:  &pagedCoaches{ids: []uuid.UUID{coachID}},
		Balances: mapBalances{coachID: decimal.NewFromInt(800)},
		Settings: staticSettings{s: monthlySettings(1)},
		Payouts:  requests,
		Now:      func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(requests.inputs) != 1 || requests.inputs[0].IdempotencyKey != "monthly-2026-03-2" {
		t.Fatalf("expected a second attempt key, got %+v", requests.inputs)
	}
}

func TestMonthlyPayoutJobStopsAfterMaxAttempts(t *testing.T) {
	coachID := uuid.New()
	requests := &recordingPayouts{errFor: map[uuid.UUID]error{
		coachID: pkgerrors.New(pkgerrors.CodeDuplicateOperation, "payout for this idempotency key is failed"),
	}}
	job, err := NewMonthlyPayoutJob(MonthlyPayoutJobParams{
		Logger:   logger.Nop(),
		Coaches:  &pagedCoaches{ids: []uuid.UUID{coachID}},
		Balances: mapBalances{coachID: decimal.NewFromInt(800)},
		Settings: staticSettings{s: monthlySettings(1)},
		Payouts:  requests,
		Now:      func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	err = job.Run(context.Background())
	if !pkgerrors.Is(err, pkgerrors.CodeDuplicateOperation) {
		t.Fatalf("expected the exhausted attempts to surface, got %v", err)
	}
	want := []string{"monthly-2026-03", "monthly-2026-03-2", "monthly-2026-03-3"}
	if len(requests.tried) != len(want) {
		t.Fatalf("expected keys %v, got %v", want, requests.tried)
	}
	for i, key := range want {
		if requests.tried[i] != key {
			t.Fatalf("expected keys %v, got %v", want, requests.tried)
		}
	}
}

func TestNewMonthlyPayoutJobRequiresDependencies(t *testing.T) {
	if _, err := NewMonthlyPayoutJob(MonthlyPayoutJobParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected error without dependencies")
	}
}

type fakeReconciler struct {
	mu       sync.Mutex
	ids      []uuid.UUID
	minAge   time.Duration
	limit    int
	results  map[uuid.UUID]enums.TransactionStatus
	failures map[uuid.UUID]error
	seen     []uuid.UUID
}

func (f *fakeReconciler) InFlight(_ context.Context, olderThan time.Duration, limit int) ([]uuid.UUID, error) {
	f.minAge = olderThan
	f.limit = limit
	return f.ids, nil
}

func (f *fakeReconciler) Reconcile(_ context.Context, id uuid.UUID) (*ledger.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, id)
	if err := f.failures[id]; err != nil {
		return nil, err
	}
	return &ledger.Entry{ID: id, Status: f.results[id]}, nil
}

func TestPayoutReconcileJobReconcilesBatch(t *testing.T) {
	done, failed, broken := uuid.New(), uuid.New(), uuid.New()
	rec := &fakeReconciler{
		ids: []uuid.UUID{done, failed, broken},
		results: map[uuid.UUID]enums.TransactionStatus{
			done:   enums.TransactionStatusCompleted,
			failed: enums.TransactionStatusFailed,
		},
		failures: map[uuid.UUID]error{broken: errors.New("gateway timeout")},
	}
	job, err := NewPayoutReconcileJob(PayoutReconcileJobParams{Logger: logger.Nop(), Payouts: rec, BatchSize: 10})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	err = job.Run(context.Background())
	if err == nil {
		t.Fatal("expected reconcile error to surface")
	}
	if len(rec.seen) != 3 {
		t.Fatalf("expected every in-flight payout to be checked, got %d", len(rec.seen))
	}
	if rec.limit != 10 || rec.minAge != defaultReconcileMinAge {
		t.Fatalf("unexpected listing args limit=%d minAge=%v", rec.limit, rec.minAge)
	}
}

func TestPayoutReconcileJobNoopWhenIdle(t *testing.T) {
	job, err := NewPayoutReconcileJob(PayoutReconcileJobParams{Logger: logger.Nop(), Payouts: &fakeReconciler{}})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}
