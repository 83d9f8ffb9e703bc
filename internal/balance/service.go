package balance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coachledger-backend/internal/ledger"
	"github.com/angelmondragon/coachledger-backend/internal/settings"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
)

// Balance is a coach's derived balance.
//
// Available is settled incoming minus completed outgoing over the requested period.
// Reserved and Spendable are always lifetime figures: payouts are authorized against
// Spendable.
type Balance struct {
	CoachID          uuid.UUID       `json:"coach_id"`
	From             *time.Time      `json:"from,omitempty"`
	To               *time.Time      `json:"to,omitempty"`
	Incoming         decimal.Decimal `json:"incoming"`
	Outgoing         decimal.Decimal `json:"outgoing"`
	Available        decimal.Decimal `json:"available"`
	Reserved         decimal.Decimal `json:"reserved"`
	Spendable        decimal.Decimal `json:"spendable"`
	MinimumPayout    decimal.Decimal `json:"minimum_payout"`
	CanRequestPayout bool            `json:"can_request_payout"`
}

// Service derives balances from the ledger.
type Service interface {
	Get(ctx context.Context, coachID uuid.UUID, period ledger.Period) (*Balance, error)
}

type service struct {
	ledger   ledger.Repository
	settings settings.Provider
}

// NewService builds a balance service.
func NewService(repo ledger.Repository, provider settings.Provider) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if provider == nil {
		return nil, fmt.Errorf("settings provider required")
	}
	return &service{ledger: repo, settings: provider}, nil
}

func (s *service) Get(ctx context.Context, coachID uuid.UUID, period ledger.Period) (*Balance, error) {
	if coachID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coach id required")
	}
	if !period.From.IsZero() && !period.To.IsZero() && !period.To.After(period.From) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "period end must be after start")
	}
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	lifetime, err := Compute(ctx, s.ledger, coachID)
	if err != nil {
		return nil, err
	}

	b := &Balance{
		CoachID:          coachID,
		Incoming:         lifetime.Incoming,
		Outgoing:         lifetime.Outgoing,
		Available:        lifetime.Available,
		Reserved:         lifetime.Reserved,
		Spendable:        lifetime.Spendable,
		MinimumPayout:    cfg.MinimumPayoutAmount,
		CanRequestPayout: lifetime.Spendable.GreaterThanOrEqual(cfg.MinimumPayoutAmount) && lifetime.Spendable.IsPositive(),
	}

	if !period.From.IsZero() || !period.To.IsZero() {
		totals, err := s.ledger.Totals(ctx, coachID, period)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum period balance")
		}
		b.Incoming = totals.Incoming
		b.Outgoing = totals.Outgoing
		b.Available = totals.Incoming.Sub(totals.Outgoing)
		if !period.From.IsZero() {
			from := period.From
			b.From = &from
		}
		if !period.To.IsZero() {
			to := period.To
			b.To = &to
		}
	}
	return b, nil
}

// Snapshot is a lifetime balance computed from one consistent read.
type Snapshot struct {
	Incoming  decimal.Decimal
	Outgoing  decimal.Decimal
	Available decimal.Decimal
	Reserved  decimal.Decimal
	Spendable decimal.Decimal
}

// Compute derives the lifetime balance using repo. Payout code passes a
// transaction-bound repository so the read and the payout insert share one unit.
func Compute(ctx context.Context, repo ledger.Repository, coachID uuid.UUID) (Snapshot, error) {
	totals, err := repo.Totals(ctx, coachID, ledger.Period{})
	if err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum balance")
	}
	available := totals.Incoming.Sub(totals.Outgoing)
	return Snapshot{
		Incoming:  totals.Incoming,
		Outgoing:  totals.Outgoing,
		Available: available,
		Reserved:  totals.Reserved,
		Spendable: available.Sub(totals.Reserved),
	}, nil
}
