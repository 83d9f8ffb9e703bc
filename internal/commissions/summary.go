package commissions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coachledger-backend/internal/ledger"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
)

// Summary aggregates a coach's commission earnings. Level 0 is the direct commission.
type Summary struct {
	CoachID    uuid.UUID       `json:"coach_id"`
	From       *time.Time      `json:"from,omitempty"`
	To         *time.Time      `json:"to,omitempty"`
	Levels     []LevelSummary  `json:"levels"`
	TotalGross decimal.Decimal `json:"total_gross"`
	TotalNet   decimal.Decimal `json:"total_net"`
	RowCount   int64           `json:"row_count"`
}

type LevelSummary struct {
	Level int             `json:"level"`
	Count int64           `json:"count"`
	Gross decimal.Decimal `json:"gross"`
	Net   decimal.Decimal `json:"net"`
}

func (e *engine) Summary(ctx context.Context, coachID uuid.UUID, period ledger.Period) (*Summary, error) {
	if coachID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coach id required")
	}
	if !period.From.IsZero() && !period.To.IsZero() && !period.To.After(period.From) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "period end must be after start")
	}

	totals, err := e.ledger.CommissionTotals(ctx, coachID, period)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum commissions")
	}

	summary := &Summary{
		CoachID:    coachID,
		Levels:     make([]LevelSummary, 0, len(totals)),
		TotalGross: decimal.Zero,
		TotalNet:   decimal.Zero,
	}
	if !period.From.IsZero() {
		from := period.From
		summary.From = &from
	}
	if !period.To.IsZero() {
		to := period.To
		summary.To = &to
	}
	for _, t := range totals {
		summary.Levels = append(summary.Levels, LevelSummary{Level: t.Level, Count: t.Count, Gross: t.Gross, Net: t.Net})
		summary.TotalGross = summary.TotalGross.Add(t.Gross)
		summary.TotalNet = summary.TotalNet.Add(t.Net)
		summary.RowCount += t.Count
	}
	return summary, nil
}
