package commissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/coachledger-backend/internal/fees"
	"github.com/angelmondragon/coachledger-backend/internal/ledger"
	"github.com/angelmondragon/coachledger-backend/internal/settings"
	"github.com/angelmondragon/coachledger-backend/pkg/db"
	"github.com/angelmondragon/coachledger-backend/pkg/db/models"
	"github.com/angelmondragon/coachledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
	"github.com/angelmondragon/coachledger-backend/pkg/metrics"
	"github.com/angelmondragon/coachledger-backend/pkg/types"
)

const (
	outcomeCreated   = "created"
	outcomeDuplicate = "duplicate"
	outcomeFailed    = "failed"
	outcomeSkipped   = "skipped"
)

// SponsorLookup resolves the sponsor pointer of a coach.
type SponsorLookup interface {
	SponsorOf(ctx context.Context, coachID uuid.UUID) (*uuid.UUID, error)
}

// Sale is the completed sale commissions are computed from.
type Sale struct {
	ID              uuid.UUID
	CoachID         uuid.UUID
	GrossAmount     decimal.Decimal
	Currency        enums.Currency
	TransactionType enums.TransactionType
	ProductInfo     json.RawMessage
}

// Engine creates commission rows for completed sales.
type Engine interface {
	Distribute(ctx context.Context, sale Sale, cfg settings.Settings) ([]models.Transaction, error)
	DirectCommission(ctx context.Context, sale Sale, cfg settings.Settings) (*models.Transaction, error)
	Summary(ctx context.Context, coachID uuid.UUID, period ledger.Period) (*Summary, error)
}

// EngineParams wires the engine.
type EngineParams struct {
	Ledger  ledger.Repository
	Coaches SponsorLookup
	Logger  *logger.Logger
	Metrics *metrics.LedgerMetrics
}

type engine struct {
	ledger  ledger.Repository
	coaches SponsorLookup
	logger  *logger.Logger
	metrics *metrics.LedgerMetrics
}

// NewEngine builds the commission engine.
func NewEngine(params EngineParams) (Engine, error) {
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Coaches == nil {
		return nil, fmt.Errorf("sponsor lookup required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &engine{
		ledger:  params.Ledger,
		coaches: params.Coaches,
		logger:  params.Logger,
		metrics: params.Metrics,
	}, nil
}

func (s Sale) validate() error {
	if s.ID == uuid.Nil || s.CoachID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "sale id and coach id required")
	}
	if s.GrossAmount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "gross amount must not be negative")
	}
	return nil
}

// Distribute walks the seller's sponsor chain and writes one mlm_commission row per
// configured level. Each level is written on its own: a failed write is logged, the
// walk carries on, and a retryable error naming the missed levels is returned with the
// rows that were written. Re-running for the same sale only echoes existing rows.
func (e *engine) Distribute(ctx context.Context, sale Sale, cfg settings.Settings) ([]models.Transaction, error) {
	if err := sale.validate(); err != nil {
		return nil, err
	}
	ctx = e.logger.WithFields(ctx, map[string]any{
		"sale_id":  sale.ID.String(),
		"coach_id": sale.CoachID.String(),
	})

	current, err := e.coaches.SponsorOf(ctx, sale.CoachID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller coach not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller sponsor")
	}

	visited := map[uuid.UUID]struct{}{sale.CoachID: {}}
	chain := []string{sale.CoachID.String()}
	var (
		rows   []models.Transaction
		missed []int
	)

	for level := 1; current != nil && level <= settings.MaxCommissionLevels; level++ {
		ancestor := *current
		if _, seen := visited[ancestor]; seen {
			chain = append(chain, ancestor.String())
			e.metrics.IntegrityError()
			e.logger.Warn(e.logger.WithFields(ctx, map[string]any{
				"level": level,
				"chain": strings.Join(chain, " -> "),
			}), "sponsor chain cycle detected; commission walk stopped")
			return rows, missedLevels(missed, pkgerrors.New(pkgerrors.CodeIntegrity, "sponsor chain contains a cycle"))
		}
		visited[ancestor] = struct{}{}
		chain = append(chain, ancestor.String())

		row, err := e.writeLevel(ctx, sale, cfg, ancestor, level)
		switch {
		case err != nil:
			missed = append(missed, level)
		case row != nil:
			rows = append(rows, *row)
		}

		next, err := e.coaches.SponsorOf(ctx, ancestor)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				e.logger.Warn(e.logger.WithFields(ctx, map[string]any{
					"level":       level,
					"ancestor_id": ancestor.String(),
				}), "sponsor pointer references an unknown coach; walk stopped")
				return rows, missedLevels(missed, nil)
			}
			return rows, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ancestor sponsor")
		}
		current = next
	}
	return rows, missedLevels(missed, nil)
}

// missedLevels turns failed level writes into a retryable error; otherwise it
// returns fallback unchanged.
func missedLevels(missed []int, fallback error) error {
	if len(missed) == 0 {
		return fallback
	}
	levels := make([]string, len(missed))
	for i, level := range missed {
		levels[i] = fmt.Sprint(level)
	}
	return pkgerrors.Newf(pkgerrors.CodeDependency, "commission levels %s not written", strings.Join(levels, ",")).
		WithDetails(map[string]any{"levels": missed})
}

// writeLevel returns a nil row when the level pays nothing and an error only
// when a payable row could not be stored.
func (e *engine) writeLevel(ctx context.Context, sale Sale, cfg settings.Settings, ancestor uuid.UUID, level int) (*models.Transaction, error) {
	lvl, ok := cfg.Level(level)
	if !ok || !lvl.IsActive || !lvl.Percentage.IsPositive() {
		e.metrics.CommissionRow(level, outcomeSkipped)
		return nil, nil
	}
	amount := types.Percent(sale.GrossAmount, lvl.Percentage)
	if !amount.IsPositive() {
		e.metrics.CommissionRow(level, outcomeSkipped)
		return nil, nil
	}

	levelCtx := e.logger.WithFields(ctx, map[string]any{
		"level":                 level,
		"ancestor_id":           ancestor.String(),
		"source_transaction_id": sale.ID.String(),
	})

	row, err := e.buildRow(sale, cfg, ancestor, enums.TransactionTypeMLMCommission, level, lvl.Percentage, amount)
	if err != nil {
		e.metrics.CommissionRow(level, outcomeFailed)
		e.logger.Error(levelCtx, "commission row could not be computed", err)
		return nil, err
	}
	sponsor := sale.CoachID
	row.Commission.SponsorID = &sponsor

	saved, outcome, err := e.persist(ctx, row, level)
	e.metrics.CommissionRow(level, outcome)
	if err != nil {
		e.logger.Error(levelCtx, "commission row write failed; level skipped", err)
		return nil, err
	}
	return saved, nil
}

func (e *engine) DirectCommission(ctx context.Context, sale Sale, cfg settings.Settings) (*models.Transaction, error) {
	if err := sale.validate(); err != nil {
		return nil, err
	}
	pct := cfg.DirectCommissionPercentage
	if !pct.IsPositive() {
		return nil, nil
	}
	amount := types.Percent(sale.GrossAmount, pct)
	row, err := e.buildRow(sale, cfg, sale.CoachID, enums.TransactionTypeCommissionEarned, 0, pct, amount)
	if err != nil {
		return nil, err
	}
	saved, outcome, err := e.persist(ctx, row, 0)
	e.metrics.CommissionRow(0, outcome)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record direct commission")
	}
	return saved, nil
}

func (e *engine) buildRow(sale Sale, cfg settings.Settings, coachID uuid.UUID, txType enums.TransactionType, level int, pct, amount decimal.Decimal) (*models.Transaction, error) {
	breakdown, err := fees.Compute(amount, txType, cfg, nil)
	if err != nil {
		return nil, err
	}
	currency := sale.Currency
	if currency == "" {
		currency = enums.CurrencyINR
	}
	source := sale.ID
	lvl := level
	return &models.Transaction{
		CoachID:     coachID,
		Direction:   enums.DirectionIncoming,
		Type:        txType,
		GrossAmount: breakdown.GrossAmount,
		NetAmount:   breakdown.NetAmount,
		Currency:    currency,
		Fees: models.Fees{
			PlatformFee: breakdown.PlatformFee,
			GSTAmount:   breakdown.GSTAmount,
			TDSAmount:   breakdown.TDSAmount,
			TaxAmount:   breakdown.TotalTax,
		},
		Commission: models.CommissionDetails{
			Level:               &lvl,
			Percentage:          decimal.NewNullDecimal(pct),
			BaseAmount:          decimal.NewNullDecimal(types.RoundMoney(sale.GrossAmount)),
			SourceTransactionID: &source,
		},
		Status:      enums.TransactionStatusCompleted,
		ProductInfo: sale.ProductInfo,
	}, nil
}

// persist inserts the row, echoing the stored row when the uniqueness guard fires.
func (e *engine) persist(ctx context.Context, row *models.Transaction, level int) (*models.Transaction, string, error) {
	err := e.ledger.Create(ctx, row)
	if err == nil {
		return row, outcomeCreated, nil
	}
	if !db.IsUniqueViolation(err, db.ConstraintCommissionLevel) {
		return nil, outcomeFailed, err
	}
	existing, findErr := e.ledger.FindCommission(ctx, *row.Commission.SourceTransactionID, level, row.CoachID)
	if findErr != nil {
		return nil, outcomeFailed, findErr
	}
	return existing, outcomeDuplicate, nil
}
