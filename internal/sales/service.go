package sales

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/coachledger-backend/internal/commissions"
	"github.com/angelmondragon/coachledger-backend/internal/fees"
	"github.com/angelmondragon/coachledger-backend/internal/ledger"
	"github.com/angelmondragon/coachledger-backend/internal/settings"
	"github.com/angelmondragon/coachledger-backend/pkg/db"
	"github.com/angelmondragon/coachledger-backend/pkg/db/models"
	"github.com/angelmondragon/coachledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
	"github.com/angelmondragon/coachledger-backend/pkg/events"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
	"github.com/angelmondragon/coachledger-backend/pkg/types"
)

// CoachLookup confirms the seller is known before anything is written.
type CoachLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coach, error)
}

// Input is a completed sale as reported by the checkout flow.
type Input struct {
	SaleID          uuid.UUID
	CoachID         uuid.UUID
	GrossAmount     decimal.Decimal
	Currency        enums.Currency
	TransactionType enums.TransactionType
	ProductInfo     json.RawMessage
	Overrides       *fees.Overrides
	OccurredAt      time.Time
}

// Result lists what the sale produced. Duplicate is set when the sale row already existed.
type Result struct {
	SaleID      uuid.UUID      `json:"sale_id"`
	Sale        *ledger.Entry  `json:"sale,omitempty"`
	Commissions []ledger.Entry `json:"commissions"`
	// CommissionCost is what the platform owes the upline for this sale.
	CommissionCost decimal.Decimal `json:"commission_cost"`
	Duplicate      bool            `json:"duplicate"`
}

// Service records completed sales and their commissions.
type Service interface {
	Complete(ctx context.Context, input Input) (*Result, error)
}

// ServiceParams wires the sale completion use case.
type ServiceParams struct {
	Ledger   ledger.Repository
	Coaches  CoachLookup
	Settings settings.Provider
	Engine   commissions.Engine
	Logger   *logger.Logger
}

type service struct {
	ledger   ledger.Repository
	coaches  CoachLookup
	settings settings.Provider
	engine   commissions.Engine
	logger   *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Ledger == nil:
		return nil, fmt.Errorf("ledger repository required")
	case params.Coaches == nil:
		return nil, fmt.Errorf("coach lookup required")
	case params.Settings == nil:
		return nil, fmt.Errorf("settings provider required")
	case params.Engine == nil:
		return nil, fmt.Errorf("commission engine required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &service{
		ledger:   params.Ledger,
		coaches:  params.Coaches,
		settings: params.Settings,
		engine:   params.Engine,
		logger:   params.Logger,
	}, nil
}

// Complete records the sale and fans commissions out to the seller's upline.
//
// direct_sale writes the seller's sale row (id = sale id) then runs the level walk.
// commission_earned writes the seller's direct commission then runs the level walk.
// Referral and performance bonuses are a single earning row with no fan-out.
// Redelivery is safe: existing rows are echoed and the level walk only fills gaps.
func (s *service) Complete(ctx context.Context, input Input) (*Result, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if input.Currency == "" {
		input.Currency = enums.BaseCurrency
	}
	input.GrossAmount = types.RoundMoney(input.GrossAmount)

	ctx = s.logger.WithFields(ctx, map[string]any{
		"sale_id":          input.SaleID.String(),
		"coach_id":         input.CoachID.String(),
		"transaction_type": string(input.TransactionType),
	})

	if _, err := s.coaches.FindByID(ctx, input.CoachID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller is not a known coach")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{SaleID: input.SaleID, Commissions: []ledger.Entry{}}
	sale := commissions.Sale{
		ID:              input.SaleID,
		CoachID:         input.CoachID,
		GrossAmount:     input.GrossAmount,
		Currency:        input.Currency,
		TransactionType: input.TransactionType,
		ProductInfo:     input.ProductInfo,
	}

	switch input.TransactionType {
	case enums.TransactionTypeDirectSale, enums.TransactionTypeReferralBonus, enums.TransactionTypePerformanceBonus:
		row, duplicate, err := s.recordSale(ctx, input, cfg)
		if err != nil {
			return nil, err
		}
		entry := ledger.ToEntry(*row)
		result.Sale = &entry
		result.Duplicate = duplicate
		if input.TransactionType != enums.TransactionTypeDirectSale {
			return result, nil
		}
	case enums.TransactionTypeCommissionEarned:
		row, err := s.engine.DirectCommission(ctx, sale, cfg)
		if err != nil {
			return nil, err
		}
		if row != nil {
			result.Commissions = append(result.Commissions, ledger.ToEntry(*row))
		}
	}

	rows, err := s.engine.Distribute(ctx, sale, cfg)
	for _, row := range rows {
		result.Commissions = append(result.Commissions, ledger.ToEntry(row))
	}
	result.CommissionCost = ledger.CommissionCost(result.Commissions)
	if err != nil {
		return result, err
	}

	s.logger.Info(s.logger.WithFields(ctx, map[string]any{
		"commission_rows": len(result.Commissions),
		"commission_cost": result.CommissionCost.StringFixed(2),
	}), "sale recorded")
	return result, nil
}

func (s *service) recordSale(ctx context.Context, input Input, cfg settings.Settings) (*models.Transaction, bool, error) {
	breakdown, err := fees.Compute(input.GrossAmount, input.TransactionType, cfg, input.Overrides)
	if err != nil {
		return nil, false, err
	}
	row := &models.Transaction{
		ID:          input.SaleID,
		CoachID:     input.CoachID,
		Direction:   enums.DirectionIncoming,
		Type:        input.TransactionType,
		GrossAmount: breakdown.GrossAmount,
		NetAmount:   breakdown.NetAmount,
		Currency:    input.Currency,
		Fees: models.Fees{
			PlatformFee: breakdown.PlatformFee,
			GSTAmount:   breakdown.GSTAmount,
			TDSAmount:   breakdown.TDSAmount,
			TaxAmount:   breakdown.TotalTax,
		},
		Status:          enums.TransactionStatusCompleted,
		ProductInfo:     input.ProductInfo,
		TransactionDate: input.OccurredAt.UTC(),
	}

	err = s.ledger.Create(ctx, row)
	if err == nil {
		return row, false, nil
	}
	if !db.IsUniqueViolation(err, db.ConstraintTransactionPK) {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record sale")
	}
	existing, err := s.ledger.FindByID(ctx, input.SaleID)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load existing sale")
	}
	if existing.CoachID != input.CoachID || existing.Type != input.TransactionType {
		return nil, false, pkgerrors.New(pkgerrors.CodeConflict, "sale id already recorded for a different sale")
	}
	s.logger.Info(ctx, "sale already recorded")
	return existing, true, nil
}

func (in Input) validate() error {
	if in.SaleID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "sale id required")
	}
	if in.CoachID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "coach id required")
	}
	if !in.GrossAmount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "gross amount must be positive")
	}
	if in.Currency != "" && !in.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}
	switch in.TransactionType {
	case enums.TransactionTypeDirectSale, enums.TransactionTypeCommissionEarned,
		enums.TransactionTypeReferralBonus, enums.TransactionTypePerformanceBonus:
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "unsupported sale transaction type").
		WithDetails(map[string]string{"transaction_type": string(in.TransactionType)})
}

// FromEvent converts a sale-completed payload into an Input.
func FromEvent(evt events.SaleCompleted) (Input, error) {
	gross, err := types.ParseMoney(evt.GrossAmount)
	if err != nil {
		return Input{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "gross amount")
	}
	currency, err := enums.ParseCurrency(evt.Currency)
	if err != nil {
		return Input{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "currency")
	}
	in := Input{
		SaleID:          evt.SaleID,
		CoachID:         evt.CoachID,
		GrossAmount:     gross,
		Currency:        currency,
		TransactionType: enums.TransactionType(evt.TransactionType),
		ProductInfo:     evt.ProductInfo,
		OccurredAt:      evt.OccurredAt,
	}
	if in.TransactionType == "" {
		in.TransactionType = enums.TransactionTypeDirectSale
	}
	if evt.Overrides != nil {
		o := &fees.Overrides{GSTEnabled: evt.Overrides.GSTEnabled}
		if evt.Overrides.FixedFee != nil {
			v, err := types.ParseMoney(*evt.Overrides.FixedFee)
			if err != nil {
				return Input{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "fixed fee override")
			}
			o.FixedFee = &v
		}
		if evt.Overrides.TDSThreshold != nil {
			v, err := types.ParseMoney(*evt.Overrides.TDSThreshold)
			if err != nil {
				return Input{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "tds threshold override")
			}
			o.TDSThreshold = &v
		}
		in.Overrides = o
	}
	return in, nil
}
