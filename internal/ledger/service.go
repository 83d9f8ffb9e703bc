package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/coachledger-backend/pkg/db"
	"github.com/angelmondragon/coachledger-backend/pkg/db/models"
	"github.com/angelmondragon/coachledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
	"github.com/angelmondragon/coachledger-backend/pkg/logger"
	pkgpagination "github.com/angelmondragon/coachledger-backend/pkg/pagination"
	"github.com/angelmondragon/coachledger-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes reads and corrections over the ledger.
type Service interface {
	Get(ctx context.Context, coachID, id uuid.UUID) (*Entry, error)
	List(ctx context.Context, params ListParams) (*pkgpagination.Page[Entry], error)
	Refund(ctx context.Context, input RefundInput) (*Entry, error)
	Adjust(ctx context.Context, input AdjustInput) (*Entry, error)
	SaleCost(ctx context.Context, saleID uuid.UUID) (*SaleCost, error)
}

// RefundInput reverses part or all of a settled incoming row.
type RefundInput struct {
	OriginalID     uuid.UUID
	Amount         decimal.Decimal
	Reason         string
	IdempotencyKey string
}

// AdjustInput books a manual correction against a coach.
type AdjustInput struct {
	CoachID        uuid.UUID
	Direction      enums.TransactionDirection
	Amount         decimal.Decimal
	Reason         string
	OriginalID     *uuid.UUID
	IdempotencyKey string
}

type service struct {
	repo   Repository
	tx     txRunner
	logger *logger.Logger
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, tx: tx, logger: logg}, nil
}

// Get returns a row. A non-nil coachID restricts the lookup to that coach's rows.
func (s *service) Get(ctx context.Context, coachID, id uuid.UUID) (*Entry, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err, "load transaction")
	}
	if coachID != uuid.Nil && row.CoachID != coachID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	entry := ToEntry(*row)
	return &entry, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*pkgpagination.Page[Entry], error) {
	if params.CoachID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coach id required")
	}
	if params.Filters.Direction != "" && !params.Filters.Direction.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid direction filter")
	}

	limit := pkgpagination.NormalizeLimit(params.Limit)
	query := listQuery{
		coachID: params.CoachID,
		filters: params.Filters,
		limit:   pkgpagination.LimitWithBuffer(params.Limit),
	}
	if params.Cursor != "" {
		cursor, err := pkgpagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}

	return pkgpagination.Cut(rows, limit, entryCursor, ToEntry), nil
}

func entryCursor(row models.Transaction) pkgpagination.Cursor {
	return pkgpagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
}

func (s *service) Refund(ctx context.Context, input RefundInput) (*Entry, error) {
	if input.OriginalID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "original transaction id required")
	}
	amount := types.RoundMoney(input.Amount)
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund reason required")
	}

	var created *models.Transaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		original, err := repo.FindByID(ctx, input.OriginalID)
		if err != nil {
			return mapLookupError(err, "load original transaction")
		}
		if original.Direction != enums.DirectionIncoming {
			return pkgerrors.New(pkgerrors.CodeValidation, "only incoming transactions can be refunded")
		}

		if input.IdempotencyKey != "" {
			existing, err := repo.FindByIdempotencyKey(ctx, original.CoachID, input.IdempotencyKey)
			if err == nil {
				if existing.ReversalOf == nil || *existing.ReversalOf != original.ID {
					return pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key already used for another operation")
				}
				created = existing
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key")
			}
		}

		if !original.Status.CanReverseTo(enums.TransactionStatusPartiallyRefunded) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("transaction in status %s cannot be refunded", original.Status))
		}

		refunded, err := repo.SumReversals(ctx, original.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum prior refunds")
		}
		remaining := types.RoundMoney(original.NetAmount).Sub(refunded)
		if amount.GreaterThan(remaining) {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund exceeds refundable amount").
				WithDetails(map[string]string{"refundable": remaining.StringFixed(2)})
		}

		next := enums.TransactionStatusPartiallyRefunded
		if amount.Equal(remaining) {
			next = enums.TransactionStatusRefunded
		}

		row := &models.Transaction{
			CoachID:     original.CoachID,
			Direction:   enums.DirectionOutgoing,
			Type:        enums.TransactionTypeRefund,
			GrossAmount: amount,
			NetAmount:   amount,
			Currency:    original.Currency,
			Status:      enums.TransactionStatusCompleted,
			ReversalOf:  &original.ID,
			Description: &reason,
		}
		if input.IdempotencyKey != "" {
			key := input.IdempotencyKey
			row.IdempotencyKey = &key
		}
		if err := repo.Create(ctx, row); err != nil {
			if db.IsUniqueViolation(err, db.ConstraintIdempotencyKey) {
				return pkgerrors.Wrap(pkgerrors.CodeDuplicateOperation, err, "refund already recorded")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refund")
		}

		ok, err := repo.Transition(ctx, original.ID, original.Status, map[string]any{"status": next})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark original refunded")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "original transaction changed concurrently")
		}
		created = row
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logger.WithFields(ctx, map[string]any{
		"coach_id":       created.CoachID.String(),
		"transaction_id": created.ID.String(),
		"reversal_of":    input.OriginalID.String(),
	})
	s.logger.Info(logCtx, "refund recorded")

	entry := ToEntry(*created)
	return &entry, nil
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) (*Entry, error) {
	if input.CoachID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coach id required")
	}
	if !input.Direction.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid direction")
	}
	amount := types.RoundMoney(input.Amount)
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment amount must be positive")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment reason required")
	}

	var created *models.Transaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if input.IdempotencyKey != "" {
			existing, err := repo.FindByIdempotencyKey(ctx, input.CoachID, input.IdempotencyKey)
			if err == nil {
				if existing.Type != enums.TransactionTypeAdjustment {
					return pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key already used for another operation")
				}
				created = existing
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key")
			}
		}

		if input.OriginalID != nil {
			original, err := repo.FindByID(ctx, *input.OriginalID)
			if err != nil {
				return mapLookupError(err, "load original transaction")
			}
			if original.CoachID != input.CoachID {
				return pkgerrors.New(pkgerrors.CodeValidation, "original transaction belongs to another coach")
			}
		}

		row := &models.Transaction{
			CoachID:     input.CoachID,
			Direction:   input.Direction,
			Type:        enums.TransactionTypeAdjustment,
			GrossAmount: amount,
			NetAmount:   amount,
			Currency:    enums.CurrencyINR,
			Status:      enums.TransactionStatusCompleted,
			ReversalOf:  input.OriginalID,
			Description: &reason,
		}
		if input.IdempotencyKey != "" {
			key := input.IdempotencyKey
			row.IdempotencyKey = &key
		}
		if err := repo.Create(ctx, row); err != nil {
			if db.IsUniqueViolation(err, db.ConstraintIdempotencyKey) {
				return pkgerrors.Wrap(pkgerrors.CodeDuplicateOperation, err, "adjustment already recorded")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create adjustment")
		}
		created = row
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logger.WithFields(ctx, map[string]any{
		"coach_id":       created.CoachID.String(),
		"transaction_id": created.ID.String(),
		"direction":      string(created.Direction),
	})
	s.logger.Info(logCtx, "adjustment recorded")

	entry := ToEntry(*created)
	return &entry, nil
}

func mapLookupError(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
