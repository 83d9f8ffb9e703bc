package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/coachledger-backend/pkg/db/models"
	"github.com/angelmondragon/coachledger-backend/pkg/enums"
	pkgpagination "github.com/angelmondragon/coachledger-backend/pkg/pagination"
	"github.com/angelmondragon/coachledger-backend/pkg/types"
)

// Repository manages persistence for ledger transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, row *models.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindByIdempotencyKey(ctx context.Context, coachID uuid.UUID, key string) (*models.Transaction, error)
	FindCommission(ctx context.Context, sourceID uuid.UUID, level int, coachID uuid.UUID) (*models.Transaction, error)
	ListBySource(ctx context.Context, sourceID uuid.UUID) ([]models.Transaction, error)
	Transition(ctx context.Context, id uuid.UUID, from enums.TransactionStatus, changes map[string]any) (bool, error)
	List(ctx context.Context, q listQuery) ([]models.Transaction, error)
	SumNet(ctx context.Context, q SumQuery) (decimal.Decimal, error)
	SumReversals(ctx context.Context, originalID uuid.UUID) (decimal.Decimal, error)
	Totals(ctx context.Context, coachID uuid.UUID, period Period) (Totals, error)
	CommissionTotals(ctx context.Context, coachID uuid.UUID, period Period) ([]LevelTotal, error)
	ListPayouts(ctx context.Context, statuses []enums.TransactionStatus, initiatedBefore time.Time, limit int) ([]models.Transaction, error)
	ListCompletedSince(ctx context.Context, cursor *pkgpagination.Cursor, limit int) ([]models.Transaction, error)
}

// Period bounds a query by transaction date. Zero values leave that side open.
type Period struct {
	From time.Time
	To   time.Time
}

func (p Period) apply(q *gorm.DB) *gorm.DB {
	if !p.From.IsZero() {
		q = q.Where("transaction_date >= ?", p.From.UTC())
	}
	if !p.To.IsZero() {
		q = q.Where("transaction_date < ?", p.To.UTC())
	}
	return q
}

// SumQuery selects the rows whose net amounts are summed.
type SumQuery struct {
	CoachID   uuid.UUID
	Direction enums.TransactionDirection
	Statuses  []enums.TransactionStatus
	Types     []enums.TransactionType
	Period    Period
}

// Totals are the per-coach sums a balance is derived from.
type Totals struct {
	Incoming decimal.Decimal `gorm:"column:incoming"`
	Outgoing decimal.Decimal `gorm:"column:outgoing"`
	Reserved decimal.Decimal `gorm:"column:reserved"`
}

// LevelTotal aggregates commission rows for one level.
type LevelTotal struct {
	Level int             `gorm:"column:level"`
	Count int64           `gorm:"column:count"`
	Gross decimal.Decimal `gorm:"column:gross"`
	Net   decimal.Decimal `gorm:"column:net"`
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, row *models.Transaction) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var row models.Transaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, coachID uuid.UUID, key string) (*models.Transaction, error) {
	var row models.Transaction
	err := r.db.WithContext(ctx).
		Where("coach_id = ? AND idempotency_key = ?", coachID, key).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindCommission(ctx context.Context, sourceID uuid.UUID, level int, coachID uuid.UUID) (*models.Transaction, error) {
	var row models.Transaction
	err := r.db.WithContext(ctx).
		Where("commission_source_transaction_id = ? AND commission_level = ? AND coach_id = ?", sourceID, level, coachID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListBySource(ctx context.Context, sourceID uuid.UUID) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Where("commission_source_transaction_id = ?", sourceID).
		Order("commission_level ASC").
		Find(&rows).Error
	return rows, err
}

// Transition applies changes only while the row is still in status from.
// It reports false when another writer moved the row first.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from enums.TransactionStatus, changes map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(changes)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) List(ctx context.Context, q listQuery) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx).Model(&models.Transaction{}).Where("coach_id = ?", q.coachID)

	if len(q.filters.Types) > 0 {
		query = query.Where("type IN ?", q.filters.Types)
	}
	if len(q.filters.Statuses) > 0 {
		query = query.Where("status IN ?", q.filters.Statuses)
	}
	if q.filters.Direction != "" {
		query = query.Where("direction = ?", q.filters.Direction)
	}
	query = q.filters.Period.apply(query)

	if q.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", q.cursor.CreatedAt, q.cursor.CreatedAt, q.cursor.ID)
	}

	var rows []models.Transaction
	err := query.Order("created_at DESC").Order("id DESC").Limit(q.limit).Find(&rows).Error
	return rows, err
}

func (r *repository) SumNet(ctx context.Context, q SumQuery) (decimal.Decimal, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("COALESCE(SUM(net_amount), 0)").
		Where("coach_id = ? AND direction = ?", q.CoachID, q.Direction)
	if len(q.Statuses) > 0 {
		query = query.Where("status IN ?", q.Statuses)
	}
	if len(q.Types) > 0 {
		query = query.Where("type IN ?", q.Types)
	}
	query = q.Period.apply(query)

	var total decimal.NullDecimal
	if err := query.Scan(&total).Error; err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return types.RoundMoney(total.Decimal), nil
}

func (r *repository) SumReversals(ctx context.Context, originalID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("COALESCE(SUM(gross_amount), 0)").
		Where("reversal_of = ? AND type = ? AND status <> ?", originalID, enums.TransactionTypeRefund, enums.TransactionStatusFailed).
		Scan(&total).Error
	if err != nil || !total.Valid {
		return decimal.Zero, err
	}
	return types.RoundMoney(total.Decimal), nil
}

// Totals computes settled incoming, completed outgoing and in-flight payout sums in one
// statement so the three figures come from the same snapshot.
func (r *repository) Totals(ctx context.Context, coachID uuid.UUID, period Period) (Totals, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select(`COALESCE(SUM(CASE WHEN direction = ? AND status IN ? THEN net_amount ELSE 0 END), 0) AS incoming,
			COALESCE(SUM(CASE WHEN direction = ? AND status = ? THEN net_amount ELSE 0 END), 0) AS outgoing,
			COALESCE(SUM(CASE WHEN direction = ? AND status IN ? AND type IN ? THEN net_amount ELSE 0 END), 0) AS reserved`,
			enums.DirectionIncoming, SettledStatuses,
			enums.DirectionOutgoing, enums.TransactionStatusCompleted,
			enums.DirectionOutgoing, InFlightStatuses, enums.PayoutTransactionTypes,
		).
		Where("coach_id = ?", coachID)
	query = period.apply(query)

	var totals Totals
	if err := query.Scan(&totals).Error; err != nil {
		return Totals{}, err
	}
	totals.Incoming = types.RoundMoney(totals.Incoming)
	totals.Outgoing = types.RoundMoney(totals.Outgoing)
	totals.Reserved = types.RoundMoney(totals.Reserved)
	return totals, nil
}

func (r *repository) CommissionTotals(ctx context.Context, coachID uuid.UUID, period Period) ([]LevelTotal, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("commission_level AS level, COUNT(*) AS count, COALESCE(SUM(gross_amount), 0) AS gross, COALESCE(SUM(net_amount), 0) AS net").
		Where("coach_id = ? AND commission_level IS NOT NULL", coachID).
		Where("status IN ?", SettledStatuses)
	query = period.apply(query)

	var totals []LevelTotal
	if err := query.Group("commission_level").Order("commission_level ASC").Scan(&totals).Error; err != nil {
		return nil, err
	}
	for i := range totals {
		totals[i].Gross = types.RoundMoney(totals[i].Gross)
		totals[i].Net = types.RoundMoney(totals[i].Net)
	}
	return totals, nil
}

func (r *repository) ListPayouts(ctx context.Context, statuses []enums.TransactionStatus, initiatedBefore time.Time, limit int) ([]models.Transaction, error) {
	var rows []models.Transaction
	err := r.db.WithContext(ctx).
		Where("payout_external_id IS NOT NULL").
		Where("status IN ?", statuses).
		Where("payout_initiated_at < ?", initiatedBefore.UTC()).
		Order("payout_initiated_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListCompletedSince walks settled rows in (updated_at, id) order after the cursor.
func (r *repository) ListCompletedSince(ctx context.Context, cursor *pkgpagination.Cursor, limit int) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx).Where("status IN ?", SettledStatuses)
	if cursor != nil {
		query = query.Where("(updated_at > ?) OR (updated_at = ? AND id > ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Transaction
	err := query.Order("updated_at ASC").Order("id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}
