package coaches

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/coachledger-backend/pkg/db/models"
)

// Repository persists the ledger's coach read model.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coach, error)
	SponsorOf(ctx context.Context, id uuid.UUID) (*uuid.UUID, error)
	Upsert(ctx context.Context, coach *models.Coach) error
	UpdateDestination(ctx context.Context, id uuid.UUID, dest models.PayoutDestination) error
	SaveIdentity(ctx context.Context, id uuid.UUID, identity models.PayoutIdentity) error
	ListPayoutReady(ctx context.Context, after uuid.UUID, limit int) ([]models.Coach, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a coaches repository to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Coach, error) {
	var coach models.Coach
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&coach).Error; err != nil {
		return nil, err
	}
	return &coach, nil
}

// SponsorOf returns the sponsor pointer without loading the rest of the row.
func (r *repository) SponsorOf(ctx context.Context, id uuid.UUID) (*uuid.UUID, error) {
	var row struct {
		SponsorID *uuid.UUID `gorm:"column:sponsor_id"`
	}
	err := r.db.WithContext(ctx).
		Model(&models.Coach{}).
		Select("sponsor_id").
		Where("id = ?", id).
		Take(&row).Error
	if err != nil {
		return nil, err
	}
	return row.SponsorID, nil
}

// Upsert writes profile and sponsor fields. Payout destination and identity are left alone.
func (r *repository) Upsert(ctx context.Context, coach *models.Coach) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"sponsor_id", "display_name", "email", "updated_at"}),
		}).
		Create(coach).Error
}

// UpdateDestination replaces the destination and deactivates any provisioned identity.
func (r *repository) UpdateDestination(ctx context.Context, id uuid.UUID, dest models.PayoutDestination) error {
	res := r.db.WithContext(ctx).
		Model(&models.Coach{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"payout_method":              dest.Method,
			"payout_upi_id":              dest.UPIID,
			"payout_bank_holder_name":    dest.BankHolderName,
			"payout_bank_ifsc":           dest.BankIFSC,
			"payout_bank_account_number": dest.BankAccountNumber,
			"payout_identity_active":     false,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) SaveIdentity(ctx context.Context, id uuid.UUID, identity models.PayoutIdentity) error {
	provisionedAt := identity.ProvisionedAt
	if provisionedAt == nil {
		now := time.Now().UTC()
		provisionedAt = &now
	}
	res := r.db.WithContext(ctx).
		Model(&models.Coach{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"payout_identity_contact_id":      identity.ExternalContactID,
			"payout_identity_fund_account_id": identity.ExternalFundAccountID,
			"payout_identity_active":          identity.IsActive,
			"payout_identity_provisioned_at":  provisionedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListPayoutReady pages through coaches with an active identity in id order.
func (r *repository) ListPayoutReady(ctx context.Context, after uuid.UUID, limit int) ([]models.Coach, error) {
	query := r.db.WithContext(ctx).
		Where("payout_identity_active = ?", true).
		Where("payout_identity_fund_account_id IS NOT NULL")
	if after != uuid.Nil {
		query = query.Where("id > ?", after)
	}
	var rows []models.Coach
	err := query.Order("id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}
