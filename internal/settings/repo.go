package settings

import (
	"context"

	"github.com/angelmondragon/coachledger-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository persists settings versions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetActive(ctx context.Context) (*models.PlatformSettings, error)
	MaxVersion(ctx context.Context) (int, error)
	DeactivateAll(ctx context.Context) error
	Create(ctx context.Context, row *models.PlatformSettings) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a settings repository to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetActive(ctx context.Context) (*models.PlatformSettings, error) {
	var row models.PlatformSettings
	err := r.db.WithContext(ctx).
		Preload("CommissionLevels", func(db *gorm.DB) *gorm.DB {
			return db.Order("level ASC")
		}).
		Where("is_active = ?", true).
		Order("version DESC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) MaxVersion(ctx context.Context) (int, error) {
	var version int
	err := r.db.WithContext(ctx).
		Model(&models.PlatformSettings{}).
		Select("COALESCE(MAX(version), 0)").
		Scan(&version).Error
	return version, err
}

func (r *repository) DeactivateAll(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Model(&models.PlatformSettings{}).
		Where("is_active = ?", true).
		Update("is_active", false).Error
}

// Create inserts the settings row together with its commission levels.
func (r *repository) Create(ctx context.Context, row *models.PlatformSettings) error {
	return r.db.WithContext(ctx).Create(row).Error
}
