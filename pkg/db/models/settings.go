package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PlatformSettings is one version of the tenant-wide configuration. Exactly one row is active.
type PlatformSettings struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Version  int       `gorm:"column:version;not null"`
	IsActive bool      `gorm:"column:is_active;not null;default:false"`

	PlatformFeePercentage   decimal.Decimal `gorm:"column:platform_fee_percentage;type:numeric(5,2);not null;default:0"`
	PlatformFeeFixedAmount  decimal.Decimal `gorm:"column:platform_fee_fixed_amount;type:numeric(14,2);not null;default:0"`
	PlatformFeeIsPercentage bool            `gorm:"column:platform_fee_is_percentage;not null;default:true"`

	DirectCommissionPercentage decimal.Decimal `gorm:"column:direct_commission_percentage;type:numeric(5,2);not null;default:0"`
	MinimumPayoutAmount        decimal.Decimal `gorm:"column:minimum_payout_amount;type:numeric(14,2);not null;default:0"`

	GSTEnabled    bool            `gorm:"column:gst_enabled;not null;default:false"`
	GSTPercentage decimal.Decimal `gorm:"column:gst_percentage;type:numeric(5,2);not null;default:0"`
	TDSEnabled    bool            `gorm:"column:tds_enabled;not null;default:false"`
	TDSPercentage decimal.Decimal `gorm:"column:tds_percentage;type:numeric(5,2);not null;default:0"`
	TDSThreshold  decimal.Decimal `gorm:"column:tds_threshold;type:numeric(14,2);not null;default:0"`

	InstantPayoutFee decimal.Decimal   `gorm:"column:instant_payout_fee;type:numeric(14,2);not null;default:0"`
	InstantPayoutMin decimal.Decimal   `gorm:"column:instant_payout_min;type:numeric(14,2);not null;default:0"`
	InstantPayoutMax decimal.Decimal   `gorm:"column:instant_payout_max;type:numeric(14,2);not null;default:0"`
	MonthlyPayoutDay int               `gorm:"column:monthly_payout_day;not null;default:1"`
	UpdatedBy        *uuid.UUID        `gorm:"column:updated_by;type:uuid"`
	CommissionLevels []CommissionLevel `gorm:"foreignKey:SettingsID"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (PlatformSettings) TableName() string { return "platform_settings" }

func (s *PlatformSettings) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// CommissionLevel is the percentage paid to the ancestor at Level hops above the seller.
type CommissionLevel struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SettingsID uuid.UUID       `gorm:"column:settings_id;type:uuid;not null"`
	Level      int             `gorm:"column:level;not null"`
	Percentage decimal.Decimal `gorm:"column:percentage;type:numeric(5,2);not null"`
	IsActive   bool            `gorm:"column:is_active;not null;default:true"`
}

func (CommissionLevel) TableName() string { return "commission_levels" }

func (l *CommissionLevel) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
