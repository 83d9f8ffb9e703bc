package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/coachledger-backend/pkg/enums"
)

// Transaction is one money movement in the ledger. Rows are never deleted; corrections
// are new refund/adjustment rows pointing at the original through ReversalOf.
type Transaction struct {
	ID             uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	CoachID        uuid.UUID                  `gorm:"column:coach_id;type:uuid;not null"`
	Direction      enums.TransactionDirection `gorm:"column:direction;not null"`
	Type           enums.TransactionType      `gorm:"column:type;not null"`
	GrossAmount    decimal.Decimal            `gorm:"column:gross_amount;type:numeric(14,2);not null"`
	NetAmount      decimal.Decimal            `gorm:"column:net_amount;type:numeric(14,2);not null"`
	Currency       enums.Currency             `gorm:"column:currency;not null;default:'INR'"`
	Fees           Fees                       `gorm:"embedded;embeddedPrefix:fee_"`
	Commission     CommissionDetails          `gorm:"embedded;embeddedPrefix:commission_"`
	Payout         PayoutInfo                 `gorm:"embedded;embeddedPrefix:payout_"`
	Status         enums.TransactionStatus    `gorm:"column:status;not null"`
	IdempotencyKey *string                    `gorm:"column:idempotency_key"`
	ReversalOf     *uuid.UUID                 `gorm:"column:reversal_of;type:uuid"`
	Description    *string                    `gorm:"column:description"`
	ProductInfo    json.RawMessage            `gorm:"column:product_info;type:jsonb"`

	TransactionDate time.Time `gorm:"column:transaction_date;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Transaction) TableName() string { return "transactions" }

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.TransactionDate.IsZero() {
		t.TransactionDate = time.Now().UTC()
	}
	return nil
}

// BeforeSave keeps the fee total consistent with its components on every write.
func (t *Transaction) BeforeSave(tx *gorm.DB) error {
	t.Fees.Recompute()
	return nil
}

// Fees is the per-row fee breakdown. TaxAmount is GST plus TDS.
type Fees struct {
	PlatformFee   decimal.Decimal `gorm:"column:platform;type:numeric(14,2);not null;default:0"`
	ProcessingFee decimal.Decimal `gorm:"column:processing;type:numeric(14,2);not null;default:0"`
	PayoutFee     decimal.Decimal `gorm:"column:payout;type:numeric(14,2);not null;default:0"`
	GSTAmount     decimal.Decimal `gorm:"column:gst;type:numeric(14,2);not null;default:0"`
	TDSAmount     decimal.Decimal `gorm:"column:tds;type:numeric(14,2);not null;default:0"`
	TaxAmount     decimal.Decimal `gorm:"column:tax;type:numeric(14,2);not null;default:0"`
	TotalFees     decimal.Decimal `gorm:"column:total;type:numeric(14,2);not null;default:0"`
}

// Recompute derives TotalFees from the four components.
func (f *Fees) Recompute() {
	f.TotalFees = f.PlatformFee.Add(f.ProcessingFee).Add(f.PayoutFee).Add(f.TaxAmount)
}

// CommissionDetails is set only on commission rows.
type CommissionDetails struct {
	Level               *int                `gorm:"column:level"`
	Percentage          decimal.NullDecimal `gorm:"column:percentage;type:numeric(5,2)"`
	BaseAmount          decimal.NullDecimal `gorm:"column:base_amount;type:numeric(14,2)"`
	SponsorID           *uuid.UUID          `gorm:"column:sponsor_id;type:uuid"`
	SourceTransactionID *uuid.UUID          `gorm:"column:source_transaction_id;type:uuid"`
}

// PayoutInfo is set only on payout rows.
type PayoutInfo struct {
	ExternalPayoutID    *string             `gorm:"column:external_id"`
	Method              *enums.PayoutMethod `gorm:"column:method"`
	Destination         *string             `gorm:"column:destination"`
	IsInstant           bool                `gorm:"column:is_instant;not null;default:false"`
	ReferenceID         *string             `gorm:"column:reference_id"`
	Narration           *string             `gorm:"column:narration"`
	Mode                *enums.PayoutMode   `gorm:"column:mode"`
	GatewayStatus       *string             `gorm:"column:gateway_status"`
	SettlementReference *string             `gorm:"column:settlement_reference"`
	FailureReason       *string             `gorm:"column:failure_reason"`
	InitiatedAt         *time.Time          `gorm:"column:initiated_at"`
	CompletedAt         *time.Time          `gorm:"column:completed_at"`
	FailedAt            *time.Time          `gorm:"column:failed_at"`
}
