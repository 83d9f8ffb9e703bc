package ledger

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coachledger-backend/pkg/db/models"
	"github.com/angelmondragon/coachledger-backend/pkg/enums"
	pkgpagination "github.com/angelmondragon/coachledger-backend/pkg/pagination"
)

// SettledStatuses are the statuses whose amounts count toward a balance. Refunded
// originals stay counted; their refund rows carry the debit.
var SettledStatuses = []enums.TransactionStatus{
	enums.TransactionStatusCompleted,
	enums.TransactionStatusRefunded,
	enums.TransactionStatusPartiallyRefunded,
}

// InFlightStatuses are payout statuses that still hold funds.
var InFlightStatuses = []enums.TransactionStatus{
	enums.TransactionStatusPending,
	enums.TransactionStatusProcessing,
}

// ListFilters narrows a transaction listing.
type ListFilters struct {
	Types     []enums.TransactionType
	Statuses  []enums.TransactionStatus
	Direction enums.TransactionDirection
	Period    Period
}

type ListParams struct {
	CoachID uuid.UUID
	Filters ListFilters
	pkgpagination.Params
}

type listQuery struct {
	coachID uuid.UUID
	filters ListFilters
	limit   int
	cursor  *pkgpagination.Cursor
}

// Entry is the API view of a ledger transaction.
type Entry struct {
	ID              uuid.UUID                  `json:"id"`
	CoachID         uuid.UUID                  `json:"coach_id"`
	Direction       enums.TransactionDirection `json:"direction"`
	Type            enums.TransactionType      `json:"type"`
	Status          enums.TransactionStatus    `json:"status"`
	GrossAmount     decimal.Decimal            `json:"gross_amount"`
	NetAmount       decimal.Decimal            `json:"net_amount"`
	Currency        enums.Currency             `json:"currency"`
	Fees            EntryFees                  `json:"fees"`
	Commission      *EntryCommission           `json:"commission_details,omitempty"`
	Payout          *EntryPayout               `json:"payout_info,omitempty"`
	ReversalOf      *uuid.UUID                 `json:"reversal_of,omitempty"`
	Description     *string                    `json:"description,omitempty"`
	ProductInfo     json.RawMessage            `json:"product_info,omitempty"`
	TransactionDate time.Time                  `json:"transaction_date"`
	CreatedAt       time.Time                  `json:"created_at"`
}

type EntryFees struct {
	PlatformFee   decimal.Decimal `json:"platform_fee"`
	ProcessingFee decimal.Decimal `json:"processing_fee"`
	PayoutFee     decimal.Decimal `json:"payout_fee"`
	GSTAmount     decimal.Decimal `json:"gst_amount"`
	TDSAmount     decimal.Decimal `json:"tds_amount"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	TotalFees     decimal.Decimal `json:"total_fees"`
}

type EntryCommission struct {
	Level               int             `json:"level"`
	Percentage          decimal.Decimal `json:"percentage"`
	BaseAmount          decimal.Decimal `json:"base_amount"`
	SponsorID           *uuid.UUID      `json:"sponsor_id,omitempty"`
	SourceTransactionID *uuid.UUID      `json:"source_transaction_id,omitempty"`
}

// EntryPayout carries only the masked destination snapshot.
type EntryPayout struct {
	ExternalPayoutID    *string             `json:"external_payout_id,omitempty"`
	Method              *enums.PayoutMethod `json:"method,omitempty"`
	Destination         *string             `json:"destination,omitempty"`
	IsInstant           bool                `json:"is_instant"`
	ReferenceID         *string             `json:"reference_id,omitempty"`
	Mode                *enums.PayoutMode   `json:"mode,omitempty"`
	SettlementReference *string             `json:"settlement_reference,omitempty"`
	FailureReason       *string             `json:"failure_reason,omitempty"`
	InitiatedAt         *time.Time          `json:"initiated_at,omitempty"`
	CompletedAt         *time.Time          `json:"completed_at,omitempty"`
	FailedAt            *time.Time          `json:"failed_at,omitempty"`
}

// ToEntry converts a stored row into its API view.
func ToEntry(m models.Transaction) Entry {
	entry := Entry{
		ID:          m.ID,
		CoachID:     m.CoachID,
		Direction:   m.Direction,
		Type:        m.Type,
		Status:      m.Status,
		GrossAmount: m.GrossAmount.Round(2),
		NetAmount:   m.NetAmount.Round(2),
		Currency:    m.Currency,
		Fees: EntryFees{
			PlatformFee:   m.Fees.PlatformFee.Round(2),
			ProcessingFee: m.Fees.ProcessingFee.Round(2),
			PayoutFee:     m.Fees.PayoutFee.Round(2),
			GSTAmount:     m.Fees.GSTAmount.Round(2),
			TDSAmount:     m.Fees.TDSAmount.Round(2),
			TaxAmount:     m.Fees.TaxAmount.Round(2),
			TotalFees:     m.Fees.TotalFees.Round(2),
		},
		ReversalOf:      m.ReversalOf,
		Description:     m.Description,
		ProductInfo:     m.ProductInfo,
		TransactionDate: m.TransactionDate,
		CreatedAt:       m.CreatedAt,
	}
	if m.Commission.Level != nil {
		entry.Commission = &EntryCommission{
			Level:               *m.Commission.Level,
			Percentage:          m.Commission.Percentage.Decimal.Round(2),
			BaseAmount:          m.Commission.BaseAmount.Decimal.Round(2),
			SponsorID:           m.Commission.SponsorID,
			SourceTransactionID: m.Commission.SourceTransactionID,
		}
	}
	if m.Type.IsPayout() {
		p := m.Payout
		entry.Payout = &EntryPayout{
			ExternalPayoutID:    p.ExternalPayoutID,
			Method:              p.Method,
			Destination:         p.Destination,
			IsInstant:           p.IsInstant,
			ReferenceID:         p.ReferenceID,
			Mode:                p.Mode,
			SettlementReference: p.SettlementReference,
			FailureReason:       p.FailureReason,
			InitiatedAt:         p.InitiatedAt,
			CompletedAt:         p.CompletedAt,
			FailedAt:            p.FailedAt,
		}
	}
	return entry
}
