package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/coachledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
)

// SaleCost lines a sale up against the commissions it generated.
//
// The seller's net never carries the upline commission; the platform pays it out of
// its fee, so PlatformMargin = PlatformFee − CommissionCost and
// Gross = seller net + PlatformFee + Tax holds for the sale row itself.
type SaleCost struct {
	SaleID         uuid.UUID       `json:"sale_id"`
	Sale           *Entry          `json:"sale,omitempty"`
	Commissions    []Entry         `json:"commissions"`
	CommissionCost decimal.Decimal `json:"commission_cost"`
	PlatformFee    decimal.Decimal `json:"platform_fee"`
	Tax            decimal.Decimal `json:"tax"`
	PlatformMargin decimal.Decimal `json:"platform_margin"`
}

// CommissionCost sums the gross of commission rows sourced from one sale.
func CommissionCost(entries []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if e.Commission == nil {
			continue
		}
		switch e.Status {
		case enums.TransactionStatusFailed, enums.TransactionStatusCancelled:
		default:
			total = total.Add(e.GrossAmount)
		}
	}
	return total
}

// SaleCost reads the sale row and every commission row that references it.
// Affiliate sales have no seller row; their level-0 commission stands in for it.
func (s *service) SaleCost(ctx context.Context, saleID uuid.UUID) (*SaleCost, error) {
	out := &SaleCost{SaleID: saleID, Commissions: []Entry{}}

	row, err := s.repo.FindByID(ctx, saleID)
	switch {
	case err == nil:
		if !row.Type.IsSale() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction is not a sale")
		}
		entry := ToEntry(*row)
		out.Sale = &entry
		out.PlatformFee = row.Fees.PlatformFee
		out.Tax = row.Fees.TaxAmount
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale")
	}

	rows, err := s.repo.ListBySource(ctx, saleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale commissions")
	}
	if out.Sale == nil && len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
	}
	for _, r := range rows {
		out.Commissions = append(out.Commissions, ToEntry(r))
	}
	out.CommissionCost = CommissionCost(out.Commissions)
	out.PlatformMargin = out.PlatformFee.Sub(out.CommissionCost)
	return out, nil
}
