// Package fees computes platform fee, GST and TDS for a ledger amount.
package fees

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coachledger-backend/internal/settings"
	"github.com/angelmondragon/coachledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
	"github.com/angelmondragon/coachledger-backend/pkg/types"
)

// Overrides replace individual global rules for a single sale.
type Overrides struct {
	FixedFee     *decimal.Decimal
	GSTEnabled   *bool
	TDSThreshold *decimal.Decimal
}

// Breakdown is the result of Compute. Every component is rounded to two places
// before subtraction so NetAmount plus the components always equals GrossAmount.
type Breakdown struct {
	GrossAmount decimal.Decimal
	PlatformFee decimal.Decimal
	GSTAmount   decimal.Decimal
	TDSAmount   decimal.Decimal
	TotalTax    decimal.Decimal
	NetAmount   decimal.Decimal
}

// TotalFees is the platform fee plus tax.
func (b Breakdown) TotalFees() decimal.Decimal {
	return b.PlatformFee.Add(b.TotalTax)
}

// Compute maps a gross amount to its fee breakdown.
//
// Sales pay the platform fee, GST and TDS. Earnings (commissions and bonuses) are only
// subject to TDS. Every other type passes through untouched.
func Compute(gross decimal.Decimal, txType enums.TransactionType, s settings.Settings, o *Overrides) (Breakdown, error) {
	if gross.IsNegative() {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "gross amount must not be negative")
	}
	if !txType.IsValid() {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown transaction type")
	}
	if o == nil {
		o = &Overrides{}
	}
	if o.FixedFee != nil && o.FixedFee.IsNegative() {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "fixed fee override must not be negative")
	}

	gross = types.RoundMoney(gross)
	b := Breakdown{
		GrossAmount: gross,
		PlatformFee: decimal.Zero,
		GSTAmount:   decimal.Zero,
		TDSAmount:   decimal.Zero,
	}

	// Taxes are taken from gross first; the platform fee gets whatever is left.
	remaining := gross
	take := func(amount decimal.Decimal) decimal.Decimal {
		amount = decimal.Min(amount, remaining)
		remaining = remaining.Sub(amount)
		return amount
	}
	switch {
	case txType.IsSale():
		b.GSTAmount = take(gst(gross, s.Tax, o))
		b.TDSAmount = take(tds(gross, s.Tax, o))
		b.PlatformFee = take(platformFee(gross, s.PlatformFee, o))
	case txType.IsEarning():
		b.TDSAmount = take(tds(gross, s.Tax, o))
	}

	b.TotalTax = b.GSTAmount.Add(b.TDSAmount)
	b.NetAmount = remaining
	return b, nil
}

func platformFee(gross decimal.Decimal, cfg settings.PlatformFee, o *Overrides) decimal.Decimal {
	if o.FixedFee != nil {
		return types.RoundMoney(*o.FixedFee)
	}
	if cfg.IsPercentageBased {
		return types.Percent(gross, cfg.Percentage)
	}
	return types.RoundMoney(cfg.FixedAmount)
}

func gst(gross decimal.Decimal, tax settings.Tax, o *Overrides) decimal.Decimal {
	enabled := tax.GSTEnabled
	if o.GSTEnabled != nil {
		enabled = *o.GSTEnabled
	}
	if !enabled {
		return decimal.Zero
	}
	return types.Percent(gross, tax.GSTPercentage)
}

func tds(gross decimal.Decimal, tax settings.Tax, o *Overrides) decimal.Decimal {
	if !tax.TDSEnabled {
		return decimal.Zero
	}
	threshold := tax.TDSThreshold
	if o.TDSThreshold != nil {
		threshold = *o.TDSThreshold
	}
	if gross.LessThan(threshold) {
		return decimal.Zero
	}
	return types.Percent(gross, tax.TDSPercentage)
}
