package settings

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
)

// MaxCommissionLevels bounds how far up the sponsor chain commissions are paid.
const MaxCommissionLevels = 12

var hundred = decimal.NewFromInt(100)

// PlatformFee is charged on direct sales.
type PlatformFee struct {
	Percentage        decimal.Decimal `json:"percentage"`
	FixedAmount       decimal.Decimal `json:"fixed_amount"`
	IsPercentageBased bool            `json:"is_percentage_based"`
}

// CommissionLevel is the share paid to the ancestor Level hops above the seller.
type CommissionLevel struct {
	Level      int             `json:"level"`
	Percentage decimal.Decimal `json:"percentage"`
	IsActive   bool            `json:"is_active"`
}

// Tax holds the GST and TDS rules.
type Tax struct {
	GSTEnabled    bool            `json:"gst_enabled"`
	GSTPercentage decimal.Decimal `json:"gst_percentage"`
	TDSEnabled    bool            `json:"tds_enabled"`
	TDSPercentage decimal.Decimal `json:"tds_percentage"`
	TDSThreshold  decimal.Decimal `json:"tds_threshold"`
}

// Payout holds thresholds and fees for payouts.
type Payout struct {
	InstantFee        decimal.Decimal `json:"instant_fee"`
	InstantMin        decimal.Decimal `json:"instant_min"`
	InstantMax        decimal.Decimal `json:"instant_max"`
	MonthlyDayOfMonth int             `json:"monthly_day_of_month"`
}

// Settings is an immutable snapshot of the tenant-wide configuration.
// Callers load one per operation and never mutate it.
type Settings struct {
	Version                    int               `json:"version"`
	PlatformFee                PlatformFee       `json:"platform_fee"`
	CommissionLevels           []CommissionLevel `json:"commission_levels"`
	DirectCommissionPercentage decimal.Decimal   `json:"direct_commission_percentage"`
	MinimumPayoutAmount        decimal.Decimal   `json:"minimum_payout_amount"`
	Tax                        Tax               `json:"tax"`
	Payout                     Payout            `json:"payout"`
	UpdatedAt                  time.Time         `json:"updated_at"`
}

// Level returns the configuration for level n, if one exists.
func (s Settings) Level(n int) (CommissionLevel, bool) {
	for _, lvl := range s.CommissionLevels {
		if lvl.Level == n {
			return lvl, true
		}
	}
	return CommissionLevel{}, false
}

// Validate checks the invariants every stored version must satisfy.
func (s Settings) Validate() error {
	problems := map[string]string{}

	checkPct := func(field string, v decimal.Decimal) {
		if v.IsNegative() || v.GreaterThan(hundred) {
			problems[field] = "must be between 0 and 100"
		}
	}
	checkNonNeg := func(field string, v decimal.Decimal) {
		if v.IsNegative() {
			problems[field] = "must not be negative"
		}
	}

	checkPct("platform_fee.percentage", s.PlatformFee.Percentage)
	checkNonNeg("platform_fee.fixed_amount", s.PlatformFee.FixedAmount)
	checkPct("direct_commission_percentage", s.DirectCommissionPercentage)
	checkNonNeg("minimum_payout_amount", s.MinimumPayoutAmount)
	checkPct("tax.gst_percentage", s.Tax.GSTPercentage)
	checkPct("tax.tds_percentage", s.Tax.TDSPercentage)
	checkNonNeg("tax.tds_threshold", s.Tax.TDSThreshold)
	checkNonNeg("payout.instant_fee", s.Payout.InstantFee)
	checkNonNeg("payout.instant_min", s.Payout.InstantMin)
	checkNonNeg("payout.instant_max", s.Payout.InstantMax)
	if s.Payout.InstantMax.LessThan(s.Payout.InstantMin) {
		problems["payout.instant_max"] = "must not be below instant_min"
	}
	if s.Payout.InstantFee.GreaterThan(decimal.Zero) && s.Payout.InstantMin.LessThanOrEqual(s.Payout.InstantFee) {
		problems["payout.instant_min"] = "must exceed instant_fee"
	}
	if s.Payout.MonthlyDayOfMonth < 1 || s.Payout.MonthlyDayOfMonth > 28 {
		problems["payout.monthly_day_of_month"] = "must be between 1 and 28"
	}

	if len(s.CommissionLevels) > MaxCommissionLevels {
		problems["commission_levels"] = fmt.Sprintf("at most %d levels", MaxCommissionLevels)
	}
	seen := map[int]bool{}
	for i, lvl := range s.CommissionLevels {
		field := fmt.Sprintf("commission_levels[%d]", i)
		if lvl.Level < 1 || lvl.Level > MaxCommissionLevels {
			problems[field+".level"] = fmt.Sprintf("must be between 1 and %d", MaxCommissionLevels)
		}
		if seen[lvl.Level] {
			problems[field+".level"] = "duplicate level"
		}
		seen[lvl.Level] = true
		checkPct(field+".percentage", lvl.Percentage)
	}

	if len(problems) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid settings").WithDetails(problems)
}

// Normalized returns a copy with levels sorted by level number.
func (s Settings) Normalized() Settings {
	levels := make([]CommissionLevel, len(s.CommissionLevels))
	copy(levels, s.CommissionLevels)
	sort.Slice(levels, func(i, j int) bool { return levels[i].Level < levels[j].Level })
	s.CommissionLevels = levels
	return s
}
