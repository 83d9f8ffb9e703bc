package enums

import "fmt"

// TransactionType classifies a ledger row.
type TransactionType string

const (
	TransactionTypeCommissionEarned    TransactionType = "commission_earned"
	TransactionTypeDirectSale          TransactionType = "direct_sale"
	TransactionTypeMLMCommission       TransactionType = "mlm_commission"
	TransactionTypeReferralBonus       TransactionType = "referral_bonus"
	TransactionTypePerformanceBonus    TransactionType = "performance_bonus"
	TransactionTypePayoutRequested     TransactionType = "payout_requested"
	TransactionTypePayoutProcessing    TransactionType = "payout_processing"
	TransactionTypePayoutCompleted     TransactionType = "payout_completed"
	TransactionTypePayoutFailed        TransactionType = "payout_failed"
	TransactionTypeRefund              TransactionType = "refund"
	TransactionTypePlatformFeeDeducted TransactionType = "platform_fee_deducted"
	TransactionTypeTaxDeducted         TransactionType = "tax_deducted"
	TransactionTypeAdjustment          TransactionType = "adjustment"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeCommissionEarned,
	TransactionTypeDirectSale,
	TransactionTypeMLMCommission,
	TransactionTypeReferralBonus,
	TransactionTypePerformanceBonus,
	TransactionTypePayoutRequested,
	TransactionTypePayoutProcessing,
	TransactionTypePayoutCompleted,
	TransactionTypePayoutFailed,
	TransactionTypeRefund,
	TransactionTypePlatformFeeDeducted,
	TransactionTypeTaxDeducted,
	TransactionTypeAdjustment,
}

// PayoutTransactionTypes lists the types a payout row moves through.
var PayoutTransactionTypes = []TransactionType{
	TransactionTypePayoutRequested,
	TransactionTypePayoutProcessing,
	TransactionTypePayoutCompleted,
	TransactionTypePayoutFailed,
}

// String implements fmt.Stringer.
func (t TransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransactionType.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsSale reports whether the row records a coach's own product sale.
func (t TransactionType) IsSale() bool {
	return t == TransactionTypeDirectSale
}

// IsEarning reports whether the row is commission or bonus income subject to TDS only.
func (t TransactionType) IsEarning() bool {
	switch t {
	case TransactionTypeCommissionEarned, TransactionTypeMLMCommission,
		TransactionTypeReferralBonus, TransactionTypePerformanceBonus:
		return true
	}
	return false
}

// IsPayout reports whether the row belongs to the payout lifecycle.
func (t TransactionType) IsPayout() bool {
	for _, candidate := range PayoutTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionType converts raw input into a TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}
