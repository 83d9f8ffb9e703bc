package enums

import "fmt"

// PayoutMethod describes where a coach receives payouts.
type PayoutMethod string

const (
	PayoutMethodUPI  PayoutMethod = "upi"
	PayoutMethodBank PayoutMethod = "bank"
)

var validPayoutMethods = []PayoutMethod{
	PayoutMethodUPI,
	PayoutMethodBank,
}

// String implements fmt.Stringer.
func (p PayoutMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutMethod.
func (p PayoutMethod) IsValid() bool {
	for _, candidate := range validPayoutMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePayoutMethod converts raw input into a PayoutMethod.
func ParsePayoutMethod(value string) (PayoutMethod, error) {
	for _, candidate := range validPayoutMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout method %q", value)
}

// PayoutMode is the transfer rail requested from the gateway.
type PayoutMode string

const (
	PayoutModeUPI  PayoutMode = "UPI"
	PayoutModeIMPS PayoutMode = "IMPS"
	PayoutModeNEFT PayoutMode = "NEFT"
)

// ModeFor picks the rail for a destination. UPI destinations always use UPI;
// bank transfers use IMPS when instant and NEFT otherwise.
func ModeFor(method PayoutMethod, instant bool) PayoutMode {
	if method == PayoutMethodUPI {
		return PayoutModeUPI
	}
	if instant {
		return PayoutModeIMPS
	}
	return PayoutModeNEFT
}
