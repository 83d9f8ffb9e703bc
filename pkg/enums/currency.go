package enums

import (
	"fmt"
	"strings"
)

// Currency is the ISO 4217 code a ledger row is denominated in. The ledger
// books in INR; USD is accepted on incoming sales only.
type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"

	// BaseCurrency is assumed when a sale omits its currency.
	BaseCurrency = CurrencyINR
)

func (c Currency) String() string {
	return string(c)
}

func (c Currency) IsValid() bool {
	switch c {
	case CurrencyINR, CurrencyUSD:
		return true
	}
	return false
}

// Payable reports whether the payout gateway can disburse in c.
func (c Currency) Payable() bool {
	return c == CurrencyINR
}

// ParseCurrency is case-insensitive and maps blank input to BaseCurrency.
func ParseCurrency(value string) (Currency, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return BaseCurrency, nil
	}
	if c := Currency(value); c.IsValid() {
		return c, nil
	}
	return "", fmt.Errorf("unsupported currency %q", value)
}
