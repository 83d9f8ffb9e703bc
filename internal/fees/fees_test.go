package fees

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coachledger-backend/internal/settings"
	"github.com/angelmondragon/coachledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func baseSettings() settings.Settings {
	return settings.Settings{
		PlatformFee: settings.PlatformFee{Percentage: dec("5"), FixedAmount: dec("25"), IsPercentageBased: true},
		Tax: settings.Tax{
			GSTEnabled:    true,
			GSTPercentage: dec("18"),
			TDSEnabled:    true,
			TDSPercentage: dec("1"),
			TDSThreshold:  dec("500"),
		},
	}
}

func TestComputeDirectSale(t *testing.T) {
	b, err := Compute(dec("1000"), enums.TransactionTypeDirectSale, baseSettings(), nil)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	checks := map[string][2]decimal.Decimal{
		"platform": {b.PlatformFee, dec("50")},
		"gst":      {b.GSTAmount, dec("180")},
		"tds":      {b.TDSAmount, dec("10")},
		"tax":      {b.TotalTax, dec("190")},
		"net":      {b.NetAmount, dec("760")},
	}
	for name, pair := range checks {
		if !pair[0].Equal(pair[1]) {
			t.Fatalf("%s: expected %s got %s", name, pair[1], pair[0])
		}
	}
}

func TestComputeFixedPlatformFee(t *testing.T) {
	s := baseSettings()
	s.PlatformFee.IsPercentageBased = false
	b, err := Compute(dec("100"), enums.TransactionTypeDirectSale, s, nil)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !b.PlatformFee.Equal(dec("25")) {
		t.Fatalf("expected fixed fee 25, got %s", b.PlatformFee)
	}
	if !b.TDSAmount.IsZero() {
		t.Fatalf("gross below threshold must not pay tds, got %s", b.TDSAmount)
	}
}

func TestComputeOverrides(t *testing.T) {
	fixed := dec("7.5")
	off := false
	threshold := dec("50")
	b, err := Compute(dec("100"), enums.TransactionTypeDirectSale, baseSettings(), &Overrides{
		FixedFee:     &fixed,
		GSTEnabled:   &off,
		TDSThreshold: &threshold,
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !b.PlatformFee.Equal(dec("7.5")) {
		t.Fatalf("expected override fee, got %s", b.PlatformFee)
	}
	if !b.GSTAmount.IsZero() {
		t.Fatalf("gst override should disable gst, got %s", b.GSTAmount)
	}
	if !b.TDSAmount.Equal(dec("1")) {
		t.Fatalf("threshold override should apply tds, got %s", b.TDSAmount)
	}
}

func TestComputeEarningsOnlyPayTDS(t *testing.T) {
	b, err := Compute(dec("600"), enums.TransactionTypeMLMCommission, baseSettings(), nil)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !b.PlatformFee.IsZero() || !b.GSTAmount.IsZero() {
		t.Fatalf("earnings must not pay platform fee or gst: %+v", b)
	}
	if !b.TDSAmount.Equal(dec("6")) || !b.NetAmount.Equal(dec("594")) {
		t.Fatalf("unexpected tds breakdown: %+v", b)
	}
}

func TestComputeAdjustmentPassesThrough(t *testing.T) {
	b, err := Compute(dec("42.10"), enums.TransactionTypeAdjustment, baseSettings(), nil)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !b.NetAmount.Equal(dec("42.10")) || !b.TotalFees().IsZero() {
		t.Fatalf("adjustments carry no fees: %+v", b)
	}
}

func TestComputeRejectsBadInput(t *testing.T) {
	if _, err := Compute(dec("-1"), enums.TransactionTypeDirectSale, baseSettings(), nil); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for negative gross, got %v", err)
	}
	if _, err := Compute(dec("1"), enums.TransactionType("bogus"), baseSettings(), nil); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for unknown type, got %v", err)
	}
}

func TestComputeConservesGross(t *testing.T) {
	percentage := baseSettings()
	percentage.PlatformFee.Percentage = dec("7.25")
	percentage.Tax.GSTPercentage = dec("18")
	percentage.Tax.TDSPercentage = dec("2.5")

	fixed := baseSettings()
	fixed.PlatformFee.IsPercentageBased = false
	fixed.PlatformFee.FixedAmount = dec("25")
	fixed.Tax.TDSThreshold = dec("0")

	heavy := baseSettings()
	heavy.Tax.GSTPercentage = dec("80")
	heavy.Tax.TDSPercentage = dec("40")
	heavy.Tax.TDSThreshold = dec("0")

	kinds := []enums.TransactionType{
		enums.TransactionTypeDirectSale,
		enums.TransactionTypeCommissionEarned,
		enums.TransactionTypeReferralBonus,
		enums.TransactionTypeRefund,
	}
	for name, s := range map[string]settings.Settings{"percentage": percentage, "fixed": fixed, "heavy": heavy} {
		rng := rand.New(rand.NewSource(7))
		for i := 0; i < 2000; i++ {
			gross := decimal.New(rng.Int63n(10_000_000), -2)
			if i%3 == 0 {
				gross = decimal.New(rng.Int63n(5_000), -2)
			}
			kind := kinds[i%len(kinds)]
			b, err := Compute(gross, kind, s, nil)
			if err != nil {
				t.Fatalf("%s: compute %s %s: %v", name, gross, kind, err)
			}
			sum := b.NetAmount.Add(b.PlatformFee).Add(b.GSTAmount).Add(b.TDSAmount)
			if !sum.Equal(gross) {
				t.Fatalf("%s: conservation broken for %s (%s): %+v", name, gross, kind, b)
			}
			if b.NetAmount.IsNegative() || b.PlatformFee.IsNegative() {
				t.Fatalf("%s: negative component for %s: %+v", name, gross, b)
			}
		}
	}
}

func TestComputeCapsFixedFeeOnSmallSales(t *testing.T) {
	s := baseSettings()
	s.PlatformFee.IsPercentageBased = false
	s.PlatformFee.FixedAmount = dec("25")

	cases := []struct {
		gross, gst, fee string
	}{
		{"20", "3.6", "16.4"},
		{"25", "4.5", "20.5"},
		{"29", "5.22", "23.78"},
		{"0", "0", "0"},
	}
	for _, tc := range cases {
		b, err := Compute(dec(tc.gross), enums.TransactionTypeDirectSale, s, nil)
		if err != nil {
			t.Fatalf("gross %s: %v", tc.gross, err)
		}
		if !b.GSTAmount.Equal(dec(tc.gst)) || !b.PlatformFee.Equal(dec(tc.fee)) || !b.NetAmount.IsZero() {
			t.Fatalf("gross %s: unexpected breakdown %+v", tc.gross, b)
		}
	}
}
