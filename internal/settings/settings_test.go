package settings

import (
	"testing"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/coachledger-backend/pkg/errors"
)

func validSettings() Settings {
	return Settings{
		PlatformFee: PlatformFee{Percentage: decimal.NewFromInt(5), IsPercentageBased: true},
		CommissionLevels: []CommissionLevel{
			{Level: 2, Percentage: decimal.NewFromInt(5), IsActive: true},
			{Level: 1, Percentage: decimal.NewFromInt(10), IsActive: true},
		},
		DirectCommissionPercentage: decimal.NewFromInt(20),
		MinimumPayoutAmount:        decimal.NewFromInt(500),
		Tax: Tax{
			GSTEnabled:    true,
			GSTPercentage: decimal.NewFromInt(18),
			TDSEnabled:    true,
			TDSPercentage: decimal.NewFromInt(1),
			TDSThreshold:  decimal.NewFromInt(100),
		},
		Payout: Payout{
			InstantFee:        decimal.NewFromInt(10),
			InstantMin:        decimal.NewFromInt(100),
			InstantMax:        decimal.NewFromInt(50000),
			MonthlyDayOfMonth: 1,
		},
	}
}

func TestValidateAcceptsWellFormedSettings(t *testing.T) {
	if err := validSettings().Validate(); err != nil {
		t.Fatalf("expected valid settings, got %v", err)
	}
}

func TestValidateRejectsBadLevels(t *testing.T) {
	cases := map[string][]CommissionLevel{
		"duplicate": {
			{Level: 1, Percentage: decimal.NewFromInt(10)},
			{Level: 1, Percentage: decimal.NewFromInt(5)},
		},
		"above max level": {{Level: 13, Percentage: decimal.NewFromInt(1)}},
		"zero level":      {{Level: 0, Percentage: decimal.NewFromInt(1)}},
		"percentage over": {{Level: 1, Percentage: decimal.NewFromInt(101)}},
		"negative":        {{Level: 1, Percentage: decimal.NewFromInt(-1)}},
	}
	for name, levels := range cases {
		t.Run(name, func(t *testing.T) {
			s := validSettings()
			s.CommissionLevels = levels
			err := s.Validate()
			if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestValidateRejectsTooManyLevels(t *testing.T) {
	s := validSettings()
	s.CommissionLevels = nil
	for i := 1; i <= MaxCommissionLevels+1; i++ {
		s.CommissionLevels = append(s.CommissionLevels, CommissionLevel{Level: i, Percentage: decimal.NewFromInt(1)})
	}
	if err := s.Validate(); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateRejectsInvertedInstantRange(t *testing.T) {
	s := validSettings()
	s.Payout.InstantMax = decimal.NewFromInt(50)
	if err := s.Validate(); err == nil {
		t.Fatal("expected instant range error")
	}
}

func TestNormalizedSortsLevelsWithoutMutatingInput(t *testing.T) {
	s := validSettings()
	n := s.Normalized()
	if n.CommissionLevels[0].Level != 1 || n.CommissionLevels[1].Level != 2 {
		t.Fatalf("levels not sorted: %+v", n.CommissionLevels)
	}
	if s.CommissionLevels[0].Level != 2 {
		t.Fatal("input slice must not be reordered")
	}
	lvl, ok := n.Level(2)
	if !ok || !lvl.Percentage.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unexpected level lookup %+v %v", lvl, ok)
	}
	if _, ok := n.Level(3); ok {
		t.Fatal("level 3 is not configured")
	}
}
