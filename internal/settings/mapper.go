package settings

import (
	"github.com/angelmondragon/coachledger-backend/pkg/db/models"
	"github.com/angelmondragon/coachledger-backend/pkg/types"
)

func fromModel(m *models.PlatformSettings) Settings {
	levels := make([]CommissionLevel, 0, len(m.CommissionLevels))
	for _, lvl := range m.CommissionLevels {
		levels = append(levels, CommissionLevel{
			Level:      lvl.Level,
			Percentage: types.RoundMoney(lvl.Percentage),
			IsActive:   lvl.IsActive,
		})
	}
	s := Settings{
		Version: m.Version,
		PlatformFee: PlatformFee{
			Percentage:        types.RoundMoney(m.PlatformFeePercentage),
			FixedAmount:       types.RoundMoney(m.PlatformFeeFixedAmount),
			IsPercentageBased: m.PlatformFeeIsPercentage,
		},
		CommissionLevels:           levels,
		DirectCommissionPercentage: types.RoundMoney(m.DirectCommissionPercentage),
		MinimumPayoutAmount:        types.RoundMoney(m.MinimumPayoutAmount),
		Tax: Tax{
			GSTEnabled:    m.GSTEnabled,
			GSTPercentage: types.RoundMoney(m.GSTPercentage),
			TDSEnabled:    m.TDSEnabled,
			TDSPercentage: types.RoundMoney(m.TDSPercentage),
			TDSThreshold:  types.RoundMoney(m.TDSThreshold),
		},
		Payout: Payout{
			InstantFee:        types.RoundMoney(m.InstantPayoutFee),
			InstantMin:        types.RoundMoney(m.InstantPayoutMin),
			InstantMax:        types.RoundMoney(m.InstantPayoutMax),
			MonthlyDayOfMonth: m.MonthlyPayoutDay,
		},
		UpdatedAt: m.UpdatedAt,
	}
	return s.Normalized()
}

func toModel(s Settings) *models.PlatformSettings {
	levels := make([]models.CommissionLevel, 0, len(s.CommissionLevels))
	for _, lvl := range s.CommissionLevels {
		levels = append(levels, models.CommissionLevel{
			Level:      lvl.Level,
			Percentage: lvl.Percentage,
			IsActive:   lvl.IsActive,
		})
	}
	return &models.PlatformSettings{
		Version:                    s.Version,
		IsActive:                   true,
		PlatformFeePercentage:      s.PlatformFee.Percentage,
		PlatformFeeFixedAmount:     s.PlatformFee.FixedAmount,
		PlatformFeeIsPercentage:    s.PlatformFee.IsPercentageBased,
		DirectCommissionPercentage: s.DirectCommissionPercentage,
		MinimumPayoutAmount:        s.MinimumPayoutAmount,
		GSTEnabled:                 s.Tax.GSTEnabled,
		GSTPercentage:              s.Tax.GSTPercentage,
		TDSEnabled:                 s.Tax.TDSEnabled,
		TDSPercentage:              s.Tax.TDSPercentage,
		TDSThreshold:               s.Tax.TDSThreshold,
		InstantPayoutFee:           s.Payout.InstantFee,
		InstantPayoutMin:           s.Payout.InstantMin,
		InstantPayoutMax:           s.Payout.InstantMax,
		MonthlyPayoutDay:           s.Payout.MonthlyDayOfMonth,
		CommissionLevels:           levels,
	}
}
