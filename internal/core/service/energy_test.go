package service

import (
	"testing"
	"time"

	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func hourlyFixture() domain.HourlyForecast {
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	return domain.HourlyForecast{
		day.Add(6 * time.Hour):  150,
		day.Add(7 * time.Hour):  300,
		day.Add(8 * time.Hour):  900,
		day.Add(9 * time.Hour):  2200,
		day.Add(10 * time.Hour): 3800,
		day.Add(11 * time.Hour): 4100,
		day.Add(18 * time.Hour): 200,
	}
}

func TestGridNeutralTime(t *testing.T) {

	require := require.New(t)

	neutral := GridNeutralTime(300, hourlyFixture())
	require.NotNil(neutral)
	require.Equal(8, neutral.Hour())

	require.Nil(GridNeutralTime(5000, hourlyFixture()))
	require.Nil(GridNeutralTime(300, domain.HourlyForecast{}))
}

func TestGridNeutralWh(t *testing.T) {

	require := require.New(t)

	neutral := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	require.Equal(750.0, GridNeutralWh(neutral, domain.ClockTime{Hour: 5, Minute: 30}, 300))
	require.Equal(0.0, GridNeutralWh(neutral, domain.ClockTime{Hour: 9, Minute: 0}, 300))
}

func TestSurplusGenerationForBattery(t *testing.T) {

	require := require.New(t)

	// (900-300) + (2200-300) + min(3500, 3000) + min(3800, 3000)
	require.Equal(600.0+1900+3000+3000, SurplusGenerationForBattery(hourlyFixture(), 300, 3000))
	require.Equal(0.0, SurplusGenerationForBattery(hourlyFixture(), 5000, 3000))
}

func TestHourlyInsightFor(t *testing.T) {

	require := require.New(t)

	insight := HourlyInsightFor(hourlyFixture(), 300, 3000, domain.ClockTime{Hour: 5, Minute: 30})
	require.NotNil(insight.GridNeutralAt)
	require.Equal(750.0, insight.GridNeutralWh)
	require.Equal(8500.0, insight.SurplusWh)
}
