package service

import (
	"time"

	"github.com/berfenger/growattcharger/internal/core/domain"
)

// GridNeutralTime returns the first hour whose forecast exceeds the average
// load, or nil if generation never covers the load.
func GridNeutralTime(averageLoadW float64, forecast domain.HourlyForecast) *time.Time {
	for _, hour := range forecast.Hours() {
		if float64(int(forecast[hour])) > averageLoadW {
			h := hour
			return &h
		}
	}
	return nil
}

// GridNeutralWh is the energy drawn from the battery between the end of the
// off-peak window and the grid neutral time.
func GridNeutralWh(gridNeutral time.Time, offPeakEnd domain.ClockTime, averageLoadW float64) float64 {
	neutralMinutes := gridNeutral.Hour()*60 + gridNeutral.Minute()
	gap := neutralMinutes - offPeakEnd.Minutes()
	if gap <= 0 {
		return 0
	}
	return float64(gap) / 60 * averageLoadW
}

// SurplusGenerationForBattery sums, over the hours where generation exceeds
// the load, the excess capped at the maximum charge rate.
func SurplusGenerationForBattery(forecast domain.HourlyForecast, averageLoadW, maxChargeRateW float64) float64 {
	surplus := 0.0
	for _, w := range forecast {
		if w > averageLoadW {
			surplus += min(w-averageLoadW, maxChargeRateW)
		}
	}
	return surplus
}

// HourlyInsightFor derives the grid neutral point and battery surplus of a
// day's hourly forecast.
func HourlyInsightFor(forecast domain.HourlyForecast, averageLoadW, maxChargeRateW float64, offPeakEnd domain.ClockTime) domain.HourlyInsight {
	insight := domain.HourlyInsight{
		SurplusWh: SurplusGenerationForBattery(forecast, averageLoadW, maxChargeRateW),
	}
	if neutral := GridNeutralTime(averageLoadW, forecast); neutral != nil {
		insight.GridNeutralAt = neutral
		insight.GridNeutralWh = GridNeutralWh(*neutral, offPeakEnd, averageLoadW)
	}
	return insight
}
