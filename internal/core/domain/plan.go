package domain

// ChargePlan is the outcome of one planning cycle. SolarCoveragePct is the
// undiscounted forecast over daily consumption and may exceed 100.
type ChargePlan struct {
	TargetSOC        int     `json:"target_soc"`
	ChargeRatePct    int     `json:"charge_rate_pct"`
	ForecastWh       float64 `json:"forecast_wh"`
	SolarCoveragePct float64 `json:"solar_coverage_pct"`
	OffPeakHours     float64 `json:"off_peak_hours"`
}

// DegradedChargePlan fills the battery at full rate. Used when no forecast
// could be obtained.
func DegradedChargePlan(maxChargePct int, offPeakHours float64) ChargePlan {
	return ChargePlan{
		TargetSOC:        maxChargePct,
		ChargeRatePct:    100,
		ForecastWh:       0,
		SolarCoveragePct: 0,
		OffPeakHours:     offPeakHours,
	}
}
