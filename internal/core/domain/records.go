package domain

import "time"

type PredictionRecord struct {
	PredictionDate      time.Time
	LoggedAt            time.Time
	ForecastWh          float64
	SolarCoveragePct    float64
	CurrentSOC          int
	TargetSOC           int
	ExpectedSOCIncrease int
	ChargeRatePct       int
	OffPeakWindow       string
	BatteryCapacityWh   float64
	AverageLoadW        float64
	DailyConsumptionWh  float64
}

type ActualRecord struct {
	Date         time.Time
	LoggedAt     time.Time
	GenerationWh float64
	SOCEvening   int
	SOCMorning   *int
	SOCIncrease  *float64
	ChargeWh     float64
	Notes        string
}

type ProviderComparisonRecord struct {
	Date      time.Time
	LoggedAt  time.Time
	Primary   string
	Forecasts []ProviderForecast
}

type MorningCheckRecord struct {
	Date          time.Time
	CheckedAt     time.Time
	TargetSOC     int
	ActualSOC     int
	Variance      int
	ChargeRatePct int
	Achievement   float64
	Status        string
}

// PerformanceRow joins a prediction with the matching actuals. Pointer
// fields are nil while the actuals are pending.
type PerformanceRow struct {
	Date                time.Time
	ForecastWh          float64
	ActualWh            *float64
	AccuracyPct         *float64
	ErrorWh             *float64
	SolarCoveragePct    float64
	TargetSOC           int
	ExpectedSOCIncrease int
	ActualSOCIncrease   *float64
	ChargeRatePct       int
	ChargeWh            *float64
	ChargeEfficiencyPct *float64
	SOCEvening          *int
	Rating              string
}

func (r PerformanceRow) Pending() bool {
	return r.ActualWh == nil
}
