package domain

import "time"

type RunState string

const (
	RunStateLoggedOut      RunState = "logged_out"
	RunStateLoggedIn       RunState = "logged_in"
	RunStateDeviceResolved RunState = "device_resolved"
	RunStatePlanComputed   RunState = "plan_computed"
	RunStateUpdated        RunState = "updated"
	RunStateSkipped        RunState = "skipped"
	RunStateDone           RunState = "done"
)

// RunResult summarizes one nightly charge cycle.
type RunResult struct {
	RunID          string         `json:"run_id"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	Device         InverterDevice `json:"device"`
	CurrentSOC     int            `json:"current_soc"`
	ForecastDate   time.Time      `json:"forecast_date"`
	Provider       string         `json:"provider,omitempty"`
	Degraded       bool           `json:"degraded"`
	Plan           ChargePlan     `json:"plan"`
	Updated        bool           `json:"updated"`
	WrittenRatePct int            `json:"written_rate_pct"`
	Insight        *HourlyInsight `json:"insight,omitempty"`
	States         []RunState     `json:"states"`
}

// HourlyInsight is derived from the hourly forecast of the planned day.
type HourlyInsight struct {
	GridNeutralAt *time.Time `json:"grid_neutral_at,omitempty"`
	GridNeutralWh float64    `json:"grid_neutral_wh"`
	SurplusWh     float64    `json:"surplus_wh"`
}

// MorningCheckResult is the outcome of comparing the morning SOC with the
// target planned the night before.
type MorningCheckResult struct {
	Record        MorningCheckRecord `json:"record"`
	HasPrediction bool               `json:"has_prediction"`
}
