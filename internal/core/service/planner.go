package service

import (
	"math"

	"github.com/berfenger/growattcharger/internal/config"
	"github.com/berfenger/growattcharger/internal/core/domain"
	"go.uber.org/zap"
)

// coverageTier maps a minimum solar coverage to an overnight target. A better
// forecast lowers the target so the next day's generation fills the battery.
type coverageTier struct {
	minCoveragePct float64
	target         func(minPct, maxPct int) int
}

// evaluated high to low, first match wins
var coverageTiers = []coverageTier{
	{150, func(minPct, _ int) int { return minPct + 10 }},
	{120, func(minPct, _ int) int { return minPct + 20 }},
	{100, func(minPct, _ int) int { return minPct + 30 }},
	{80, func(minPct, _ int) int { return minPct + 40 }},
	{60, func(minPct, _ int) int { return minPct + 50 }},
	{40, func(_, maxPct int) int { return maxPct - 10 }},
}

// Planner turns a forecast and the battery state into a ChargePlan. It holds
// no state between calls.
type Planner struct {
	Battery    config.BatteryConfig
	Tariff     domain.TariffWindow
	Confidence float64
	Logger     *zap.Logger
}

func NewPlanner(cfg config.Config, logger *zap.Logger) (*Planner, error) {
	window, err := cfg.TariffWindow()
	if err != nil {
		return nil, err
	}
	return &Planner{
		Battery:    cfg.Battery,
		Tariff:     window,
		Confidence: cfg.Forecast.Confidence,
		Logger:     logger,
	}, nil
}

func (p *Planner) OffPeakHours() float64 {
	return p.Tariff.Hours()
}

// CoverageFor returns the discounted and raw solar coverage of daily
// consumption, in percent.
func (p *Planner) CoverageFor(forecastWh float64) (discounted float64, raw float64) {
	consumption := p.Battery.DailyConsumptionWh()
	if consumption <= 0 {
		return 0, 0
	}
	forecastWh = math.Max(forecastWh, 0)
	discounted = forecastWh * p.Confidence / consumption * 100
	raw = forecastWh / consumption * 100
	return discounted, raw
}

// TargetSOC selects the coverage tier for a forecast and clamps the result
// into the configured charge range.
func (p *Planner) TargetSOC(forecastWh float64) int {
	coverage, _ := p.CoverageFor(forecastWh)
	return p.targetForCoverage(coverage)
}

func (p *Planner) targetForCoverage(coveragePct float64) int {
	minPct, maxPct := p.Battery.MinChargePct, p.Battery.MaxChargePct
	target := maxPct
	for _, tier := range coverageTiers {
		if coveragePct >= tier.minCoveragePct {
			target = tier.target(minPct, maxPct)
			break
		}
	}
	return clampInt(target, minPct, maxPct)
}

func (p *Planner) CalculateOptimalChargePlan(currentSOC int, forecastWh float64) domain.ChargePlan {
	forecastWh = math.Max(forecastWh, 0)
	discounted, raw := p.CoverageFor(forecastWh)
	target := p.targetForCoverage(discounted)
	offPeakHours := p.OffPeakHours()
	rate := CalculateChargeRate(target, currentSOC, p.Battery.CapacityWh, p.Battery.MaxChargeRateW, offPeakHours)

	if p.Logger != nil {
		p.Logger.Debug("charge plan computed",
			zap.Float64("forecast_wh", forecastWh),
			zap.Float64("adjusted_forecast_wh", forecastWh*p.Confidence),
			zap.Float64("coverage_pct", discounted),
			zap.Float64("raw_coverage_pct", raw),
			zap.Int("current_soc", currentSOC),
			zap.Int("target_soc", target),
			zap.Int("charge_rate_pct", rate))
	}

	return domain.ChargePlan{
		TargetSOC:        target,
		ChargeRatePct:    rate,
		ForecastWh:       forecastWh,
		SolarCoveragePct: raw,
		OffPeakHours:     offPeakHours,
	}
}

// CalculateChargeRate returns the percentage of the maximum charge rate needed
// to go from currentSOC to targetSOC within the off-peak window, rounded down.
func CalculateChargeRate(targetSOC, currentSOC int, capacityWh, maxChargeRateW, offPeakHours float64) int {
	socNeeded := targetSOC - currentSOC
	if socNeeded <= 0 || offPeakHours <= 0 || maxChargeRateW <= 0 {
		return 0
	}
	whNeeded := float64(socNeeded) / 100 * capacityWh
	requiredRateW := whNeeded / offPeakHours
	pct := requiredRateW / maxChargeRateW * 100
	return clampInt(int(math.Floor(pct)), 0, 100)
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
