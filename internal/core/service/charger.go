package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/berfenger/growattcharger/internal/config"
	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/berfenger/growattcharger/internal/core/port"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RECENT_ACCURACY_DAYS is the window of the accuracy line logged after a run.
const RECENT_ACCURACY_DAYS = 7

// Charger runs the nightly cycle: login, resolve the device, read the SOC,
// plan from tomorrow's forecast and push the schedule when needed.
type Charger struct {
	Config    config.Config
	Inverter  port.InverterClient
	Forecasts *ForecastManager
	Planner   *Planner
	DataLog   port.DataLog
	Publisher port.RunPublisher
	Observer  port.RunObserver
	Retry     RetryPolicy
	Logger    *zap.Logger
	Now       func() time.Time
}

func (c *Charger) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// ShouldUpdate reports whether a new schedule must be written. Any target
// above the current SOC triggers an update; otherwise the gap must exceed
// threshold percentage points.
func ShouldUpdate(currentSOC, targetSOC int, threshold float64) bool {
	return targetSOC > currentSOC || math.Abs(float64(currentSOC-targetSOC)) > threshold
}

// WrittenChargeRate applies the efficiency multiplier to the planned rate and
// caps it at 100% and at the hardware share of the battery's max rate.
func WrittenChargeRate(planRatePct int, battery config.BatteryConfig, charging config.ChargingConfig) int {
	maxRatePct := battery.MaxChargeRateW / charging.HardwareMaxRateW * 100
	rate := math.Min(100, math.Floor(float64(planRatePct)*charging.EfficiencyMultiplier))
	rate = math.Min(rate, maxRatePct)
	return int(math.Max(rate, 0))
}

func (c *Charger) Run(ctx context.Context) (*domain.RunResult, error) {
	start := c.now()
	result := &domain.RunResult{
		RunID:        uuid.NewString(),
		StartedAt:    start,
		ForecastDate: domain.DateOf(start).AddDate(0, 0, 1),
		States:       []domain.RunState{domain.RunStateLoggedOut},
	}
	logger := c.Logger.With(zap.String("run_id", result.RunID))
	logger.Info("starting charge cycle", zap.String("forecast_date", result.ForecastDate.Format(domain.DateLayout)))

	err := c.run(ctx, result, logger)
	result.FinishedAt = c.now()
	if err != nil {
		logger.Error("charge cycle failed", zap.Error(err), zap.Any("states", result.States))
	} else {
		logger.Info("charge cycle finished",
			zap.Bool("updated", result.Updated),
			zap.Duration("elapsed", result.FinishedAt.Sub(start)))
	}
	if c.Observer != nil {
		c.Observer.ObserveRun(*result, err)
	}
	if err != nil {
		return result, err
	}

	if c.Publisher != nil {
		if perr := c.Publisher.PublishRun(ctx, *result); perr != nil {
			logger.Warn("could not publish run result", zap.Error(perr))
		}
	}
	c.refreshSummary(logger)
	return result, nil
}

// refreshSummary rebuilds the performance summary after a run and logs the
// recent forecast accuracy. Failures are only logged.
func (c *Charger) refreshSummary(logger *zap.Logger) {
	if c.DataLog == nil {
		return
	}
	reporter := &PerformanceReporter{DataLog: c.DataLog, Logger: logger}
	rows, err := reporter.Generate()
	if err != nil {
		logger.Warn("could not refresh performance summary", zap.Error(err))
		return
	}
	if avg, ok := RecentAccuracy(rows, c.now(), RECENT_ACCURACY_DAYS); ok {
		logger.Info("recent forecast accuracy",
			zap.Int("days", RECENT_ACCURACY_DAYS),
			zap.Float64("avg_accuracy_pct", avg),
			zap.String("status", RecentAccuracyStatus(avg)))
	}
}

func (c *Charger) run(ctx context.Context, result *domain.RunResult, logger *zap.Logger) error {
	transition := func(s domain.RunState) {
		result.States = append(result.States, s)
		logger.Debug("charge cycle state", zap.String("state", string(s)))
	}

	device, err := c.connect(ctx)
	if err != nil {
		return err
	}
	transition(domain.RunStateLoggedIn)
	result.Device = device
	transition(domain.RunStateDeviceResolved)

	soc, err := Retry(ctx, c.Retry, "read_soc", func() (int, error) {
		return c.Inverter.ReadSOC(ctx, device)
	})
	if err != nil {
		return fmt.Errorf("reading battery soc: %w", err)
	}
	result.CurrentSOC = soc
	logger.Info("current battery charge", zap.Int("soc", soc))

	c.logTodayActuals(ctx, device, soc, logger)

	c.plan(ctx, result, logger)
	transition(domain.RunStatePlanComputed)

	c.logPrediction(result, logger)

	threshold := c.Config.Charging.UpdateThresholdPct
	if !ShouldUpdate(result.CurrentSOC, result.Plan.TargetSOC, threshold) {
		logger.Info("no settings update needed",
			zap.Int("current_soc", result.CurrentSOC),
			zap.Int("target_soc", result.Plan.TargetSOC))
		transition(domain.RunStateSkipped)
		transition(domain.RunStateDone)
		return nil
	}

	window, err := c.Config.TariffWindow()
	if err != nil {
		return err
	}
	rate := WrittenChargeRate(result.Plan.ChargeRatePct, c.Config.Battery, c.Config.Charging)
	schedule := domain.ChargeSchedule{
		ChargeRatePct: rate,
		TargetSOCPct:  result.Plan.TargetSOC,
		Start:         window.Start,
		End:           window.End,
	}
	logger.Info("settings update needed",
		zap.Int("current_soc", result.CurrentSOC),
		zap.Int("target_soc", result.Plan.TargetSOC),
		zap.Int("planned_rate_pct", result.Plan.ChargeRatePct),
		zap.Int("written_rate_pct", rate),
		zap.Float64("efficiency_multiplier", c.Config.Charging.EfficiencyMultiplier))

	err = c.Retry.Do(ctx, "write_schedule", func() error {
		return c.Inverter.WriteSchedule(ctx, device, schedule)
	})
	if err != nil {
		return fmt.Errorf("updating charge settings: %w", err)
	}
	result.Updated = true
	result.WrittenRatePct = rate
	logger.Info("charge settings updated",
		zap.Int("rate_pct", rate),
		zap.Int("target_soc", schedule.TargetSOCPct),
		zap.String("window", window.String()))
	transition(domain.RunStateUpdated)
	transition(domain.RunStateDone)
	return nil
}

// connect logs in and resolves the inverter. Both steps are fatal for the
// run.
func (c *Charger) connect(ctx context.Context) (domain.InverterDevice, error) {
	g := c.Config.Growatt
	err := c.Retry.Do(ctx, "login", func() error {
		return c.Inverter.Login(ctx, g.Username, g.Password)
	})
	if err != nil {
		return domain.InverterDevice{}, fmt.Errorf("login: %w", err)
	}
	device, err := Retry(ctx, c.Retry, "resolve_device", func() (domain.InverterDevice, error) {
		return c.Inverter.ResolveDevice(ctx, g.PlantID, g.DeviceSN)
	})
	if err != nil {
		return domain.InverterDevice{}, fmt.Errorf("resolving device: %w", err)
	}
	return device, nil
}

// plan never fails. Without a forecast it falls back to a full charge.
func (c *Charger) plan(ctx context.Context, result *domain.RunResult, logger *zap.Logger) {
	forecast, err := c.Forecasts.ForecastForDate(ctx, result.ForecastDate, true)
	if err != nil {
		logger.Warn("forecast unavailable, falling back to maximum charge", zap.Error(err))
		result.Degraded = true
		result.Plan = domain.DegradedChargePlan(c.Config.Battery.MaxChargePct, c.Planner.OffPeakHours())
		return
	}
	result.Provider = forecast.Provider
	result.Plan = c.Planner.CalculateOptimalChargePlan(result.CurrentSOC, forecast.Wh)
	logger.Info("charge plan",
		zap.String("provider", forecast.Provider),
		zap.Float64("forecast_wh", result.Plan.ForecastWh),
		zap.Float64("solar_coverage_pct", result.Plan.SolarCoveragePct),
		zap.Int("target_soc", result.Plan.TargetSOC),
		zap.Int("charge_rate_pct", result.Plan.ChargeRatePct),
		zap.Float64("off_peak_hours", result.Plan.OffPeakHours))

	c.hourlyInsight(ctx, result, logger)
	c.compareProviders(ctx, result, logger)
}

func (c *Charger) hourlyInsight(ctx context.Context, result *domain.RunResult, logger *zap.Logger) {
	hourly, provider, err := c.Forecasts.HourlyForecastForDate(ctx, result.ForecastDate, true)
	if err != nil {
		logger.Warn("hourly forecast unavailable", zap.Error(err))
		return
	}
	window, err := c.Config.TariffWindow()
	if err != nil {
		return
	}
	b := c.Config.Battery
	insight := HourlyInsightFor(hourly, b.AverageLoadW, b.MaxChargeRateW, window.End)
	result.Insight = &insight

	fields := []zap.Field{
		zap.String("provider", provider),
		zap.Float64("surplus_for_battery_wh", insight.SurplusWh),
	}
	if insight.GridNeutralAt != nil {
		fields = append(fields,
			zap.String("grid_neutral_at", insight.GridNeutralAt.Format("15:04")),
			zap.Float64("grid_neutral_wh", insight.GridNeutralWh))
	}
	logger.Info("hourly forecast insight", fields...)
}

func (c *Charger) compareProviders(ctx context.Context, result *domain.RunResult, logger *zap.Logger) {
	if c.DataLog == nil || len(c.Forecasts.ProviderNames()) < 2 {
		return
	}
	rec := domain.ProviderComparisonRecord{
		Date:      result.ForecastDate,
		LoggedAt:  c.now(),
		Primary:   c.Forecasts.Primary(),
		Forecasts: c.Forecasts.AllForecastsForDate(ctx, result.ForecastDate),
	}
	if err := c.DataLog.LogProviderComparison(rec); err != nil {
		logger.Warn("could not log provider comparison", zap.Error(err))
	}
}

func (c *Charger) logPrediction(result *domain.RunResult, logger *zap.Logger) {
	if c.DataLog == nil {
		return
	}
	b := c.Config.Battery
	rec := domain.PredictionRecord{
		PredictionDate:      result.ForecastDate,
		LoggedAt:            c.now(),
		ForecastWh:          result.Plan.ForecastWh,
		SolarCoveragePct:    result.Plan.SolarCoveragePct,
		CurrentSOC:          result.CurrentSOC,
		TargetSOC:           result.Plan.TargetSOC,
		ExpectedSOCIncrease: result.Plan.TargetSOC - result.CurrentSOC,
		ChargeRatePct:       result.Plan.ChargeRatePct,
		OffPeakWindow:       fmt.Sprintf("%s-%s", c.Config.Tariff.OffPeakStart, c.Config.Tariff.OffPeakEnd),
		BatteryCapacityWh:   b.CapacityWh,
		AverageLoadW:        b.AverageLoadW,
		DailyConsumptionWh:  b.DailyConsumptionWh(),
	}
	if err := c.DataLog.LogPrediction(rec); err != nil {
		logger.Warn("could not log prediction", zap.Error(err))
		return
	}
	logger.Info("logged prediction", zap.String("date", rec.PredictionDate.Format(domain.DateLayout)))
}

// logTodayActuals records today's generation and charge counters. The SOC
// read at run time stands in for the evening SOC.
func (c *Charger) logTodayActuals(ctx context.Context, device domain.InverterDevice, eveningSOC int, logger *zap.Logger) {
	if c.DataLog == nil {
		return
	}
	energy, err := Retry(ctx, c.Retry, "energy_today", func() (domain.EnergyToday, error) {
		return c.Inverter.EnergyToday(ctx, device)
	})
	if err != nil {
		logger.Warn("could not log today's actuals", zap.Error(err))
		return
	}
	if energy.GenerationWh <= 0 {
		logger.Info("no generation reported yet, skipping actuals")
		return
	}

	now := c.now()
	rec := domain.ActualRecord{
		Date:         domain.DateOf(now),
		LoggedAt:     now,
		GenerationWh: energy.GenerationWh,
		SOCEvening:   eveningSOC,
		ChargeWh:     energy.ChargeWh,
		Notes:        fmt.Sprintf("Logged at %s", now.Format("15:04")),
	}

	pred, err := c.DataLog.PredictionFor(rec.Date)
	if err != nil {
		logger.Debug("could not read today's prediction", zap.Error(err))
	}
	if pred != nil {
		morning := pred.CurrentSOC
		rec.SOCMorning = &morning
		if energy.ChargeWh > 0 && c.Config.Battery.CapacityWh > 0 {
			increase := energy.ChargeWh / c.Config.Battery.CapacityWh * 100
			rec.SOCIncrease = &increase
			logger.Info("charge analysis",
				zap.Int("started_soc", morning),
				zap.Float64("charged_wh", energy.ChargeWh),
				zap.Float64("soc_increase_pct", increase),
				zap.Float64("expected_soc", float64(morning)+increase),
				zap.Int("target_soc", pred.TargetSOC))
		}
		if rec.SOCIncrease == nil {
			increase := float64(eveningSOC - morning)
			rec.SOCIncrease = &increase
		}
	}

	if err := c.DataLog.LogActual(rec); err != nil {
		logger.Warn("could not log today's actuals", zap.Error(err))
		return
	}
	logger.Info("logged today's actuals",
		zap.Float64("generated_wh", energy.GenerationWh),
		zap.Float64("charged_wh", energy.ChargeWh),
		zap.Int("soc", eveningSOC))
}
