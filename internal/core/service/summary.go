package service

import (
	"slices"
	"time"

	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/berfenger/growattcharger/internal/core/port"
	"go.uber.org/zap"
)

const (
	RATING_EXCELLENT = "Excellent"
	RATING_GOOD      = "Good"
	RATING_FAIR      = "Fair"
	RATING_POOR      = "Poor"
	RATING_PENDING   = "Pending"
)

// AccuracyRating grades a forecast accuracy percentage.
func AccuracyRating(accuracyPct float64) string {
	switch {
	case accuracyPct >= 95:
		return RATING_EXCELLENT
	case accuracyPct >= 85:
		return RATING_GOOD
	case accuracyPct >= 75:
		return RATING_FAIR
	default:
		return RATING_POOR
	}
}

// RecentAccuracyStatus grades an averaged accuracy over several days.
func RecentAccuracyStatus(avgPct float64) string {
	switch {
	case avgPct >= 90:
		return RATING_EXCELLENT
	case avgPct >= 80:
		return RATING_GOOD
	case avgPct >= 70:
		return RATING_FAIR
	default:
		return RATING_POOR
	}
}

// MorningStatus grades how far the morning SOC landed from the target.
func MorningStatus(variance int) string {
	if variance < 0 {
		variance = -variance
	}
	switch {
	case variance <= 5:
		return RATING_EXCELLENT
	case variance <= 10:
		return RATING_GOOD
	case variance <= 15:
		return RATING_FAIR
	default:
		return RATING_POOR
	}
}

// BuildPerformanceRows joins predictions and actuals by date. The latest
// record wins when a date was logged more than once.
func BuildPerformanceRows(predictions []domain.PredictionRecord, actuals []domain.ActualRecord) []domain.PerformanceRow {
	preds := map[string]domain.PredictionRecord{}
	for _, p := range predictions {
		preds[p.PredictionDate.Format(domain.DateLayout)] = p
	}
	acts := map[string]domain.ActualRecord{}
	for _, a := range actuals {
		acts[a.Date.Format(domain.DateLayout)] = a
	}

	dates := make([]string, 0, len(preds))
	for d := range preds {
		dates = append(dates, d)
	}
	slices.Sort(dates)

	rows := make([]domain.PerformanceRow, 0, len(dates))
	for _, d := range dates {
		p := preds[d]
		row := domain.PerformanceRow{
			Date:                p.PredictionDate,
			ForecastWh:          p.ForecastWh,
			SolarCoveragePct:    p.SolarCoveragePct,
			TargetSOC:           p.TargetSOC,
			ExpectedSOCIncrease: p.ExpectedSOCIncrease,
			ChargeRatePct:       p.ChargeRatePct,
			Rating:              RATING_PENDING,
		}
		a, ok := acts[d]
		if !ok {
			rows = append(rows, row)
			continue
		}

		actual := a.GenerationWh
		accuracy := 0.0
		if p.ForecastWh > 0 {
			accuracy = actual / p.ForecastWh * 100
		}
		errWh := actual - p.ForecastWh
		charge := a.ChargeWh
		evening := a.SOCEvening

		row.ActualWh = &actual
		row.AccuracyPct = &accuracy
		row.ErrorWh = &errWh
		row.ChargeWh = &charge
		row.SOCEvening = &evening
		row.ActualSOCIncrease = a.SOCIncrease
		if p.ExpectedSOCIncrease > 0 && a.SOCIncrease != nil && *a.SOCIncrease > 0 {
			eff := *a.SOCIncrease / float64(p.ExpectedSOCIncrease) * 100
			row.ChargeEfficiencyPct = &eff
		}
		row.Rating = AccuracyRating(accuracy)
		rows = append(rows, row)
	}
	return rows
}

// RecentAccuracy averages the accuracy of rows dated within the last days.
func RecentAccuracy(rows []domain.PerformanceRow, now time.Time, days int) (float64, bool) {
	cutoff := domain.DateOf(now).AddDate(0, 0, -days)
	sum, n := 0.0, 0
	for _, r := range rows {
		if r.AccuracyPct == nil || r.Date.Before(cutoff) {
			continue
		}
		sum += *r.AccuracyPct
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// PerformanceReporter regenerates the performance summary from the data log.
type PerformanceReporter struct {
	DataLog port.DataLog
	Logger  *zap.Logger
}

func (r *PerformanceReporter) Generate() ([]domain.PerformanceRow, error) {
	predictions, err := r.DataLog.Predictions()
	if err != nil {
		return nil, err
	}
	actuals, err := r.DataLog.Actuals()
	if err != nil {
		return nil, err
	}
	rows := BuildPerformanceRows(predictions, actuals)
	if err := r.DataLog.WritePerformanceSummary(rows); err != nil {
		return nil, err
	}
	r.Logger.Info("performance summary generated", zap.Int("rows", len(rows)))
	return rows, nil
}
