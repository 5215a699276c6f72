package csvlog

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/stretchr/testify/require"
)

var (
	loggedAt = time.Date(2025, 6, 2, 22, 0, 5, 0, time.UTC)
	today    = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	tomorrow = today.AddDate(0, 0, 1)
)

func newTestLog(t *testing.T) (*DataLog, string) {
	dir := filepath.Join(t.TempDir(), "output")
	l, err := New(dir, []string{"forecast.solar", "solcast"}, time.UTC)
	require.NoError(t, err)
	return l, dir
}

func readCSV(t *testing.T, path string) [][]string {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func prediction(date time.Time, target int) domain.PredictionRecord {
	return domain.PredictionRecord{
		PredictionDate:      date,
		LoggedAt:            loggedAt,
		ForecastWh:          6000.4,
		SolarCoveragePct:    83.339,
		CurrentSOC:          50,
		TargetSOC:           target,
		ExpectedSOCIncrease: target - 50,
		ChargeRatePct:       13,
		OffPeakWindow:       "00:30-05:30",
		BatteryCapacityWh:   10000,
		AverageLoadW:        300,
		DailyConsumptionWh:  7200,
	}
}

func TestPredictionsRoundTrip(t *testing.T) {

	require := require.New(t)

	l, dir := newTestLog(t)

	preds, err := l.Predictions()
	require.NoError(err)
	require.Empty(preds, "missing file has no rows")

	require.NoError(l.LogPrediction(prediction(tomorrow, 70)))
	require.NoError(l.LogPrediction(prediction(tomorrow, 80)))
	require.NoError(l.LogPrediction(prediction(today, 60)))

	rows := readCSV(t, filepath.Join(dir, PREDICTIONS_FILE))
	require.Len(rows, 4, "header is written once")
	require.Equal(predictionHeader, rows[0])
	require.Equal([]string{"2025-06-03", "2025-06-02 22:00:05", "6000", "6.00", "83.3", "50", "70", "20", "13",
		"00:30-05:30", "10000", "300", "7200"}, rows[1])

	preds, err = l.Predictions()
	require.NoError(err)
	require.Len(preds, 3)
	require.Equal(tomorrow, preds[0].PredictionDate)
	require.Equal(loggedAt, preds[0].LoggedAt)
	require.Equal(6000.0, preds[0].ForecastWh)
	require.Equal(13, preds[0].ChargeRatePct)

	p, err := l.PredictionFor(tomorrow.Add(22 * time.Hour))
	require.NoError(err)
	require.NotNil(p)
	require.Equal(80, p.TargetSOC, "latest prediction for a date wins")

	p, err = l.PredictionFor(tomorrow.AddDate(0, 0, 1))
	require.NoError(err)
	require.Nil(p)
}

func TestActualsRoundTrip(t *testing.T) {

	require := require.New(t)

	l, dir := newTestLog(t)

	morning := 35
	increase := 24.0
	require.NoError(l.LogActual(domain.ActualRecord{
		Date:         today,
		LoggedAt:     loggedAt,
		GenerationWh: 12340,
		SOCEvening:   80,
		SOCMorning:   &morning,
		SOCIncrease:  &increase,
		ChargeWh:     2400,
		Notes:        "Logged at 22:00",
	}))
	require.NoError(l.LogActual(domain.ActualRecord{Date: tomorrow, LoggedAt: loggedAt, GenerationWh: 500}))

	rows := readCSV(t, filepath.Join(dir, ACTUALS_FILE))
	require.Equal([]string{"2025-06-02", "2025-06-02 22:00:05", "12340", "12.34", "80", "35", "24.0", "2400", "2.40", "Logged at 22:00"}, rows[1])
	require.Equal([]string{"2025-06-03", "2025-06-02 22:00:05", "500", "0.50", "", "", "", "", "", ""}, rows[2])

	actuals, err := l.Actuals()
	require.NoError(err)
	require.Len(actuals, 2)
	require.Equal(35, *actuals[0].SOCMorning)
	require.Equal(24.0, *actuals[0].SOCIncrease)
	require.Equal(2400.0, actuals[0].ChargeWh)
	require.Nil(actuals[1].SOCMorning)
	require.Nil(actuals[1].SOCIncrease)
}

func TestProviderComparison(t *testing.T) {

	require := require.New(t)

	l, dir := newTestLog(t)

	require.NoError(l.LogProviderComparison(domain.ProviderComparisonRecord{
		Date:     tomorrow,
		LoggedAt: loggedAt,
		Primary:  "solcast",
		Forecasts: []domain.ProviderForecast{
			{Provider: "solcast", Wh: 8000},
			{Provider: "forecast.solar", Wh: 10000},
		},
	}))
	require.NoError(l.LogProviderComparison(domain.ProviderComparisonRecord{
		Date:     tomorrow,
		LoggedAt: loggedAt,
		Primary:  "solcast",
		Forecasts: []domain.ProviderForecast{
			{Provider: "solcast", Err: errors.New("rate limited")},
			{Provider: "forecast.solar", Wh: 10000},
		},
	}))

	rows := readCSV(t, filepath.Join(dir, PROVIDER_COMPARISON_FILE))
	require.Equal([]string{"Date", "Logged At", "Primary Provider", "forecast.solar Forecast (kWh)", "solcast Forecast (kWh)", "Variance (%)"}, rows[0])
	require.Equal([]string{"2025-06-03", "2025-06-02 22:00:05", "solcast", "10.00", "8.00", "20.0"}, rows[1])
	require.Equal([]string{"2025-06-03", "2025-06-02 22:00:05", "solcast", "10.00", "N/A", "N/A"}, rows[2])
}

func TestMorningCheck(t *testing.T) {

	l, dir := newTestLog(t)

	require.NoError(t, l.LogMorningCheck(domain.MorningCheckRecord{
		Date:          today,
		CheckedAt:     loggedAt,
		TargetSOC:     70,
		ActualSOC:     62,
		Variance:      -8,
		ChargeRatePct: 13,
		Achievement:   88.571,
		Status:        "Good",
	}))

	rows := readCSV(t, filepath.Join(dir, MORNING_CHECKS_FILE))
	require.Equal(t, morningHeader, rows[0])
	require.Equal(t, []string{"2025-06-02", "2025-06-02 22:00:05", "70", "62", "-8", "13", "88.6", "Good"}, rows[1])
}

func TestPerformanceSummary(t *testing.T) {

	require := require.New(t)

	l, dir := newTestLog(t)

	actual, accuracy, errWh := 7800.0, 97.5, -200.0
	charge, increase, eff := 2400.0, 24.0, 80.0
	evening := 80
	rows := []domain.PerformanceRow{
		{
			Date: today, ForecastWh: 8000, ActualWh: &actual, AccuracyPct: &accuracy, ErrorWh: &errWh,
			SolarCoveragePct: 111.1, TargetSOC: 70, ExpectedSOCIncrease: 30, ActualSOCIncrease: &increase,
			ChargeRatePct: 13, ChargeWh: &charge, ChargeEfficiencyPct: &eff, SOCEvening: &evening, Rating: "Excellent",
		},
		{Date: tomorrow, ForecastWh: 6000, SolarCoveragePct: 83.3, TargetSOC: 60, ExpectedSOCIncrease: 10, ChargeRatePct: 6, Rating: "Pending"},
	}
	require.NoError(l.WritePerformanceSummary(rows))
	require.NoError(l.WritePerformanceSummary(rows), "summary is replaced, not appended")

	out := readCSV(t, filepath.Join(dir, PERFORMANCE_SUMMARY_FILE))
	require.Len(out, 3)
	require.Equal(summaryHeader, out[0])
	require.Equal([]string{"2025-06-02", "8.00", "7.80", "97.5", "-0.20", "111.1", "70", "30", "24.0", "13", "2.40", "80.0", "80", "Excellent"}, out[1])
	require.Equal([]string{"2025-06-03", "6.00", "N/A", "N/A", "N/A", "83.3", "60", "10", "N/A", "6", "N/A", "N/A", "N/A", "Pending"}, out[2])

	entries, err := os.ReadDir(dir)
	require.NoError(err)
	require.Len(entries, 1, "no temporary files left behind")
}

func TestMalformedRows(t *testing.T) {

	l, dir := newTestLog(t)

	content := "Prediction Date,Logged At,Forecast (Wh)\n2025-13-45,2025-06-02 22:00:05,100\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, PREDICTIONS_FILE), []byte(content), 0o644))

	_, err := l.Predictions()
	require.ErrorContains(t, err, "row 2")
}

func TestLegacyChargeRateColumn(t *testing.T) {

	l, dir := newTestLog(t)

	content := "Prediction Date,Logged At,Forecast (Wh),Target SOC (%),Charge Rate (%)\n2025-06-03,2025-06-02 22:00:05,100,70,13\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, PREDICTIONS_FILE), []byte(content), 0o644))

	preds, err := l.Predictions()
	require.NoError(t, err)
	require.Equal(t, 13, preds[0].ChargeRatePct)
}

func TestPredictionForLatestWins(t *testing.T) {
	l, _ := newTestLog(t)
	require.NoError(t, l.LogPrediction(prediction(today, 60)))
	require.NoError(t, l.LogPrediction(prediction(today, 75)))

	p, err := l.PredictionFor(today)
	require.NoError(t, err)
	require.Equal(t, 75, p.TargetSOC)
}
