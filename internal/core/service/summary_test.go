package service

import (
	"testing"
	"time"

	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func day(d int) time.Time {
	return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T {
	return &v
}

func TestBuildPerformanceRows(t *testing.T) {

	require := require.New(t)

	predictions := []domain.PredictionRecord{
		{PredictionDate: day(3), ForecastWh: 10000, TargetSOC: 60, ExpectedSOCIncrease: 20, ChargeRatePct: 13},
		{PredictionDate: day(1), ForecastWh: 8000, TargetSOC: 70, ExpectedSOCIncrease: 30},
		{PredictionDate: day(2), ForecastWh: 0, TargetSOC: 95},
	}
	actuals := []domain.ActualRecord{
		{Date: day(1), GenerationWh: 7800, SOCEvening: 80, ChargeWh: 2400, SOCIncrease: ptr(24.0)},
		{Date: day(2), GenerationWh: 500},
	}

	rows := BuildPerformanceRows(predictions, actuals)
	require.Len(rows, 3)

	require.Equal(day(1), rows[0].Date)
	require.InDelta(97.5, *rows[0].AccuracyPct, 1e-9)
	require.InDelta(-200, *rows[0].ErrorWh, 1e-9)
	require.InDelta(80, *rows[0].ChargeEfficiencyPct, 1e-9)
	require.Equal(80, *rows[0].SOCEvening)
	require.Equal(RATING_EXCELLENT, rows[0].Rating)

	// zero forecast gives zero accuracy
	require.Equal(0.0, *rows[1].AccuracyPct)
	require.Nil(rows[1].ChargeEfficiencyPct)
	require.Equal(RATING_POOR, rows[1].Rating)

	require.True(rows[2].Pending())
	require.Equal(RATING_PENDING, rows[2].Rating)
	require.Equal(13, rows[2].ChargeRatePct)
}

func TestAccuracyRating(t *testing.T) {

	assert := assert.New(t)

	assert.Equal(RATING_EXCELLENT, AccuracyRating(95))
	assert.Equal(RATING_GOOD, AccuracyRating(94.9))
	assert.Equal(RATING_FAIR, AccuracyRating(75))
	assert.Equal(RATING_POOR, AccuracyRating(74.9))
	assert.Equal(RATING_GOOD, RecentAccuracyStatus(80))
	assert.Equal(RATING_FAIR, RecentAccuracyStatus(79))
}

func TestRecentAccuracy(t *testing.T) {

	require := require.New(t)

	rows := []domain.PerformanceRow{
		{Date: day(1), AccuracyPct: ptr(50.0)},
		{Date: day(8), AccuracyPct: ptr(90.0)},
		{Date: day(9), AccuracyPct: ptr(100.0)},
		{Date: day(10)},
	}
	avg, ok := RecentAccuracy(rows, day(10).Add(22*time.Hour), 7)
	require.True(ok)
	require.InDelta(95.0, avg, 1e-9)

	_, ok = RecentAccuracy(rows[3:], day(10), 7)
	require.False(ok)
}

func TestPerformanceReporter(t *testing.T) {

	require := require.New(t)

	log := &fakeDataLog{
		predictions: []domain.PredictionRecord{{PredictionDate: day(1), ForecastWh: 1000}},
		actuals:     []domain.ActualRecord{{Date: day(1), GenerationWh: 900}},
	}
	r := &PerformanceReporter{DataLog: log, Logger: zaptest.NewLogger(t)}

	rows, err := r.Generate()
	require.NoError(err)
	require.Len(rows, 1)
	require.Equal(rows, log.summary)
	require.Equal(RATING_GOOD, rows[0].Rating)

	log.err = errDiskFull
	_, err = r.Generate()
	require.ErrorIs(err, errDiskFull)
}
