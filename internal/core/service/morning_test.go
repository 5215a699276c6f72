package service

import (
	"context"
	"testing"

	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestMorningCheckWithPrediction(t *testing.T) {

	require := require.New(t)

	f := newChargerFixture(t, nil, &fakeProvider{name: "forecast.solar", wh: 6000})
	f.inverter.soc = 62
	f.datalog.predictions = []domain.PredictionRecord{
		{PredictionDate: domain.DateOf(runAt), TargetSOC: 70, ChargeRatePct: 13},
	}

	result, err := f.charger.MorningCheck(context.Background())
	require.NoError(err)
	require.True(result.HasPrediction)

	rec := result.Record
	require.Equal(62, rec.ActualSOC)
	require.Equal(70, rec.TargetSOC)
	require.Equal(-8, rec.Variance)
	require.Equal(13, rec.ChargeRatePct)
	require.InDelta(88.57, rec.Achievement, 0.01)
	require.Equal(RATING_GOOD, rec.Status)
	require.Len(f.datalog.morning, 1)
}

func TestMorningCheckWithoutPrediction(t *testing.T) {

	require := require.New(t)

	f := newChargerFixture(t, nil, &fakeProvider{name: "forecast.solar", wh: 6000})
	f.inverter.soc = 40

	result, err := f.charger.MorningCheck(context.Background())
	require.NoError(err)
	require.False(result.HasPrediction)
	require.Equal(0, result.Record.TargetSOC)
	require.Equal(100.0, result.Record.Achievement)
	require.Equal(RATING_EXCELLENT, result.Record.Status)
	require.Len(f.datalog.morning, 1)
}

func TestMorningStatus(t *testing.T) {

	require := require.New(t)

	require.Equal(RATING_EXCELLENT, MorningStatus(-5))
	require.Equal(RATING_GOOD, MorningStatus(10))
	require.Equal(RATING_FAIR, MorningStatus(-15))
	require.Equal(RATING_POOR, MorningStatus(16))
}
