package port

import (
	"time"

	"github.com/berfenger/growattcharger/internal/core/domain"
)

// DataLog is the append-only record of predictions and outcomes.
type DataLog interface {
	LogPrediction(rec domain.PredictionRecord) error
	LogActual(rec domain.ActualRecord) error
	LogProviderComparison(rec domain.ProviderComparisonRecord) error
	LogMorningCheck(rec domain.MorningCheckRecord) error
	PredictionFor(date time.Time) (*domain.PredictionRecord, error)
	Predictions() ([]domain.PredictionRecord, error)
	Actuals() ([]domain.ActualRecord, error)
	WritePerformanceSummary(rows []domain.PerformanceRow) error
}
