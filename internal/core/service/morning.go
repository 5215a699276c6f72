package service

import (
	"context"
	"fmt"

	"github.com/berfenger/growattcharger/internal/core/domain"
	"go.uber.org/zap"
)

// MorningCheck compares the SOC after the off-peak window with the target
// planned the night before and records the outcome.
func (c *Charger) MorningCheck(ctx context.Context) (*domain.MorningCheckResult, error) {
	device, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	soc, err := Retry(ctx, c.Retry, "read_soc", func() (int, error) {
		return c.Inverter.ReadSOC(ctx, device)
	})
	if err != nil {
		return nil, fmt.Errorf("reading battery soc: %w", err)
	}

	now := c.now()
	result := &domain.MorningCheckResult{
		Record: domain.MorningCheckRecord{
			Date:      domain.DateOf(now),
			CheckedAt: now,
			ActualSOC: soc,
		},
	}

	var pred *domain.PredictionRecord
	if c.DataLog != nil {
		pred, err = c.DataLog.PredictionFor(result.Record.Date)
		if err != nil {
			c.Logger.Warn("could not read last night's prediction", zap.Error(err))
		}
	}

	rec := &result.Record
	if pred != nil {
		result.HasPrediction = true
		rec.TargetSOC = pred.TargetSOC
		rec.ChargeRatePct = pred.ChargeRatePct
		rec.Variance = soc - pred.TargetSOC
	}
	rec.Achievement = 100
	if rec.TargetSOC > 0 {
		rec.Achievement = float64(soc) / float64(rec.TargetSOC) * 100
	}
	rec.Status = MorningStatus(rec.Variance)

	if result.HasPrediction {
		c.Logger.Info("morning soc check",
			zap.Int("actual_soc", soc),
			zap.Int("target_soc", rec.TargetSOC),
			zap.Int("variance", rec.Variance),
			zap.Float64("achievement_pct", rec.Achievement),
			zap.String("status", rec.Status))
	} else {
		c.Logger.Warn("no prediction found for today, logging soc only", zap.Int("actual_soc", soc))
	}

	if c.DataLog != nil {
		if err := c.DataLog.LogMorningCheck(*rec); err != nil {
			c.Logger.Warn("could not log morning check", zap.Error(err))
		}
	}
	return result, nil
}
