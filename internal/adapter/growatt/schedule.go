package growatt

import (
	"fmt"

	"github.com/berfenger/growattcharger/internal/core/domain"
)

// ValidateSchedule rejects out of range values before anything is sent to
// the inverter.
func ValidateSchedule(s domain.ChargeSchedule) error {
	if s.ChargeRatePct < 0 || s.ChargeRatePct > 100 {
		return fmt.Errorf("%w: charge rate must be between 0 and 100, got %d", domain.ErrInvalidInput, s.ChargeRatePct)
	}
	if s.TargetSOCPct < 0 || s.TargetSOCPct > 100 {
		return fmt.Errorf("%w: target soc must be between 0 and 100, got %d", domain.ErrInvalidInput, s.TargetSOCPct)
	}
	for _, t := range []domain.ClockTime{s.Start, s.End} {
		if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
			return fmt.Errorf("%w: invalid schedule time %s", domain.ErrInvalidInput, t)
		}
	}
	return nil
}
