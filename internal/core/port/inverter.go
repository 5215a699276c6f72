package port

import (
	"context"

	"github.com/berfenger/growattcharger/internal/core/domain"
)

type InverterClient interface {
	Login(ctx context.Context, username, password string) error
	ResolveDevice(ctx context.Context, plantID, deviceSN string) (domain.InverterDevice, error)
	ReadSOC(ctx context.Context, device domain.InverterDevice) (int, error)
	EnergyToday(ctx context.Context, device domain.InverterDevice) (domain.EnergyToday, error)
	WriteSchedule(ctx context.Context, device domain.InverterDevice, schedule domain.ChargeSchedule) error
}
