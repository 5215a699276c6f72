package growatt

import (
	"context"
	"errors"
	"testing"

	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/berfenger/growattcharger/pkg/growatt_modbus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestModbusInverter(t *testing.T) {

	require := require.New(t)
	ctx := context.Background()

	reader, regs := growatt_modbus.CreateTestStorageModbusReader()
	inv := NewModbusInverter(reader, "192.168.1.20:502", zaptest.NewLogger(t))

	require.NoError(inv.Login(ctx, "", ""))
	require.NoError(inv.Login(ctx, "", ""), "login is idempotent")
	require.True(regs.Opened)

	dev, err := inv.ResolveDevice(ctx, "", "")
	require.NoError(err)
	require.Equal(domain.InverterDevice{PlantID: LOCAL_PLANT_ID, DeviceSN: "192.168.1.20:502"}, dev)

	soc, err := inv.ReadSOC(ctx, dev)
	require.NoError(err)
	require.Equal(50, soc)

	energy, err := inv.EnergyToday(ctx, dev)
	require.NoError(err)
	require.Equal(domain.EnergyToday{GenerationWh: 12300, ChargeWh: 2000}, energy)

	err = inv.WriteSchedule(ctx, dev, domain.ChargeSchedule{
		ChargeRatePct: 26,
		TargetSOCPct:  70,
		Start:         domain.ClockTime{Hour: 0, Minute: 30},
		End:           domain.ClockTime{Hour: 5, Minute: 30},
	})
	require.NoError(err)
	require.Equal(uint16(26), regs.Holding[growatt_modbus.RegACChargeRate])
	require.Equal(uint16(70), regs.Holding[growatt_modbus.RegACChargeStopSOC])
	require.Equal(uint16(5<<8|30), regs.Holding[growatt_modbus.RegACChargeSlot1+1])

	err = inv.WriteSchedule(ctx, dev, domain.ChargeSchedule{ChargeRatePct: 120})
	require.ErrorIs(err, domain.ErrInvalidInput)

	require.NoError(inv.Close())
	require.False(regs.Opened)
}

func TestModbusInverterErrorsAreRetryable(t *testing.T) {

	reader, regs := growatt_modbus.CreateTestStorageModbusReader()
	inv := NewModbusInverter(reader, "inverter", zaptest.NewLogger(t))

	regs.Err = errors.New("connection refused")
	require.ErrorIs(t, inv.Login(context.Background(), "", ""), domain.ErrVendorAPI)

	regs.Err = nil
	require.NoError(t, inv.Login(context.Background(), "", ""))
	regs.Err = errors.New("i/o timeout")
	_, err := inv.ReadSOC(context.Background(), domain.InverterDevice{})
	require.ErrorIs(t, err, domain.ErrVendorAPI)
}
