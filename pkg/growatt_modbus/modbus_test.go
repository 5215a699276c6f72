package growatt_modbus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStorageReads(t *testing.T) {

	require := require.New(t)

	reader, regs := CreateTestStorageModbusReader()
	require.NoError(reader.Open())
	defer reader.Close()

	soc, err := reader.GetStateOfCharge()
	require.NoError(err)
	require.Equal(50, soc)

	energy, err := reader.GetEnergyToday()
	require.NoError(err)
	require.Equal(12300.0, energy.PVEnergyWh)
	require.Equal(2000.0, energy.ChargeEnergyWh)

	// counters above 6553.5 kWh use the high word
	regs.Input[RegPVEnergyToday] = 1
	energy, err = reader.GetEnergyToday()
	require.NoError(err)
	require.Equal(float64(65536+123)*100, energy.PVEnergyWh)

	regs.Input[RegBatterySOC] = 250
	_, err = reader.GetStateOfCharge()
	require.Error(err)
}

func TestStorageSchedule(t *testing.T) {

	require := require.New(t)

	reader, regs := CreateTestStorageModbusReader()
	require.NoError(reader.Open())

	schedule := ACChargeSchedule{
		ChargeRatePercent: 26,
		StopSOCPercent:    70,
		Enabled:           true,
		Start:             SlotTime{Hour: 0, Minute: 30},
		End:               SlotTime{Hour: 5, Minute: 30},
	}
	require.NoError(reader.SetACChargeSchedule(schedule))
	require.Equal(uint16(26), regs.Holding[RegACChargeRate])
	require.Equal(uint16(70), regs.Holding[RegACChargeStopSOC])
	require.Equal(uint16(1), regs.Holding[RegACChargeEnable])
	require.Equal(uint16(0x001e), regs.Holding[RegACChargeSlot1])
	require.Equal(uint16(0x051e), regs.Holding[RegACChargeSlot1+1])
	require.Equal(uint16(1), regs.Holding[RegACChargeSlot1+2])

	read, err := reader.GetACChargeSchedule()
	require.NoError(err)
	require.Equal(schedule, *read)

	schedule.StopSOCPercent = 101
	require.Error(reader.SetACChargeSchedule(schedule))
	schedule.StopSOCPercent = 70
	schedule.End = SlotTime{Hour: 24}
	require.Error(reader.SetACChargeSchedule(schedule))
	require.Equal(2, regs.Writes, "invalid schedules are not written")
}

func TestStorageErrors(t *testing.T) {

	reader, regs := CreateTestStorageModbusReader()
	_, err := reader.GetStateOfCharge()
	require.Error(t, err, "reads need an open connection")

	regs.Err = errors.New("i/o timeout")
	require.ErrorIs(t, reader.Open(), regs.Err)
}

func TestSlotTime(t *testing.T) {

	require := require.New(t)

	require.Equal(SlotTime{Hour: 23, Minute: 59}, DecodeSlotTime(SlotTime{Hour: 23, Minute: 59}.Encode()))
	require.Equal("05:30", DecodeSlotTime(0x051e).String())
}

func TestInstrumentation(t *testing.T) {

	var calls []string
	inst := &ModbusInstrument{RecordTime: func(fnName string, _ time.Duration) {
		calls = append(calls, fnName)
	}}
	regs := NewMemoryRegisters()
	reader := newStorageModbusClient(regs, zap.NewNop(), inst)
	require.NoError(t, reader.Open())

	_, err := reader.GetStateOfCharge()
	require.NoError(t, err)
	require.Equal(t, []string{"ReadRegister"}, calls)
}
