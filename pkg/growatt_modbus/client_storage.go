package growatt_modbus

import (
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

type StorageModbusClient struct {
	ModbusClient
}

var _ StorageModbusReader = (*StorageModbusClient)(nil)

func traceLoggerInstrumentation(logger *zap.Logger) *ModbusInstrument {
	if logger == nil {
		return nil
	}
	return &ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("modbus call", zap.String("fn", fnName), zap.Int64("millis", readTime.Milliseconds()))
		},
	}
}

func CreateStorageModbusClient(ip string, port uint, unitId uint8, timeout time.Duration,
	logger *zap.Logger, instrumentation *ModbusInstrument) (StorageModbusReader, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", ip, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	if err := client.SetUnitId(unitId); err != nil {
		return nil, err
	}
	return newStorageModbusClient(client, logger.With(zap.String("target", "storage"), zap.Uint8("unitId", unitId)), instrumentation), nil
}

func newStorageModbusClient(client registerClient, logger *zap.Logger, instrumentation *ModbusInstrument) *StorageModbusClient {
	var inst []ModbusInstrument
	if logInst := traceLoggerInstrumentation(logger); logInst != nil {
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}
	return &StorageModbusClient{
		ModbusClient: ModbusClient{
			client:     client,
			instrument: inst,
		},
	}
}

func (st *StorageModbusClient) Open() error {
	return st.client.Open()
}

func (st *StorageModbusClient) Close() error {
	return st.client.Close()
}

func (st *StorageModbusClient) GetStateOfCharge() (int, error) {
	soc, err := st.readRegister(RegBatterySOC, modbus.INPUT_REGISTER)
	if err != nil {
		return 0, err
	}
	if soc > 100 {
		return 0, fmt.Errorf("battery soc out of range: %d", soc)
	}
	return int(soc), nil
}

func (st *StorageModbusClient) GetEnergyToday() (*EnergyToday, error) {
	pv, err := st.readUint32(RegPVEnergyToday, modbus.INPUT_REGISTER)
	if err != nil {
		return nil, err
	}
	charge, err := st.readUint32(RegChargeEnergyToday, modbus.INPUT_REGISTER)
	if err != nil {
		return nil, err
	}
	return &EnergyToday{
		PVEnergyWh:     float64(pv) * energyTenthKWhToWh,
		ChargeEnergyWh: float64(charge) * energyTenthKWhToWh,
	}, nil
}

func (st *StorageModbusClient) GetACChargeSchedule() (*ACChargeSchedule, error) {
	head, err := st.readRegisters(RegACChargeRate, 3, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	slot, err := st.readRegisters(RegACChargeSlot1, acChargeSlotLength, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	return &ACChargeSchedule{
		ChargeRatePercent: head[0],
		StopSOCPercent:    head[1],
		Enabled:           head[2] == 1 && slot[2] == 1,
		Start:             DecodeSlotTime(slot[0]),
		End:               DecodeSlotTime(slot[1]),
	}, nil
}

// SetACChargeSchedule writes rate, stop SOC and enable flag first, then the
// first time slot.
func (st *StorageModbusClient) SetACChargeSchedule(schedule ACChargeSchedule) error {
	if err := schedule.Validate(); err != nil {
		return err
	}
	enable := boolRegister(schedule.Enabled)
	err := st.writeRegisters(RegACChargeRate, []uint16{schedule.ChargeRatePercent, schedule.StopSOCPercent, enable})
	if err != nil {
		return err
	}
	return st.writeRegisters(RegACChargeSlot1, []uint16{schedule.Start.Encode(), schedule.End.Encode(), enable})
}
