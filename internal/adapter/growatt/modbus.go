package growatt

import (
	"context"
	"fmt"
	"sync"

	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/berfenger/growattcharger/internal/core/port"
	"github.com/berfenger/growattcharger/pkg/growatt_modbus"
	"go.uber.org/zap"
)

const LOCAL_PLANT_ID = "local"

// ModbusInverter drives the inverter over local Modbus TCP. There is no
// session: Login opens the connection and device resolution only fills in
// placeholders.
type ModbusInverter struct {
	reader growatt_modbus.StorageModbusReader
	name   string
	logger *zap.Logger

	mu     sync.Mutex
	opened bool
}

var _ port.InverterClient = (*ModbusInverter)(nil)

func NewModbusInverter(reader growatt_modbus.StorageModbusReader, name string, logger *zap.Logger) *ModbusInverter {
	return &ModbusInverter{reader: reader, name: name, logger: logger}
}

func (m *ModbusInverter) Login(_ context.Context, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.opened {
		return nil
	}
	if err := m.reader.Open(); err != nil {
		return fmt.Errorf("%w: modbus connect: %s", domain.ErrVendorAPI, err)
	}
	m.opened = true
	m.logger.Debug("modbus connection open", zap.String("target", m.name))
	return nil
}

func (m *ModbusInverter) ResolveDevice(_ context.Context, plantID, deviceSN string) (domain.InverterDevice, error) {
	if plantID == "" {
		plantID = LOCAL_PLANT_ID
	}
	if deviceSN == "" {
		deviceSN = m.name
	}
	return domain.InverterDevice{PlantID: plantID, DeviceSN: deviceSN}, nil
}

func (m *ModbusInverter) ReadSOC(_ context.Context, _ domain.InverterDevice) (int, error) {
	soc, err := m.reader.GetStateOfCharge()
	if err != nil {
		return 0, fmt.Errorf("%w: read soc: %s", domain.ErrVendorAPI, err)
	}
	return soc, nil
}

func (m *ModbusInverter) EnergyToday(_ context.Context, _ domain.InverterDevice) (domain.EnergyToday, error) {
	e, err := m.reader.GetEnergyToday()
	if err != nil {
		return domain.EnergyToday{}, fmt.Errorf("%w: read energy counters: %s", domain.ErrVendorAPI, err)
	}
	return domain.EnergyToday{GenerationWh: e.PVEnergyWh, ChargeWh: e.ChargeEnergyWh}, nil
}

func (m *ModbusInverter) WriteSchedule(_ context.Context, _ domain.InverterDevice, s domain.ChargeSchedule) error {
	if err := ValidateSchedule(s); err != nil {
		return err
	}
	err := m.reader.SetACChargeSchedule(growatt_modbus.ACChargeSchedule{
		ChargeRatePercent: uint16(s.ChargeRatePct),
		StopSOCPercent:    uint16(s.TargetSOCPct),
		Enabled:           true,
		Start:             growatt_modbus.SlotTime{Hour: uint8(s.Start.Hour), Minute: uint8(s.Start.Minute)},
		End:               growatt_modbus.SlotTime{Hour: uint8(s.End.Hour), Minute: uint8(s.End.Minute)},
	})
	if err != nil {
		return fmt.Errorf("%w: write schedule: %s", domain.ErrVendorAPI, err)
	}
	return nil
}

func (m *ModbusInverter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.opened {
		return nil
	}
	m.opened = false
	return m.reader.Close()
}
