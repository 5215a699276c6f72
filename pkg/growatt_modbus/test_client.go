package growatt_modbus

import (
	"fmt"
	"sync"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// CreateTestStorageModbusReader returns a reader backed by in-memory
// registers, seeded with a half charged battery.
func CreateTestStorageModbusReader() (StorageModbusReader, *MemoryRegisters) {
	regs := NewMemoryRegisters()
	regs.Input[RegBatterySOC] = 50
	regs.Input[RegPVEnergyToday+1] = 123 // 12.3 kWh
	regs.Input[RegChargeEnergyToday+1] = 20
	return newStorageModbusClient(regs, zap.NewNop(), nil), regs
}

type MemoryRegisters struct {
	mu      sync.Mutex
	Input   map[uint16]uint16
	Holding map[uint16]uint16
	Opened  bool
	Writes  int
	Err     error
}

var _ registerClient = (*MemoryRegisters)(nil)

func NewMemoryRegisters() *MemoryRegisters {
	return &MemoryRegisters{Input: map[uint16]uint16{}, Holding: map[uint16]uint16{}}
}

func (m *MemoryRegisters) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Opened = true
	return nil
}

func (m *MemoryRegisters) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Opened = false
	return nil
}

func (m *MemoryRegisters) bank(regType modbus.RegType) map[uint16]uint16 {
	if regType == modbus.INPUT_REGISTER {
		return m.Input
	}
	return m.Holding
}

func (m *MemoryRegisters) ReadRegister(addr uint16, regType modbus.RegType) (uint16, error) {
	regs, err := m.ReadRegisters(addr, 1, regType)
	if err != nil {
		return 0, err
	}
	return regs[0], nil
}

func (m *MemoryRegisters) ReadRegisters(addr uint16, quantity uint16, regType modbus.RegType) ([]uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if !m.Opened {
		return nil, fmt.Errorf("connection not open")
	}
	bank := m.bank(regType)
	out := make([]uint16, quantity)
	for i := range out {
		out[i] = bank[addr+uint16(i)]
	}
	return out, nil
}

func (m *MemoryRegisters) WriteRegister(addr uint16, value uint16) error {
	return m.WriteRegisters(addr, []uint16{value})
}

func (m *MemoryRegisters) WriteRegisters(addr uint16, values []uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if !m.Opened {
		return fmt.Errorf("connection not open")
	}
	for i, v := range values {
		m.Holding[addr+uint16(i)] = v
	}
	m.Writes++
	return nil
}
