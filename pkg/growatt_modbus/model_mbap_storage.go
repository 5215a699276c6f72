package growatt_modbus

import (
	"fmt"
)

// input registers
const (
	RegPVEnergyToday     uint16 = 53   // 53/54, 0.1 kWh
	RegBatterySOC        uint16 = 1014 // %
	RegChargeEnergyToday uint16 = 1056 // 1056/1057, 0.1 kWh
)

// holding registers
const (
	RegACChargeRate    uint16 = 1090 // % of max charge power
	RegACChargeStopSOC uint16 = 1091 // %
	RegACChargeEnable  uint16 = 1092
	RegACChargeSlot1   uint16 = 1100 // start, end, enable
)

const (
	acChargeSlotLength uint16 = 3
	energyTenthKWhToWh        = 100
)

type StorageModbusReader interface {
	Open() error
	Close() error
	GetStateOfCharge() (int, error)
	GetEnergyToday() (*EnergyToday, error)
	GetACChargeSchedule() (*ACChargeSchedule, error)
	SetACChargeSchedule(schedule ACChargeSchedule) error
}

type EnergyToday struct {
	PVEnergyWh     float64
	ChargeEnergyWh float64
}

// SlotTime is a time of day as stored by the inverter: hour<<8 | minute.
type SlotTime struct {
	Hour   uint8
	Minute uint8
}

func (t SlotTime) Encode() uint16 {
	return uint16(t.Hour)<<8 | uint16(t.Minute)
}

func DecodeSlotTime(v uint16) SlotTime {
	return SlotTime{Hour: uint8(v >> 8), Minute: uint8(v & 0xff)}
}

func (t SlotTime) Validate() error {
	if t.Hour > 23 || t.Minute > 59 {
		return fmt.Errorf("invalid slot time %02d:%02d", t.Hour, t.Minute)
	}
	return nil
}

func (t SlotTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ACChargeSchedule is the grid charge setting with the first time slot.
type ACChargeSchedule struct {
	ChargeRatePercent uint16
	StopSOCPercent    uint16
	Enabled           bool
	Start             SlotTime
	End               SlotTime
}

func (s ACChargeSchedule) Validate() error {
	if s.ChargeRatePercent > 100 {
		return fmt.Errorf("charge rate must be between 0 and 100, got %d", s.ChargeRatePercent)
	}
	if s.StopSOCPercent > 100 {
		return fmt.Errorf("stop soc must be between 0 and 100, got %d", s.StopSOCPercent)
	}
	if err := s.Start.Validate(); err != nil {
		return err
	}
	return s.End.Validate()
}

func boolRegister(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}
