package domain

// InverterDevice identifies the storage inverter being controlled.
type InverterDevice struct {
	PlantID  string
	DeviceSN string
}

// EnergyToday holds the vendor's daily counters.
type EnergyToday struct {
	GenerationWh float64
	ChargeWh     float64
}

// ChargeSchedule is the AC charge slot written to the inverter.
type ChargeSchedule struct {
	ChargeRatePct int
	TargetSOCPct  int
	Start         ClockTime
	End           ClockTime
}
