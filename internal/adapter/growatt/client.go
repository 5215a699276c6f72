package growatt

import (
	"fmt"
	"time"

	"github.com/berfenger/growattcharger/internal/config"
	"github.com/berfenger/growattcharger/internal/core/port"
	"github.com/berfenger/growattcharger/pkg/growatt_modbus"
	"go.uber.org/zap"
)

// NewInverterClient builds the client for the configured transport.
// instrument may be nil.
func NewInverterClient(cfg config.GrowattConfig, logger *zap.Logger, instrument *growatt_modbus.ModbusInstrument) (port.InverterClient, error) {
	switch cfg.Transport {
	case config.TRANSPORT_MODBUS:
		mb := cfg.Modbus
		reader, err := growatt_modbus.CreateStorageModbusClient(mb.Host, mb.Port, uint8(mb.UnitId),
			time.Duration(mb.TimeoutMillis)*time.Millisecond, logger, instrument)
		if err != nil {
			return nil, err
		}
		return NewModbusInverter(reader, fmt.Sprintf("%s:%d", mb.Host, mb.Port), logger), nil
	case config.TRANSPORT_CLOUD, "":
		return NewCloudClient(cfg.ServerURL, logger)
	default:
		return nil, fmt.Errorf("unknown growatt transport %q", cfg.Transport)
	}
}
