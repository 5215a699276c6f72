package util

import (
	"time"

	"github.com/berfenger/growattcharger/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Growatt: config.GrowattConfig{
			Username:  "user",
			Password:  "pass",
			Transport: config.TRANSPORT_CLOUD,
		},
		Battery: config.BatteryConfig{
			CapacityWh:     10000,
			MinChargePct:   20,
			MaxChargePct:   95,
			MaxChargeRateW: 3000,
			AverageLoadW:   300,
		},
		Tariff: config.TariffConfig{
			OffPeakStart: "00:30",
			OffPeakEnd:   "05:30",
		},
		Forecast: config.ForecastConfig{
			Location:    "51.5,-0.12",
			Declination: 30,
			Azimuth:     0,
			KWPower:     5.8,
			Damping:     0.1,
			Confidence:  0.8,
		},
		ForecastProviders: config.ForecastProvidersConfig{
			Providers:       []string{"forecast.solar"},
			Primary:         "forecast.solar",
			FallbackEnabled: true,
		},
		ForecastCache: config.ForecastCacheConfig{
			TTL: time.Hour,
		},
		Charging: config.ChargingConfig{
			EfficiencyMultiplier: 2.0,
			HardwareMaxRateW:     3000,
			UpdateThresholdPct:   5,
		},
		Retry: config.RetryConfig{
			Attempts:  3,
			BaseDelay: time.Millisecond,
			MaxDelay:  5 * time.Millisecond,
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "growattcharger",
		},
		Schedule: config.ScheduleConfig{
			NightlyCron: "0 0 22 * * *",
			MorningCron: "0 0 5 * * *",
		},
		Port: 8080,
	}
}
