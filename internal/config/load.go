package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const ENV_PREFIX = "charger"

// ValidationError is a configuration fault. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config param %s %s", e.Field, e.Reason)
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "warn")
	v.SetDefault("output_dir", "output")
	v.SetDefault("port", 8080)
	v.SetDefault("http_log", false)

	v.SetDefault("growatt.username", "")
	v.SetDefault("growatt.password", "")
	v.SetDefault("growatt.server_url", "https://openapi.growatt.com/")
	v.SetDefault("growatt.plant_id", "")
	v.SetDefault("growatt.device_sn", "")
	v.SetDefault("growatt.transport", TRANSPORT_CLOUD)
	v.SetDefault("growatt.modbus.host", "")
	v.SetDefault("growatt.modbus.port", 502)
	v.SetDefault("growatt.modbus.unit_id", 1)
	v.SetDefault("growatt.modbus.timeout_millis", 2000)

	v.SetDefault("battery.capacity_wh", 10000)
	v.SetDefault("battery.min_charge_pct", 20)
	v.SetDefault("battery.max_charge_pct", 95)
	v.SetDefault("battery.max_charge_rate_w", 3000)
	v.SetDefault("battery.average_load_w", 300)

	v.SetDefault("tariff.off_peak_start", "00:30")
	v.SetDefault("tariff.off_peak_end", "05:30")

	v.SetDefault("forecast.location", "")
	v.SetDefault("forecast.declination", 30)
	v.SetDefault("forecast.azimuth", 0)
	v.SetDefault("forecast.kw_power", 5.8)
	v.SetDefault("forecast.damping", 0.1)
	v.SetDefault("forecast.confidence", 0.8)

	v.SetDefault("forecast_providers.providers", []string{})
	v.SetDefault("forecast_providers.primary", "forecast.solar")
	v.SetDefault("forecast_providers.fallback_enabled", true)
	v.SetDefault("forecast_solar.base_url", "https://api.forecast.solar")
	v.SetDefault("solcast.api_key", "")
	v.SetDefault("solcast.resource_id", "")
	v.SetDefault("solcast.base_url", "https://api.solcast.com.au")
	v.SetDefault("forecast_cache.ttl", time.Hour)
	v.SetDefault("forecast_cache.valkey_addr", "")

	v.SetDefault("charging.efficiency_multiplier", 2.0)
	v.SetDefault("charging.hardware_max_rate_w", 3000)
	v.SetDefault("charging.update_threshold_pct", 5)

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.base_delay", 2*time.Second)
	v.SetDefault("retry.max_delay", 30*time.Second)

	v.SetDefault("mqtt.host", "")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.ha_discovery_enable", false)
	v.SetDefault("mqtt.base_topic", "growattcharger")
	v.SetDefault("mqtt.ha_discovery_topic", "homeassistant")

	v.SetDefault("schedule.nightly_cron", "0 0 22 * * *")
	v.SetDefault("schedule.morning_cron", "0 0 5 * * *")
	v.SetDefault("schedule.timezone", "")
}

// Load builds the configuration from defaults, an optional YAML file and
// CHARGER_* environment variables, then validates it.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// vendor credentials and port keep their conventional names
	_ = v.BindEnv("growatt.username", "CHARGER_GROWATT_USERNAME", "GROWATT_USERNAME")
	_ = v.BindEnv("growatt.password", "CHARGER_GROWATT_PASSWORD", "GROWATT_PASSWORD")
	_ = v.BindEnv("port", "CHARGER_PORT", "PORT")

	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return nil, fmt.Errorf("config file not found: %s", cfgFile)
		}
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.LogLevel = ParseLogLevel(v.GetString("log_level"))

	// check and fix base topic
	baseTopic, err := CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	cfg.Growatt.Transport = strings.ToLower(cfg.Growatt.Transport)
	for i := range cfg.ForecastProviders.Providers {
		cfg.ForecastProviders.Providers[i] = strings.ToLower(strings.TrimSpace(cfg.ForecastProviders.Providers[i]))
	}
	cfg.ForecastProviders.Primary = strings.ToLower(strings.TrimSpace(cfg.ForecastProviders.Primary))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func ParseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zap.DebugLevel
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "error":
		return zap.ErrorLevel
	case "warn":
		return zap.WarnLevel
	case "fatal":
		return zap.FatalLevel
	default:
		return zap.WarnLevel
	}
}

// Validate checks every bound and returns all faults joined.
func (cfg Config) Validate() error {
	var errs []error
	fail := func(field, reason string) {
		errs = append(errs, ValidationError{Field: field, Reason: reason})
	}
	percent := func(field string, value int) {
		if value < 0 || value > 100 {
			fail(field, fmt.Sprintf("must be between 0 and 100, got %d", value))
		}
	}
	between := func(field string, value, min, max float64) {
		if value < min || value > max {
			fail(field, fmt.Sprintf("must be between %v and %v, got %v", min, max, value))
		}
	}
	positive := func(field string, value float64) {
		if value <= 0 {
			fail(field, fmt.Sprintf("must be positive, got %v", value))
		}
	}

	b := cfg.Battery
	percent("battery.min_charge_pct", b.MinChargePct)
	percent("battery.max_charge_pct", b.MaxChargePct)
	if b.MinChargePct > b.MaxChargePct {
		fail("battery.min_charge_pct", fmt.Sprintf("(%d) cannot be greater than battery.max_charge_pct (%d)", b.MinChargePct, b.MaxChargePct))
	}
	positive("battery.capacity_wh", b.CapacityWh)
	positive("battery.max_charge_rate_w", b.MaxChargeRateW)
	positive("battery.average_load_w", b.AverageLoadW)

	if _, err := cfg.TariffWindow(); err != nil {
		fail("tariff", err.Error())
	}

	f := cfg.Forecast
	between("forecast.declination", f.Declination, -90, 90)
	between("forecast.azimuth", f.Azimuth, -180, 360)
	positive("forecast.kw_power", f.KWPower)
	between("forecast.damping", f.Damping, 0, 1)
	between("forecast.confidence", f.Confidence, 0, 1)

	positive("charging.efficiency_multiplier", cfg.Charging.EfficiencyMultiplier)
	positive("charging.hardware_max_rate_w", cfg.Charging.HardwareMaxRateW)
	if cfg.Charging.UpdateThresholdPct < 0 {
		fail("charging.update_threshold_pct", "must be >= 0")
	}

	if cfg.Retry.Attempts < 1 {
		fail("retry.attempts", "must be >= 1")
	}
	if cfg.Retry.BaseDelay <= 0 {
		fail("retry.base_delay", "must be > 0")
	}
	if cfg.Retry.MaxDelay < cfg.Retry.BaseDelay {
		fail("retry.max_delay", "must be >= retry.base_delay")
	}

	switch cfg.Growatt.Transport {
	case TRANSPORT_CLOUD:
	case TRANSPORT_MODBUS:
		if cfg.Growatt.Modbus.Host == "" {
			fail("growatt.modbus.host", "is required when growatt.transport is modbus")
		}
	default:
		fail("growatt.transport", fmt.Sprintf("must be %s or %s, got %q", TRANSPORT_CLOUD, TRANSPORT_MODBUS, cfg.Growatt.Transport))
	}

	if _, err := cfg.Schedule.Location(); err != nil {
		fail("schedule.timezone", err.Error())
	}

	return errors.Join(errs...)
}

// ProviderWarnings lists forecast provider settings that leave a provider
// unusable: names outside known and Solcast without an api_key. They do not
// fail validation since the forecast manager skips such providers and runs
// with the rest.
func (cfg Config) ProviderWarnings(known []string) []string {
	var warnings []string
	fp := cfg.ForecastProviders
	names := fp.Providers
	if len(names) == 0 && fp.Primary != "" {
		names = []string{fp.Primary}
	}
	for _, name := range names {
		if !slices.Contains(known, name) {
			warnings = append(warnings, fmt.Sprintf("forecast_providers.providers: unknown provider %q (known: %s)", name, strings.Join(known, ", ")))
		}
	}
	if len(fp.Providers) > 0 && fp.Primary != "" && !slices.Contains(fp.Providers, fp.Primary) {
		warnings = append(warnings, fmt.Sprintf("forecast_providers.primary: %q is not in forecast_providers.providers", fp.Primary))
	}
	if slices.Contains(names, "solcast") && cfg.Solcast.APIKey == "" {
		warnings = append(warnings, "solcast.api_key: required when the solcast provider is selected")
	}
	return warnings
}

// ValidateVendor checks the fields needed to talk to the inverter.
func (cfg Config) ValidateVendor() error {
	if cfg.Growatt.Transport == TRANSPORT_CLOUD {
		if cfg.Growatt.Username == "" || cfg.Growatt.Password == "" {
			return ValidationError{Field: "growatt.username/password", Reason: "are required for the cloud transport"}
		}
	}
	return nil
}

func (cfg Config) TariffWindow() (domain.TariffWindow, error) {
	return domain.ParseTariffWindow(cfg.Tariff.OffPeakStart, cfg.Tariff.OffPeakEnd)
}

// Redacted returns a copy safe to log.
func (cfg Config) Redacted() Config {
	const redacted = "*redacted*"
	if cfg.Growatt.Password != "" {
		cfg.Growatt.Password = redacted
	}
	if cfg.Solcast.APIKey != "" {
		cfg.Solcast.APIKey = redacted
	}
	cfg.MQTT.Username = redacted
	cfg.MQTT.Password = redacted
	return cfg
}
