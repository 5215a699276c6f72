package config

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

const (
	TRANSPORT_CLOUD  = "cloud"
	TRANSPORT_MODBUS = "modbus"
)

type Config struct {
	LogLevel          zapcore.Level
	Growatt           GrowattConfig           `mapstructure:"growatt"`
	Battery           BatteryConfig           `mapstructure:"battery"`
	Tariff            TariffConfig            `mapstructure:"tariff"`
	Forecast          ForecastConfig          `mapstructure:"forecast"`
	ForecastProviders ForecastProvidersConfig `mapstructure:"forecast_providers"`
	ForecastSolar     ForecastSolarConfig     `mapstructure:"forecast_solar"`
	Solcast           SolcastConfig           `mapstructure:"solcast"`
	ForecastCache     ForecastCacheConfig     `mapstructure:"forecast_cache"`
	Charging          ChargingConfig          `mapstructure:"charging"`
	Retry             RetryConfig             `mapstructure:"retry"`
	MQTT              MQTTConfig              `mapstructure:"mqtt"`
	Schedule          ScheduleConfig          `mapstructure:"schedule"`
	OutputDir         string                  `mapstructure:"output_dir"`
	Port              uint                    `mapstructure:"port"`
	HttpLog           bool                    `mapstructure:"http_log"`
}

type GrowattConfig struct {
	Username  string
	Password  string
	ServerURL string              `mapstructure:"server_url"`
	PlantID   string              `mapstructure:"plant_id"`
	DeviceSN  string              `mapstructure:"device_sn"`
	Transport string              `mapstructure:"transport"`
	Modbus    GrowattModbusConfig `mapstructure:"modbus"`
}

type GrowattModbusConfig struct {
	Host          string
	Port          uint
	UnitId        uint `mapstructure:"unit_id"`
	TimeoutMillis uint `mapstructure:"timeout_millis"`
}

type BatteryConfig struct {
	CapacityWh     float64 `mapstructure:"capacity_wh"`
	MinChargePct   int     `mapstructure:"min_charge_pct"`
	MaxChargePct   int     `mapstructure:"max_charge_pct"`
	MaxChargeRateW float64 `mapstructure:"max_charge_rate_w"`
	AverageLoadW   float64 `mapstructure:"average_load_w"`
}

// DailyConsumptionWh assumes a flat average load over 24 hours.
func (b BatteryConfig) DailyConsumptionWh() float64 {
	return b.AverageLoadW * 24
}

type TariffConfig struct {
	OffPeakStart string `mapstructure:"off_peak_start"`
	OffPeakEnd   string `mapstructure:"off_peak_end"`
}

type ForecastConfig struct {
	Location    string
	Declination float64
	Azimuth     float64
	KWPower     float64 `mapstructure:"kw_power"`
	Damping     float64
	Confidence  float64
}

// LatLon parses Location as "latitude,longitude".
func (f ForecastConfig) LatLon() (float64, float64, error) {
	latStr, lonStr, ok := strings.Cut(f.Location, ",")
	if !ok {
		return 0, 0, fmt.Errorf("location must be in 'latitude,longitude' format, got %q", f.Location)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude %q: %w", latStr, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude %q: %w", lonStr, err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("location out of range: %q", f.Location)
	}
	return lat, lon, nil
}

type ForecastProvidersConfig struct {
	Providers       []string
	Primary         string
	FallbackEnabled bool `mapstructure:"fallback_enabled"`
}

type ForecastSolarConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type SolcastConfig struct {
	APIKey     string `mapstructure:"api_key"`
	ResourceID string `mapstructure:"resource_id"`
	BaseURL    string `mapstructure:"base_url"`
}

// ResourceIDs splits the comma separated site list.
func (s SolcastConfig) ResourceIDs() []string {
	var ids []string
	for _, id := range strings.Split(s.ResourceID, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

type ForecastCacheConfig struct {
	TTL        time.Duration `mapstructure:"ttl"`
	ValkeyAddr string        `mapstructure:"valkey_addr"`
}

type ChargingConfig struct {
	EfficiencyMultiplier float64 `mapstructure:"efficiency_multiplier"`
	HardwareMaxRateW     float64 `mapstructure:"hardware_max_rate_w"`
	UpdateThresholdPct   float64 `mapstructure:"update_threshold_pct"`
}

type RetryConfig struct {
	Attempts  int
	BaseDelay time.Duration `mapstructure:"base_delay"`
	MaxDelay  time.Duration `mapstructure:"max_delay"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func (m MQTTConfig) Enabled() bool {
	return m.Host != ""
}

type ScheduleConfig struct {
	NightlyCron string `mapstructure:"nightly_cron"`
	MorningCron string `mapstructure:"morning_cron"`
	Timezone    string
}

func (s ScheduleConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
