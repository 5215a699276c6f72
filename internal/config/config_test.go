package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {

	require := require.New(t)

	cfg, err := Load(viper.New(), "")
	require.NoError(err)

	require.Equal(zap.WarnLevel, cfg.LogLevel)
	require.Equal(20, cfg.Battery.MinChargePct)
	require.Equal(95, cfg.Battery.MaxChargePct)
	require.Equal(2.0, cfg.Charging.EfficiencyMultiplier)
	require.Equal(3, cfg.Retry.Attempts)
	require.Equal(2*time.Second, cfg.Retry.BaseDelay)
	require.Equal(30*time.Second, cfg.Retry.MaxDelay)
	require.Equal(TRANSPORT_CLOUD, cfg.Growatt.Transport)
	require.Equal("forecast.solar", cfg.ForecastProviders.Primary)
	require.Empty(cfg.ForecastProviders.Providers)
}

func TestLoadEnvOverrides(t *testing.T) {

	require := require.New(t)

	t.Setenv("CHARGER_BATTERY_CAPACITY_WH", "12500")
	t.Setenv("CHARGER_FORECAST_PROVIDERS_PROVIDERS", "Solcast,forecast.solar")
	t.Setenv("CHARGER_FORECAST_PROVIDERS_PRIMARY", "SOLCAST")
	t.Setenv("GROWATT_USERNAME", "alice")
	t.Setenv("GROWATT_PASSWORD", "secret")
	t.Setenv("CHARGER_LOG_LEVEL", "debug")

	cfg, err := Load(viper.New(), "")
	require.NoError(err)

	require.Equal(12500.0, cfg.Battery.CapacityWh)
	require.Equal([]string{"solcast", "forecast.solar"}, cfg.ForecastProviders.Providers)
	require.Equal("solcast", cfg.ForecastProviders.Primary)
	require.Equal("alice", cfg.Growatt.Username)
	require.Equal("secret", cfg.Growatt.Password)
	require.Equal(zap.DebugLevel, cfg.LogLevel)
	require.NoError(cfg.ValidateVendor())
}

func TestLoadFile(t *testing.T) {

	require := require.New(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
battery:
  capacity_wh: 9000
  min_charge_pct: 15
tariff:
  off_peak_start: "01:00"
  off_peak_end: "04:30"
forecast:
  location: "51.5,-0.12"
solcast:
  resource_id: "aaa, bbb"
`
	require.NoError(os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(viper.New(), path)
	require.NoError(err)

	require.Equal(9000.0, cfg.Battery.CapacityWh)
	require.Equal(15, cfg.Battery.MinChargePct)
	require.Equal([]string{"aaa", "bbb"}, cfg.Solcast.ResourceIDs())

	window, err := cfg.TariffWindow()
	require.NoError(err)
	require.InDelta(3.5, window.Hours(), 1e-9)

	lat, lon, err := cfg.Forecast.LatLon()
	require.NoError(err)
	require.Equal(51.5, lat)
	require.Equal(-0.12, lon)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateBounds(t *testing.T) {

	require := require.New(t)

	cfg, err := Load(viper.New(), "")
	require.NoError(err)

	bad := *cfg
	bad.Battery.MinChargePct = 80
	bad.Battery.MaxChargePct = 60
	bad.Battery.CapacityWh = 0
	bad.Tariff.OffPeakStart = "05:00"
	bad.Tariff.OffPeakEnd = "01:00"
	bad.Forecast.Confidence = 1.5
	bad.Forecast.Declination = 95
	bad.Retry.Attempts = 0

	err = bad.Validate()
	require.Error(err)

	var verr ValidationError
	require.True(errors.As(err, &verr))

	msg := err.Error()
	for _, field := range []string{"battery.min_charge_pct", "battery.capacity_wh", "tariff",
		"forecast.confidence", "forecast.declination", "retry.attempts"} {
		require.Contains(msg, field)
	}
}

func TestValidateTariffFormat(t *testing.T) {

	require := require.New(t)

	cfg, err := Load(viper.New(), "")
	require.NoError(err)

	cfg.Tariff.OffPeakStart = "24:00"
	require.Error(cfg.Validate())

	cfg.Tariff.OffPeakStart = "0:30"
	require.NoError(cfg.Validate())
}

func TestValidateModbusTransport(t *testing.T) {

	require := require.New(t)

	cfg, err := Load(viper.New(), "")
	require.NoError(err)

	cfg.Growatt.Transport = TRANSPORT_MODBUS
	require.ErrorContains(cfg.Validate(), "growatt.modbus.host")

	cfg.Growatt.Modbus.Host = "192.168.1.20"
	require.NoError(cfg.Validate())
	require.NoError(cfg.ValidateVendor())

	cfg.Growatt.Transport = "serial"
	require.Error(cfg.Validate())
}

func TestValidateVendorRequiresCredentials(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Error(t, cfg.ValidateVendor())
}

func TestLatLonInvalid(t *testing.T) {

	assert := assert.New(t)

	for _, loc := range []string{"", "London", "91,0", "abc,1"} {
		_, _, err := ForecastConfig{Location: loc}.LatLon()
		assert.Error(err, loc)
	}
}

func TestRedacted(t *testing.T) {

	assert := assert.New(t)

	cfg := Config{
		Growatt: GrowattConfig{Username: "alice", Password: "secret"},
		Solcast: SolcastConfig{APIKey: "key"},
	}
	r := cfg.Redacted()
	assert.Equal("alice", r.Growatt.Username)
	assert.NotEqual("secret", r.Growatt.Password)
	assert.NotEqual("key", r.Solcast.APIKey)
	assert.Equal("secret", cfg.Growatt.Password)
}

func TestCheckMQTTTopic(t *testing.T) {

	assert := assert.New(t)

	topic, err := CheckMQTTTopic("Growatt_Charger")
	assert.NoError(err)
	assert.Equal("growatt_charger", topic)

	_, err = CheckMQTTTopic("bad/topic")
	assert.Error(err)
}

func TestProviderWarnings(t *testing.T) {

	require := require.New(t)
	known := []string{"forecast.solar", "solcast"}

	cfg, err := Load(viper.New(), "")
	require.NoError(err)
	require.Empty(cfg.ProviderWarnings(known))

	cfg.ForecastProviders = ForecastProvidersConfig{Providers: []string{"forecast.solar", "pvgis", "solcast"}, Primary: "meteo"}
	cfg.Solcast.APIKey = ""
	require.NoError(cfg.Validate())

	warnings := cfg.ProviderWarnings(known)
	require.Len(warnings, 3)
	require.Contains(warnings[0], `unknown provider "pvgis"`)
	require.Contains(warnings[1], `forecast_providers.primary: "meteo"`)
	require.Contains(warnings[2], "solcast.api_key")

	cfg.Solcast.APIKey = "key"
	cfg.ForecastProviders = ForecastProvidersConfig{Primary: "solcast"}
	require.Empty(cfg.ProviderWarnings(known))
}
