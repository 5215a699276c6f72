package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/berfenger/growattcharger/internal/config"
	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/berfenger/growattcharger/internal/core/port"
	"go.uber.org/zap"
)

const (
	PROVIDER_FORECAST_SOLAR = "forecast.solar"

	forecastSolarTimeout   = 10 * time.Second
	forecastSolarTimestamp = "2006-01-02 15:04:05"
)

// ForecastSolar queries the public Forecast.Solar estimate endpoint. Its
// azimuth convention is 0=South, 90=West, -90=East.
type ForecastSolar struct {
	baseURL     string
	lat, lon    float64
	declination float64
	azimuth     float64
	kwp         float64
	damping     float64
	fetch       *fetcher
}

var _ port.ForecastProvider = (*ForecastSolar)(nil)

type forecastSolarResponse struct {
	Result struct {
		Watts        map[string]float64 `json:"watts"`
		WattHoursDay map[string]float64 `json:"watt_hours_day"`
	} `json:"result"`
}

func NewForecastSolar(cfg config.Config, cache port.ForecastCache, logger *zap.Logger) (*ForecastSolar, error) {
	lat, lon, err := cfg.Forecast.LatLon()
	if err != nil {
		return nil, domain.NewProviderError(PROVIDER_FORECAST_SOLAR, domain.ErrProviderConfig, err)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.ForecastSolar.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.forecast.solar"
	}
	return &ForecastSolar{
		baseURL:     baseURL,
		lat:         lat,
		lon:         lon,
		declination: cfg.Forecast.Declination,
		azimuth:     cfg.Forecast.Azimuth,
		kwp:         cfg.Forecast.KWPower,
		damping:     cfg.Forecast.Damping,
		fetch:       newFetcher(PROVIDER_FORECAST_SOLAR, forecastSolarTimeout, cache, cfg.ForecastCache.TTL, logger),
	}, nil
}

func (p *ForecastSolar) Name() string {
	return PROVIDER_FORECAST_SOLAR
}

func (p *ForecastSolar) endpoint() string {
	endpoint := fmt.Sprintf("%s/estimate/%s/%s/%s/%s/%s", p.baseURL,
		formatFloat(p.lat), formatFloat(p.lon), formatFloat(p.declination), formatFloat(p.azimuth), formatFloat(p.kwp))
	if p.damping != 0 {
		endpoint += "?" + url.Values{"damping": {formatFloat(p.damping)}}.Encode()
	}
	return endpoint
}

func (p *ForecastSolar) estimate(ctx context.Context) (*forecastSolarResponse, error) {
	body, err := p.fetch.get(ctx, p.endpoint(), nil)
	if err != nil {
		return nil, err
	}
	var resp forecastSolarResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewProviderError(PROVIDER_FORECAST_SOLAR, domain.ErrProviderData, err)
	}
	return &resp, nil
}

// ForecastForDate returns the daily total. A date missing from the response
// yields 0 Wh.
func (p *ForecastSolar) ForecastForDate(ctx context.Context, date time.Time) (float64, error) {
	resp, err := p.estimate(ctx)
	if err != nil {
		return 0, err
	}
	return resp.Result.WattHoursDay[date.Format(domain.DateLayout)], nil
}

func (p *ForecastSolar) HourlyForecastForDate(ctx context.Context, date time.Time) (domain.HourlyForecast, error) {
	resp, err := p.estimate(ctx)
	if err != nil {
		return nil, err
	}
	day := date.Format(domain.DateLayout)
	hourly := domain.HourlyForecast{}
	for stamp, w := range resp.Result.Watts {
		ts, err := time.ParseInLocation(forecastSolarTimestamp, stamp, date.Location())
		if err != nil {
			return nil, domain.NewProviderError(PROVIDER_FORECAST_SOLAR, domain.ErrProviderData, err)
		}
		if ts.Format(domain.DateLayout) == day {
			hourly[ts] = w
		}
	}
	return hourly, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
