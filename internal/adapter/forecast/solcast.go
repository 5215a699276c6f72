package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/berfenger/growattcharger/internal/config"
	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/berfenger/growattcharger/internal/core/port"
	"go.uber.org/zap"
)

const (
	PROVIDER_SOLCAST = "solcast"

	solcastTimeout = 30 * time.Second
	// pv_estimate values cover 30 minute periods
	solcastPeriodHours = 0.5
)

// Solcast reads rooftop site forecasts, summing several sites when more than
// one resource id is configured. Without a resource id it falls back to the
// world_pv_power endpoint, which needs a paid plan.
type Solcast struct {
	baseURL     string
	apiKey      string
	resourceIDs []string
	lat, lon    float64
	capacityKW  float64
	tilt        float64
	azimuth     float64
	fetch       *fetcher
}

var _ port.ForecastProvider = (*Solcast)(nil)

type solcastPeriod struct {
	PeriodEnd  string  `json:"period_end"`
	PVEstimate float64 `json:"pv_estimate"`
	Period     string  `json:"period"`
}

type solcastResponse struct {
	Forecasts []solcastPeriod `json:"forecasts"`
}

func NewSolcast(cfg config.Config, cache port.ForecastCache, logger *zap.Logger) (*Solcast, error) {
	if strings.TrimSpace(cfg.Solcast.APIKey) == "" {
		return nil, domain.NewProviderError(PROVIDER_SOLCAST, domain.ErrProviderConfig, fmt.Errorf("api key not configured"))
	}
	p := &Solcast{
		apiKey:      cfg.Solcast.APIKey,
		resourceIDs: cfg.Solcast.ResourceIDs(),
		capacityKW:  cfg.Forecast.KWPower,
		tilt:        cfg.Forecast.Declination,
		azimuth:     SolcastAzimuth(cfg.Forecast.Azimuth),
	}
	if len(p.resourceIDs) == 0 {
		lat, lon, err := cfg.Forecast.LatLon()
		if err != nil {
			return nil, domain.NewProviderError(PROVIDER_SOLCAST, domain.ErrProviderConfig,
				fmt.Errorf("either resource_id or location must be configured: %w", err))
		}
		p.lat, p.lon = lat, lon
	}
	p.baseURL = strings.TrimRight(strings.TrimSpace(cfg.Solcast.BaseURL), "/")
	if p.baseURL == "" {
		p.baseURL = "https://api.solcast.com.au"
	}
	p.fetch = newFetcher(PROVIDER_SOLCAST, solcastTimeout, cache, cfg.ForecastCache.TTL, logger)
	p.fetch.statusErr = solcastStatusError
	return p, nil
}

func solcastStatusError(status int) error {
	switch status {
	case http.StatusTooManyRequests:
		return domain.ErrRateLimit
	case http.StatusUnauthorized:
		return domain.ErrAuthentication
	default:
		return domain.ErrNetwork
	}
}

func (p *Solcast) Name() string {
	return PROVIDER_SOLCAST
}

func (p *Solcast) request(ctx context.Context, path string, params url.Values) ([]solcastPeriod, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+p.apiKey)
	body, err := p.fetch.get(ctx, fmt.Sprintf("%s/%s?%s", p.baseURL, path, params.Encode()), header)
	if err != nil {
		return nil, err
	}
	var resp solcastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewProviderError(PROVIDER_SOLCAST, domain.ErrProviderData, err)
	}
	return resp.Forecasts, nil
}

// forecasts returns the periods of every configured site, summed by
// period_end and sorted.
func (p *Solcast) forecasts(ctx context.Context) ([]solcastPeriod, error) {
	if len(p.resourceIDs) == 0 {
		return p.request(ctx, "world_pv_power/forecasts", url.Values{
			"latitude":  {formatFloat(p.lat)},
			"longitude": {formatFloat(p.lon)},
			"capacity":  {formatFloat(p.capacityKW)},
			"tilt":      {formatFloat(p.tilt)},
			"azimuth":   {formatFloat(p.azimuth)},
			"format":    {"json"},
		})
	}

	if len(p.resourceIDs) == 1 {
		return p.request(ctx, "rooftop_sites/"+url.PathEscape(p.resourceIDs[0])+"/forecasts", url.Values{"format": {"json"}})
	}

	combined := map[string]solcastPeriod{}
	for _, id := range p.resourceIDs {
		periods, err := p.request(ctx, "rooftop_sites/"+url.PathEscape(id)+"/forecasts", url.Values{"format": {"json"}})
		if err != nil {
			return nil, err
		}
		for _, e := range periods {
			if c, ok := combined[e.PeriodEnd]; ok {
				c.PVEstimate += e.PVEstimate
				combined[e.PeriodEnd] = c
				continue
			}
			if e.Period == "" {
				e.Period = "PT30M"
			}
			combined[e.PeriodEnd] = e
		}
	}
	out := make([]solcastPeriod, 0, len(combined))
	for _, e := range combined {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b solcastPeriod) int {
		return strings.Compare(a.PeriodEnd, b.PeriodEnd)
	})
	return out, nil
}

// periodsOn yields the periods whose end, in UTC, falls on the date.
func periodsOn(periods []solcastPeriod, date time.Time) ([]time.Time, []float64, error) {
	day := date.Format(domain.DateLayout)
	var (
		ends []time.Time
		kw   []float64
	)
	for _, e := range periods {
		end, err := time.Parse(time.RFC3339Nano, e.PeriodEnd)
		if err != nil {
			return nil, nil, domain.NewProviderError(PROVIDER_SOLCAST, domain.ErrProviderData, err)
		}
		end = end.UTC()
		if end.Format(domain.DateLayout) != day {
			continue
		}
		ends = append(ends, end)
		kw = append(kw, e.PVEstimate)
	}
	return ends, kw, nil
}

func (p *Solcast) ForecastForDate(ctx context.Context, date time.Time) (float64, error) {
	periods, err := p.forecasts(ctx)
	if err != nil {
		return 0, err
	}
	_, kw, err := periodsOn(periods, date)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, v := range kw {
		total += v * solcastPeriodHours * 1000
	}
	return total, nil
}

// HourlyForecastForDate folds the half-hour periods into hours keyed by the
// hour of period_end. Each new period is averaged with the running value.
func (p *Solcast) HourlyForecastForDate(ctx context.Context, date time.Time) (domain.HourlyForecast, error) {
	periods, err := p.forecasts(ctx)
	if err != nil {
		return nil, err
	}
	ends, kw, err := periodsOn(periods, date)
	if err != nil {
		return nil, err
	}
	hourly := domain.HourlyForecast{}
	for i, end := range ends {
		hour := end.Truncate(time.Hour)
		w := kw[i] * 1000
		if prev, ok := hourly[hour]; ok {
			hourly[hour] = (prev + w) / 2
		} else {
			hourly[hour] = w
		}
	}
	return hourly, nil
}
