package forecast

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/berfenger/growattcharger/internal/config"
	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/berfenger/growattcharger/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const siteA = `{"forecasts": [
  {"period_end": "2025-06-02T23:30:00.0000000Z", "pv_estimate": 0.5, "period": "PT30M"},
  {"period_end": "2025-06-03T10:00:00.0000000Z", "pv_estimate": 2.0, "period": "PT30M"},
  {"period_end": "2025-06-03T10:30:00.0000000Z", "pv_estimate": 4.0, "period": "PT30M"},
  {"period_end": "2025-06-04T00:00:00.0000000Z", "pv_estimate": 1.0, "period": "PT30M"}
]}`

const siteB = `{"forecasts": [
  {"period_end": "2025-06-03T10:00:00.0000000Z", "pv_estimate": 1.0, "period": "PT30M"},
  {"period_end": "2025-06-03T11:00:00.0000000Z", "pv_estimate": 3.0, "period": "PT30M"}
]}`

func newTestSolcast(t *testing.T, baseURL, resourceID string) *Solcast {
	cfg := util.LoadTestConfig()
	cfg.Solcast = config.SolcastConfig{APIKey: "secret", ResourceID: resourceID, BaseURL: baseURL}
	p, err := NewSolcast(cfg, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	return p
}

func solcastServer(t *testing.T, sites map[string]string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		for id, body := range sites {
			if r.URL.Path == "/rooftop_sites/"+id+"/forecasts" {
				fmt.Fprint(w, body)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSolcastDailySingleSite(t *testing.T) {

	require := require.New(t)

	srv := solcastServer(t, map[string]string{"a": siteA})
	p := newTestSolcast(t, srv.URL, "a")

	wh, err := p.ForecastForDate(context.Background(), tomorrow)
	require.NoError(err)
	require.InDelta(3000.0, wh, 1e-9)
}

func TestSolcastHourlyAveragesHalfHours(t *testing.T) {

	require := require.New(t)

	srv := solcastServer(t, map[string]string{"a": siteA})
	p := newTestSolcast(t, srv.URL, "a")

	hourly, err := p.HourlyForecastForDate(context.Background(), tomorrow)
	require.NoError(err)
	require.Len(hourly, 1)
	require.InDelta(3000.0, hourly[tomorrow.Add(10*time.Hour)], 1e-9)
}

func TestSolcastSumsSites(t *testing.T) {

	require := require.New(t)

	srv := solcastServer(t, map[string]string{"a": siteA, "b": siteB})
	p := newTestSolcast(t, srv.URL, "a, b")

	wh, err := p.ForecastForDate(context.Background(), tomorrow)
	require.NoError(err)
	// (2+1 + 4 + 3) kW over half hours
	require.InDelta(5000.0, wh, 1e-9)
}

func TestSolcastStatusMapping(t *testing.T) {

	cases := []struct {
		status int
		kind   error
	}{
		{http.StatusTooManyRequests, domain.ErrRateLimit},
		{http.StatusUnauthorized, domain.ErrAuthentication},
		{http.StatusInternalServerError, domain.ErrNetwork},
		{http.StatusForbidden, domain.ErrNetwork},
	}
	for _, c := range cases {
		t.Run(http.StatusText(c.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(c.status)
			}))
			defer srv.Close()

			p := newTestSolcast(t, srv.URL, "a")
			_, err := p.ForecastForDate(context.Background(), tomorrow)
			require.ErrorIs(t, err, c.kind)
			assert.Equal(t, PROVIDER_SOLCAST, domain.ProviderOf(err))
		})
	}
}

func TestSolcastTimeout(t *testing.T) {

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	p := newTestSolcast(t, srv.URL, "a")
	p.fetch.httpClient.Timeout = 20 * time.Millisecond
	_, err := p.ForecastForDate(context.Background(), tomorrow)
	require.ErrorIs(t, err, domain.ErrNetwork)
	assert.Contains(t, err.Error(), "request timeout")
}

func TestSolcastWorldEndpoint(t *testing.T) {

	require := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal("/world_pv_power/forecasts", r.URL.Path)
		q := r.URL.Query()
		require.Equal("51.5", q.Get("latitude"))
		require.Equal("-0.12", q.Get("longitude"))
		require.Equal("5.8", q.Get("capacity"))
		require.Equal("30", q.Get("tilt"))
		require.Equal("180", q.Get("azimuth"))
		require.Equal("json", q.Get("format"))
		fmt.Fprint(w, siteB)
	}))
	defer srv.Close()

	p := newTestSolcast(t, srv.URL, "")
	wh, err := p.ForecastForDate(context.Background(), tomorrow)
	require.NoError(err)
	require.InDelta(2000.0, wh, 1e-9)
}

func TestSolcastRequiresAPIKey(t *testing.T) {

	cfg := util.LoadTestConfig()
	_, err := NewSolcast(cfg, nil, zaptest.NewLogger(t))
	require.ErrorIs(t, err, domain.ErrProviderConfig)

	cfg.Solcast.APIKey = "k"
	cfg.Forecast.Location = ""
	_, err = NewSolcast(cfg, nil, zaptest.NewLogger(t))
	require.ErrorIs(t, err, domain.ErrProviderConfig, "no site and no location")

	cfg.Solcast.ResourceID = "a"
	_, err = NewSolcast(cfg, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
}

func TestSolcastAzimuth(t *testing.T) {

	assert := assert.New(t)

	assert.Equal(180.0, SolcastAzimuth(0))
	assert.Equal(-90.0, SolcastAzimuth(90))
	assert.Equal(90.0, SolcastAzimuth(-90))
	assert.Equal(0.0, SolcastAzimuth(-180))
	assert.Equal(-150.0, SolcastAzimuth(30))
	assert.Equal(180.0, SolcastAzimuth(360))
}
