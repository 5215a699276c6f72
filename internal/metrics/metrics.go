package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/berfenger/growattcharger/pkg/growatt_modbus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "growattcharger"

const (
	OUTCOME_UPDATED = "updated"
	OUTCOME_SKIPPED = "skipped"
	OUTCOME_FAILED  = "failed"

	RESULT_OK         = "ok"
	RESULT_NETWORK    = "network"
	RESULT_AUTH       = "auth"
	RESULT_RATE_LIMIT = "rate_limit"
	RESULT_CONFIG     = "config"
	RESULT_DATA       = "data"
)

// Metrics holds every collector exported by the charger. Collectors are
// registered on a private registry so several instances can coexist.
type Metrics struct {
	registry *prometheus.Registry

	Runs             *prometheus.CounterVec
	DegradedRuns     prometheus.Counter
	RunDuration      prometheus.Histogram
	LastRunTimestamp prometheus.Gauge
	CurrentSOC       prometheus.Gauge
	TargetSOC        prometheus.Gauge
	ChargeRate       prometheus.Gauge
	WrittenRate      prometheus.Gauge
	ForecastWh       prometheus.Gauge
	SolarCoverage    prometheus.Gauge
	ProviderRequests *prometheus.CounterVec
	ModbusCalls      *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Charge cycles by outcome",
		}, []string{"outcome"}),
		DegradedRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_runs_total",
			Help:      "Charge cycles planned without a forecast",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Charge cycle duration",
			Buckets:   prometheus.DefBuckets,
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last finished charge cycle",
		}),
		CurrentSOC: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_soc_percent",
			Help:      "Battery state of charge read during the last cycle",
		}),
		TargetSOC: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_soc_percent",
			Help:      "Planned target state of charge",
		}),
		ChargeRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "charge_rate_percent",
			Help:      "Planned charge rate",
		}),
		WrittenRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "written_charge_rate_percent",
			Help:      "Charge rate written to the inverter",
		}),
		ForecastWh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_wh",
			Help:      "Solar forecast used by the last plan",
		}),
		SolarCoverage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "solar_coverage_percent",
			Help:      "Forecast over daily consumption",
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_provider_requests_total",
			Help:      "Forecast provider calls by result",
		}, []string{"provider", "result"}),
		ModbusCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "modbus_call_duration_seconds",
			Help:      "Modbus register access latency",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"fn"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Runs,
		m.DegradedRuns,
		m.RunDuration,
		m.LastRunTimestamp,
		m.CurrentSOC,
		m.TargetSOC,
		m.ChargeRate,
		m.WrittenRate,
		m.ForecastWh,
		m.SolarCoverage,
		m.ProviderRequests,
		m.ModbusCalls,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun records a finished charge cycle. Plan gauges are only touched
// when a plan was computed.
func (m *Metrics) ObserveRun(result domain.RunResult, err error) {
	if !result.StartedAt.IsZero() && !result.FinishedAt.IsZero() {
		m.RunDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
	}
	if err != nil {
		m.Runs.WithLabelValues(OUTCOME_FAILED).Inc()
		return
	}

	if result.Updated {
		m.Runs.WithLabelValues(OUTCOME_UPDATED).Inc()
		m.WrittenRate.Set(float64(result.WrittenRatePct))
	} else {
		m.Runs.WithLabelValues(OUTCOME_SKIPPED).Inc()
	}
	if result.Degraded {
		m.DegradedRuns.Inc()
	}
	finished := result.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	m.LastRunTimestamp.Set(float64(finished.Unix()))
	m.CurrentSOC.Set(float64(result.CurrentSOC))
	m.TargetSOC.Set(float64(result.Plan.TargetSOC))
	m.ChargeRate.Set(float64(result.Plan.ChargeRatePct))
	m.ForecastWh.Set(result.Plan.ForecastWh)
	m.SolarCoverage.Set(result.Plan.SolarCoveragePct)
}

func (m *Metrics) ObserveProvider(provider string, err error) {
	m.ProviderRequests.WithLabelValues(provider, providerResult(err)).Inc()
}

func providerResult(err error) string {
	switch {
	case err == nil:
		return RESULT_OK
	case errors.Is(err, domain.ErrRateLimit):
		return RESULT_RATE_LIMIT
	case errors.Is(err, domain.ErrAuthentication):
		return RESULT_AUTH
	case errors.Is(err, domain.ErrProviderConfig):
		return RESULT_CONFIG
	case errors.Is(err, domain.ErrProviderData):
		return RESULT_DATA
	default:
		return RESULT_NETWORK
	}
}

// ModbusInstrument feeds register access timings into ModbusCalls.
func (m *Metrics) ModbusInstrument() *growatt_modbus.ModbusInstrument {
	return &growatt_modbus.ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			m.ModbusCalls.WithLabelValues(fnName).Observe(readTime.Seconds())
		},
	}
}
