package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/berfenger/growattcharger/internal/core/port"
)

// forecast provider

type fakeProvider struct {
	name   string
	wh     float64
	hourly domain.HourlyForecast
	err    error
	calls  int
}

var _ port.ForecastProvider = (*fakeProvider)(nil)

func (p *fakeProvider) Name() string {
	return p.name
}

func (p *fakeProvider) ForecastForDate(_ context.Context, _ time.Time) (float64, error) {
	p.calls++
	if p.err != nil {
		return 0, p.err
	}
	return p.wh, nil
}

func (p *fakeProvider) HourlyForecastForDate(_ context.Context, _ time.Time) (domain.HourlyForecast, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.hourly, nil
}

type panickyProvider struct {
	fakeProvider
}

func (p *panickyProvider) ForecastForDate(_ context.Context, _ time.Time) (float64, error) {
	panic("boom")
}

type fakeFactory struct {
	providers map[string]port.ForecastProvider
	failing   map[string]error
	created   []string
}

func (f *fakeFactory) Create(name string) (port.ForecastProvider, error) {
	f.created = append(f.created, name)
	if err, ok := f.failing[name]; ok {
		return nil, err
	}
	if p, ok := f.providers[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, name)
}

func (f *fakeFactory) DefaultProvider() string {
	return "forecast.solar"
}

func factoryOf(providers ...*fakeProvider) *fakeFactory {
	f := &fakeFactory{providers: map[string]port.ForecastProvider{}, failing: map[string]error{}}
	for _, p := range providers {
		f.providers[p.name] = p
	}
	return f
}

// inverter

type fakeInverter struct {
	mu           sync.Mutex
	loginErr     error
	resolveErr   error
	soc          int
	socErr       error
	socFailures  int
	energy       domain.EnergyToday
	energyErr    error
	writeErr     error
	written      []domain.ChargeSchedule
	loginCalls   int
	resolvedWith [2]string
}

var _ port.InverterClient = (*fakeInverter)(nil)

func (f *fakeInverter) Login(_ context.Context, _, _ string) error {
	f.loginCalls++
	return f.loginErr
}

func (f *fakeInverter) ResolveDevice(_ context.Context, plantID, deviceSN string) (domain.InverterDevice, error) {
	f.resolvedWith = [2]string{plantID, deviceSN}
	if f.resolveErr != nil {
		return domain.InverterDevice{}, f.resolveErr
	}
	if plantID == "" {
		plantID = "plant-1"
	}
	if deviceSN == "" {
		deviceSN = "SN-1"
	}
	return domain.InverterDevice{PlantID: plantID, DeviceSN: deviceSN}, nil
}

func (f *fakeInverter) ReadSOC(_ context.Context, _ domain.InverterDevice) (int, error) {
	if f.socFailures > 0 {
		f.socFailures--
		return 0, fmt.Errorf("%w: bad gateway", domain.ErrVendorAPI)
	}
	return f.soc, f.socErr
}

func (f *fakeInverter) EnergyToday(_ context.Context, _ domain.InverterDevice) (domain.EnergyToday, error) {
	return f.energy, f.energyErr
}

func (f *fakeInverter) WriteSchedule(_ context.Context, _ domain.InverterDevice, s domain.ChargeSchedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, s)
	return nil
}

// data log

type fakeDataLog struct {
	predictions []domain.PredictionRecord
	actuals     []domain.ActualRecord
	comparisons []domain.ProviderComparisonRecord
	morning     []domain.MorningCheckRecord
	summary     []domain.PerformanceRow
	err         error
}

var _ port.DataLog = (*fakeDataLog)(nil)

var errDiskFull = errors.New("disk full")

func (l *fakeDataLog) LogPrediction(rec domain.PredictionRecord) error {
	if l.err != nil {
		return l.err
	}
	l.predictions = append(l.predictions, rec)
	return nil
}

func (l *fakeDataLog) LogActual(rec domain.ActualRecord) error {
	if l.err != nil {
		return l.err
	}
	l.actuals = append(l.actuals, rec)
	return nil
}

func (l *fakeDataLog) LogProviderComparison(rec domain.ProviderComparisonRecord) error {
	if l.err != nil {
		return l.err
	}
	l.comparisons = append(l.comparisons, rec)
	return nil
}

func (l *fakeDataLog) LogMorningCheck(rec domain.MorningCheckRecord) error {
	if l.err != nil {
		return l.err
	}
	l.morning = append(l.morning, rec)
	return nil
}

func (l *fakeDataLog) PredictionFor(date time.Time) (*domain.PredictionRecord, error) {
	if l.err != nil {
		return nil, l.err
	}
	var found *domain.PredictionRecord
	for i := range l.predictions {
		if domain.SameDate(l.predictions[i].PredictionDate, date) {
			found = &l.predictions[i]
		}
	}
	return found, nil
}

func (l *fakeDataLog) Predictions() ([]domain.PredictionRecord, error) {
	return l.predictions, l.err
}

func (l *fakeDataLog) Actuals() ([]domain.ActualRecord, error) {
	return l.actuals, l.err
}

func (l *fakeDataLog) WritePerformanceSummary(rows []domain.PerformanceRow) error {
	if l.err != nil {
		return l.err
	}
	l.summary = rows
	return nil
}

// publisher and observer

type fakePublisher struct {
	published []domain.RunResult
	err       error
}

func (p *fakePublisher) PublishRun(_ context.Context, r domain.RunResult) error {
	p.published = append(p.published, r)
	return p.err
}

type fakeObserver struct {
	runs      int
	runErrs   int
	providers map[string]int
}

func (o *fakeObserver) ObserveRun(_ domain.RunResult, err error) {
	o.runs++
	if err != nil {
		o.runErrs++
	}
}

func (o *fakeObserver) ObserveProvider(provider string, _ error) {
	if o.providers == nil {
		o.providers = map[string]int{}
	}
	o.providers[provider]++
}
