package service

import (
	"context"
	"errors"
	"time"

	"github.com/berfenger/growattcharger/internal/config"
	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/berfenger/growattcharger/internal/core/port"
	"go.uber.org/zap"
)

// ForecastManager owns the active providers for one process run and
// implements primary-first fallback across them.
type ForecastManager struct {
	providers       []port.ForecastProvider
	primary         port.ForecastProvider
	fallbackEnabled bool
	observer        port.RunObserver
	logger          *zap.Logger
}

// NewForecastManager instantiates the requested providers in order. Providers
// that fail to initialize are dropped; it fails only when none survive.
func NewForecastManager(cfg config.ForecastProvidersConfig, factory port.ForecastProviderFactory,
	observer port.RunObserver, logger *zap.Logger) (*ForecastManager, error) {

	requested := cfg.Providers
	if len(requested) == 0 {
		if cfg.Primary != "" {
			requested = []string{cfg.Primary}
		} else {
			requested = []string{factory.DefaultProvider()}
		}
	}

	m := &ForecastManager{
		fallbackEnabled: cfg.FallbackEnabled,
		observer:        observer,
		logger:          logger,
	}

	seen := map[string]bool{}
	for _, name := range requested {
		if seen[name] {
			continue
		}
		seen[name] = true
		provider, err := factory.Create(name)
		if err != nil {
			logger.Error("failed to initialize forecast provider", zap.String("provider", name), zap.Error(err))
			continue
		}
		m.providers = append(m.providers, provider)
		logger.Info("initialized forecast provider", zap.String("provider", provider.Name()))
	}

	if len(m.providers) == 0 {
		return nil, domain.ErrNoProviders
	}

	for _, p := range m.providers {
		if p.Name() == cfg.Primary {
			m.primary = p
			break
		}
	}
	if m.primary == nil {
		m.primary = m.providers[0]
		logger.Warn("primary forecast provider not available, using fallback primary",
			zap.String("requested", cfg.Primary),
			zap.String("primary", m.primary.Name()))
	}

	return m, nil
}

func (m *ForecastManager) Primary() string {
	return m.primary.Name()
}

// ProviderNames returns the active providers in configured order.
func (m *ForecastManager) ProviderNames() []string {
	names := make([]string, 0, len(m.providers))
	for _, p := range m.providers {
		names = append(names, p.Name())
	}
	return names
}

// chain is the order in which providers are tried. The primary is never
// tried twice.
func (m *ForecastManager) chain(usePrimary bool) []port.ForecastProvider {
	var chain []port.ForecastProvider
	if usePrimary {
		chain = append(chain, m.primary)
		if !m.fallbackEnabled {
			return chain
		}
	}
	for _, p := range m.providers {
		if p == m.primary {
			continue
		}
		chain = append(chain, p)
	}
	return chain
}

// ForecastForDate returns the daily total from the first provider that
// answers, trying the primary first when usePrimary is set.
func (m *ForecastManager) ForecastForDate(ctx context.Context, date time.Time, usePrimary bool) (domain.DailyForecast, error) {
	var errs []error
	for _, p := range m.chain(usePrimary) {
		wh, err := p.ForecastForDate(ctx, date)
		m.observe(p.Name(), err)
		if err == nil {
			m.logger.Info("forecast obtained",
				zap.String("provider", p.Name()),
				zap.String("date", date.Format(domain.DateLayout)),
				zap.Float64("forecast_wh", wh))
			return domain.DailyForecast{Date: domain.DateOf(date), Wh: wh, Provider: p.Name()}, nil
		}
		m.logger.Warn("forecast provider failed", zap.String("provider", p.Name()), zap.Error(err))
		errs = append(errs, tagProviderError(p.Name(), err))
	}
	return domain.DailyForecast{}, &domain.AllProvidersFailedError{Errors: errs}
}

// HourlyForecastForDate follows the same fallback order as ForecastForDate.
func (m *ForecastManager) HourlyForecastForDate(ctx context.Context, date time.Time, usePrimary bool) (domain.HourlyForecast, string, error) {
	var errs []error
	for _, p := range m.chain(usePrimary) {
		hourly, err := p.HourlyForecastForDate(ctx, date)
		m.observe(p.Name(), err)
		if err == nil {
			return hourly, p.Name(), nil
		}
		m.logger.Warn("hourly forecast provider failed", zap.String("provider", p.Name()), zap.Error(err))
		errs = append(errs, tagProviderError(p.Name(), err))
	}
	return nil, "", &domain.AllProvidersFailedError{Errors: errs}
}

// AllForecastsForDate queries every provider independently. It is meant for
// comparison only.
func (m *ForecastManager) AllForecastsForDate(ctx context.Context, date time.Time) []domain.ProviderForecast {
	results := make([]domain.ProviderForecast, 0, len(m.providers))
	for _, p := range m.providers {
		wh, err := p.ForecastForDate(ctx, date)
		m.observe(p.Name(), err)
		if err != nil {
			m.logger.Warn("forecast provider failed", zap.String("provider", p.Name()), zap.Error(err))
			err = tagProviderError(p.Name(), err)
		}
		results = append(results, domain.ProviderForecast{Provider: p.Name(), Wh: wh, Err: err})
	}
	return results
}

// TestAllProviders probes each provider. Results are keyed by name.
func (m *ForecastManager) TestAllProviders(ctx context.Context) map[string]bool {
	results := make(map[string]bool, len(m.providers))
	for _, p := range m.providers {
		ok := ProbeConnection(ctx, p)
		results[p.Name()] = ok
		m.logger.Info("forecast provider connection test", zap.String("provider", p.Name()), zap.Bool("ok", ok))
	}
	return results
}

// ProbeConnection reports whether a provider can currently serve a forecast.
// It never panics or returns an error.
func ProbeConnection(ctx context.Context, p port.ForecastProvider) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	if tester, isTester := p.(port.ConnectionTester); isTester {
		return tester.TestConnection(ctx)
	}
	wh, err := p.ForecastForDate(ctx, time.Now().AddDate(0, 0, 1))
	return err == nil && wh >= 0
}

func (m *ForecastManager) observe(provider string, err error) {
	if m.observer != nil {
		m.observer.ObserveProvider(provider, err)
	}
}

func tagProviderError(provider string, err error) error {
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return domain.NewProviderError(provider, domain.ErrNetwork, err)
}
