package forecast

import (
	"fmt"
	"slices"
	"strings"

	"github.com/berfenger/growattcharger/internal/config"
	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/berfenger/growattcharger/internal/core/port"
	"go.uber.org/zap"
)

// ProviderInfo describes a registered provider.
type ProviderInfo struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	RequiresAPIKey bool   `json:"requires_api_key"`
}

type providerEntry struct {
	info ProviderInfo
	new  func(cfg config.Config, cache port.ForecastCache, logger *zap.Logger) (port.ForecastProvider, error)
}

var providers = map[string]providerEntry{
	PROVIDER_FORECAST_SOLAR: {
		info: ProviderInfo{Name: PROVIDER_FORECAST_SOLAR, Version: "1.0.0"},
		new: func(cfg config.Config, cache port.ForecastCache, logger *zap.Logger) (port.ForecastProvider, error) {
			return NewForecastSolar(cfg, cache, logger)
		},
	},
	PROVIDER_SOLCAST: {
		info: ProviderInfo{Name: PROVIDER_SOLCAST, Version: "1.0.0", RequiresAPIKey: true},
		new: func(cfg config.Config, cache port.ForecastCache, logger *zap.Logger) (port.ForecastProvider, error) {
			return NewSolcast(cfg, cache, logger)
		},
	},
}

// Registry creates providers by name from the loaded configuration.
type Registry struct {
	cfg    config.Config
	cache  port.ForecastCache
	logger *zap.Logger
}

var _ port.ForecastProviderFactory = (*Registry)(nil)

func NewRegistry(cfg config.Config, cache port.ForecastCache, logger *zap.Logger) *Registry {
	return &Registry{cfg: cfg, cache: cache, logger: logger}
}

func (r *Registry) Create(name string) (port.ForecastProvider, error) {
	entry, ok := providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", domain.ErrUnknownProvider, name, strings.Join(ProviderNames(), ", "))
	}
	return entry.new(r.cfg, r.cache, r.logger.With(zap.String("provider", entry.info.Name)))
}

func (r *Registry) DefaultProvider() string {
	return PROVIDER_FORECAST_SOLAR
}

// ProviderNames lists the registered provider keys, sorted.
func ProviderNames() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Info returns the metadata of a registered provider.
func Info(name string) (ProviderInfo, bool) {
	entry, ok := providers[name]
	return entry.info, ok
}
