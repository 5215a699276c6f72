package port

import (
	"context"
	"time"

	"github.com/berfenger/growattcharger/internal/core/domain"
)

type ForecastProvider interface {
	Name() string
	ForecastForDate(ctx context.Context, date time.Time) (float64, error)
	HourlyForecastForDate(ctx context.Context, date time.Time) (domain.HourlyForecast, error)
}

// ConnectionTester is implemented by providers with a custom connectivity
// probe. Providers without one are probed with a forecast fetch.
type ConnectionTester interface {
	TestConnection(ctx context.Context) bool
}

// ForecastCache stores raw provider payloads.
type ForecastCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ForecastProviderFactory instantiates providers by registry key.
type ForecastProviderFactory interface {
	Create(name string) (ForecastProvider, error)
	DefaultProvider() string
}
