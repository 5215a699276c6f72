package forecast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/berfenger/growattcharger/internal/core/port"
	"go.uber.org/zap"
)

// fetcher performs provider GET requests and keeps the raw payloads in an
// optional cache. Only successful responses are cached.
type fetcher struct {
	provider   string
	httpClient *http.Client
	cache      port.ForecastCache
	ttl        time.Duration
	logger     *zap.Logger
	// statusErr maps a non-2xx status to an error kind
	statusErr func(status int) error
}

func newFetcher(provider string, timeout time.Duration, cache port.ForecastCache, ttl time.Duration, logger *zap.Logger) *fetcher {
	return &fetcher{
		provider:   provider,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		ttl:        ttl,
		logger:     logger,
		statusErr:  func(int) error { return domain.ErrNetwork },
	}
}

func (f *fetcher) get(ctx context.Context, endpoint string, header http.Header) ([]byte, error) {
	key := f.provider + ":" + endpoint
	if f.cache != nil {
		body, ok, err := f.cache.Get(ctx, key)
		if err != nil {
			f.logger.Warn("forecast cache read failed", zap.String("provider", f.provider), zap.Error(err))
		} else if ok {
			f.logger.Debug("forecast cache hit", zap.String("provider", f.provider))
			return body, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.NewProviderError(f.provider, domain.ErrProviderConfig, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) && uerr.Timeout() {
			return nil, domain.NewProviderError(f.provider, domain.ErrNetwork, errors.New("request timeout"))
		}
		return nil, domain.NewProviderError(f.provider, domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, domain.NewProviderError(f.provider, f.statusErr(resp.StatusCode),
			fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(payload)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewProviderError(f.provider, domain.ErrNetwork, err)
	}

	if f.cache != nil {
		if err := f.cache.Set(ctx, key, body, f.ttl); err != nil {
			f.logger.Warn("forecast cache write failed", zap.String("provider", f.provider), zap.Error(err))
		}
	}
	return body, nil
}
