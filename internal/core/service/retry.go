package service

import (
	"context"
	"errors"
	"time"

	"github.com/berfenger/growattcharger/internal/config"
	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryPolicy is a bounded exponential backoff applied around vendor calls.
// Only errors accepted by Retryable are retried.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Retryable func(error) bool
	Logger    *zap.Logger
}

func NewRetryPolicy(cfg config.RetryConfig, logger *zap.Logger) RetryPolicy {
	return RetryPolicy{
		Attempts:  cfg.Attempts,
		BaseDelay: cfg.BaseDelay,
		MaxDelay:  cfg.MaxDelay,
		Retryable: IsRetryableVendorError,
		Logger:    logger,
	}
}

// IsRetryableVendorError accepts transient vendor API failures. Auth, device
// and input errors are final.
func IsRetryableVendorError(err error) bool {
	if errors.Is(err, domain.ErrVendorAuth) || errors.Is(err, domain.ErrVendorDevice) ||
		errors.Is(err, domain.ErrInvalidInput) {
		return false
	}
	return errors.Is(err, domain.ErrVendorAPI)
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BaseDelay
	exp.MaxInterval = p.MaxDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()

	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
}

// Do runs fn until it succeeds, returns a non-retryable error or the attempts
// are exhausted.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	_, err := Retry(ctx, p, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func Retry[T any](ctx context.Context, p RetryPolicy, op string, fn func() (T, error)) (T, error) {
	attempt := 0
	operation := func() (T, error) {
		attempt++
		v, err := fn()
		if err != nil && (p.Retryable == nil || !p.Retryable(err)) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	notify := func(err error, wait time.Duration) {
		if p.Logger != nil {
			p.Logger.Warn("vendor call failed, retrying",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", p.Attempts),
				zap.Duration("wait", wait),
				zap.Error(err))
		}
	}
	return backoff.RetryNotifyWithData(operation, p.backOff(ctx), notify)
}
