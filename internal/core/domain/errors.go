package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNetwork        = errors.New("network error")
	ErrAuthentication = errors.New("authentication error")
	ErrRateLimit      = errors.New("rate limit exceeded")
	ErrProviderConfig = errors.New("provider configuration error")
	ErrProviderData   = errors.New("invalid provider response")

	ErrAllProvidersFailed = errors.New("all forecast providers failed")
	ErrNoProviders        = errors.New("no forecast providers could be initialized")
	ErrUnknownProvider    = errors.New("unknown forecast provider")
)

var (
	ErrVendorAuth   = errors.New("vendor authentication failed")
	ErrVendorDevice = errors.New("vendor device error")
	ErrVendorAPI    = errors.New("vendor api error")
	ErrInvalidInput = errors.New("invalid input")
)

// ProviderError tags a failure with the provider that produced it. Kind is
// one of the provider sentinel errors so callers can use errors.Is.
type ProviderError struct {
	Provider string
	Kind     error
	Err      error
}

func NewProviderError(provider string, kind error, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ProviderOf returns the provider name carried by err, if any.
func ProviderOf(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Provider
	}
	return ""
}

// AllProvidersFailedError aggregates every provider failure of a fallback
// chain.
type AllProvidersFailedError struct {
	Errors []error
}

func (e *AllProvidersFailedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAllProvidersFailed, errors.Join(e.Errors...))
}

func (e *AllProvidersFailedError) Unwrap() []error {
	return append([]error{ErrAllProvidersFailed}, e.Errors...)
}
