package port

import (
	"context"

	"github.com/berfenger/growattcharger/internal/core/domain"
)

type RunPublisher interface {
	PublishRun(ctx context.Context, result domain.RunResult) error
}

// RunObserver receives run outcomes for instrumentation.
type RunObserver interface {
	ObserveRun(result domain.RunResult, err error)
	ObserveProvider(provider string, err error)
}
