package model

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited decorates a Model with a shared token-bucket limiter so every
// inference call across sessions respects the configured request rate.
type RateLimited struct {
	inner   Model
	limiter *rate.Limiter
}

// NewRateLimited wraps inner with the given limiter. A nil limiter returns
// inner unchanged.
func NewRateLimited(inner Model, limiter *rate.Limiter) Model {
	if limiter == nil {
		return inner
	}
	return &RateLimited{inner: inner, limiter: limiter}
}

// Generate waits for a limiter token before delegating.
func (m *RateLimited) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	if err := m.limiter.Wait(ctx); err != nil {
		out := make(chan Response)
		errCh := make(chan error, 1)
		errCh <- fmt.Errorf("rate limiter wait: %w", err)
		close(out)
		close(errCh)
		return out, errCh
	}
	return m.inner.Generate(ctx, req)
}

// Info delegates to the wrapped model.
func (m *RateLimited) Info() Info { return m.inner.Info() }
