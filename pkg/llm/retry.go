// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/campusworks/advisor/pkg/errors"
)

// RetryConfig controls retry behavior for model calls.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (must be >= 1).
	MaxAttempts int

	// InitialDelay is the initial backoff delay.
	InitialDelay time.Duration

	// MaxDelay caps the exponential backoff delay.
	MaxDelay time.Duration

	// Jitter between 0 and 1; 0.1 means ±10% of the delay.
	Jitter float64
}

// DefaultRetryConfig suits transient Ollama failures.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Jitter:       0.1,
	}
}

// RetryingProvider wraps a Provider and retries recoverable failures with
// exponential backoff. Only errors flagged recoverable are retried;
// everything else returns immediately.
type RetryingProvider struct {
	inner  Provider
	config RetryConfig
	logger *slog.Logger
}

// NewRetryingProvider wraps a provider with retry behavior.
func NewRetryingProvider(inner Provider, config RetryConfig, logger *slog.Logger) *RetryingProvider {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryingProvider{inner: inner, config: config, logger: logger}
}

// Chat calls the wrapped provider, retrying recoverable failures.
func (p *RetryingProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var lastErr error
	for attempt := 0; attempt < p.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := p.backoff(attempt)
			p.logger.Debug("llm.retry.waiting",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return nil, errors.New(errors.CodeLLMError, "context canceled during retry", ctx.Err()).
					WithContext("attempt", attempt)
			case <-time.After(delay):
			}
		}

		resp, err := p.inner.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ae := errors.AsAdvisorError(err); !ae.Recoverable {
			return nil, err
		}
	}
	return nil, lastErr
}

func (p *RetryingProvider) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(p.config.InitialDelay) * math.Pow(2, float64(attempt-1)))
	if delay > p.config.MaxDelay {
		delay = p.config.MaxDelay
	}
	if p.config.Jitter > 0 {
		spread := 2 * p.config.Jitter * (rand.Float64() - 0.5)
		delay = time.Duration(float64(delay) * (1 + spread))
		if delay < 0 {
			delay = 0
		}
	}
	return delay
}
