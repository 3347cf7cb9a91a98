// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

package guardrails

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/campusworks/advisor/pkg/errors"
)

// RateLimiter admits at most maxRequests model calls within a sliding time
// window. One instance is shared by every caller it gates; construct it
// explicitly and inject it rather than reaching for a package global, so
// tests can use isolated instances.
//
// Invariant: after a successful admission, the number of recorded
// timestamps inside [now-window, now] never exceeds maxRequests. Timestamps
// are kept oldest first, so expiring stale entries is a prefix trim. The
// trim-check-append sequence runs as a whole under the mutex; splitting it
// would let two concurrent requests both observe the last free slot.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	logger      *slog.Logger

	// now is the clock, replaceable in tests.
	now func() time.Time

	mu       sync.Mutex
	requests []time.Time
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRateLimiterLogger sets the logger used for audit entries.
func WithRateLimiterLogger(logger *slog.Logger) RateLimiterOption {
	return func(l *RateLimiter) {
		l.logger = logger
	}
}

// WithRateLimiterClock replaces the wall clock. Test hook.
func WithRateLimiterClock(now func() time.Time) RateLimiterOption {
	return func(l *RateLimiter) {
		l.now = now
	}
}

// NewRateLimiter creates a sliding-window limiter admitting maxRequests per
// window. maxRequests == 0 refuses every request; negative values and a
// non-positive window are configuration errors.
func NewRateLimiter(maxRequests int, window time.Duration, opts ...RateLimiterOption) (*RateLimiter, error) {
	if maxRequests < 0 {
		return nil, errors.New(errors.CodeInvalidConfig,
			fmt.Sprintf("rate limit quota must not be negative (got %d)", maxRequests), nil)
	}
	if window <= 0 {
		return nil, errors.New(errors.CodeInvalidConfig,
			fmt.Sprintf("rate limit window must be positive (got %s)", window), nil)
	}
	l := &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		requests:    make([]time.Time, 0, maxRequests),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l, nil
}

// ID returns the interceptor identifier.
func (l *RateLimiter) ID() string {
	return "rate-limiter"
}

// Inspect admits the request if quota remains in the current window,
// recording its timestamp; otherwise it refuses and reports how long the
// caller must wait. Admission decisions are strictly serialized by the
// mutex.
func (l *RateLimiter) Inspect(_ context.Context, req *ModelRequest) *Rejection {
	l.logger.Debug("guardrails.rate_limiter.run", slog.String("agent", req.AgentName))

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	// Drop requests that have left the window. Oldest-first order makes
	// this a prefix trim.
	expired := 0
	for expired < len(l.requests) && !l.requests[expired].After(cutoff) {
		expired++
	}
	if expired > 0 {
		l.requests = l.requests[expired:]
	}

	if len(l.requests) >= l.maxRequests {
		waitSeconds := int(l.window.Seconds()) + 1
		if len(l.requests) > 0 {
			oldest := l.requests[0]
			waitSeconds = int(l.window.Seconds()-now.Sub(oldest).Seconds()) + 1
		}
		// The +1 pads against admitting a request right at the window
		// boundary. A zero quota has no oldest entry to wait out, so the
		// full window applies.
		if waitSeconds < 1 {
			waitSeconds = 1
		}
		l.logger.Warn("guardrails.rate_limiter.blocked",
			slog.String("agent", req.AgentName),
			slog.Int("wait_seconds", waitSeconds),
			slog.Int("max_requests", l.maxRequests),
		)
		return &Rejection{
			Kind:              RejectionQuota,
			InterceptorID:     l.ID(),
			Message:           fmt.Sprintf("I'm receiving too many requests right now. Please wait %d seconds before trying again.", waitSeconds),
			RetryAfterSeconds: waitSeconds,
		}
	}

	l.requests = append(l.requests, now)
	return nil
}

// Pending returns the number of admissions currently inside the window.
// Diagnostic only; the value may be stale by the time it is read.
func (l *RateLimiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.window)
	n := 0
	for _, t := range l.requests {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}
