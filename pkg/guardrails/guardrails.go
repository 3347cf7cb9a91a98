// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

// Package guardrails implements the request-admission pipeline that runs
// before any message reaches the language model.
//
// Guardrails operate at two trigger points:
//   - Model calls: interceptors inspect the pending request (keyword filter,
//     token budget, rate limiter) and may veto it.
//   - Tool calls: FunctionGuard vetoes individual tool invocations by
//     argument value before the tool executes.
//
// Example usage:
//
//	chain, err := guardrails.NewChain(
//	    guardrails.WithInterceptor(tokenBudget),
//	    guardrails.WithInterceptor(keywordFilter),
//	    guardrails.WithInterceptor(rateLimiter),
//	)
//
//	// In the agent loop, before the model call
//	if rej := chain.Inspect(ctx, req); rej != nil {
//	    return rej.Message // refusal, model is never called
//	}
package guardrails

import "context"

// Message is a single conversation turn as seen by the interceptors.
type Message struct {
	Role    string
	Content string
}

// ModelRequest describes a pending model call. It is constructed immediately
// before the call and discarded after; interceptors never retain it.
type ModelRequest struct {
	// AgentName identifies the agent about to call the model. Used for
	// logging and audit only.
	AgentName string

	// History holds the conversation turns, oldest first. Only the most
	// recent non-empty user turn is inspected.
	History []Message

	// DocumentUpload marks requests whose text originated from an uploaded
	// document rather than typed chat input. Selects the larger token
	// ceiling.
	DocumentUpload bool
}

// LastUserText returns the content of the most recent user turn with
// non-empty text, or "" when no such turn exists.
func (r *ModelRequest) LastUserText() string {
	if r == nil {
		return ""
	}
	for i := len(r.History) - 1; i >= 0; i-- {
		if r.History[i].Role == "user" && r.History[i].Content != "" {
			return r.History[i].Content
		}
	}
	return ""
}

// RejectionKind classifies why a request was refused.
type RejectionKind string

const (
	// RejectionContent marks a blocked-keyword refusal.
	RejectionContent RejectionKind = "content"

	// RejectionBudget marks a token-ceiling refusal.
	RejectionBudget RejectionKind = "budget"

	// RejectionQuota marks a rate-limit refusal.
	RejectionQuota RejectionKind = "quota"
)

// Rejection is the terminal outcome of a failed admission check. The Message
// is forwarded to the end user verbatim in place of a model response. A nil
// *Rejection means the request may proceed.
type Rejection struct {
	// Kind classifies the rejection for metrics and audit.
	Kind RejectionKind

	// InterceptorID identifies the interceptor that refused the request.
	InterceptorID string

	// Message is the user-facing refusal text.
	Message string

	// RetryAfterSeconds is set for quota rejections: how long the caller
	// should wait before trying again. Zero otherwise.
	RetryAfterSeconds int
}

// Interceptor inspects a pending model request and may veto it.
// Implementations must be safe for concurrent use; any shared state they
// hold is their own responsibility to synchronize.
type Interceptor interface {
	// Inspect returns a Rejection to refuse the request, or nil to admit it.
	Inspect(ctx context.Context, req *ModelRequest) *Rejection

	// ID returns a unique identifier for this interceptor.
	ID() string
}

// Chain runs an ordered sequence of interceptors over the same request and
// stops at the first rejection. The chain itself holds no mutable state;
// order is fixed at construction and is a policy decision: with the rate
// limiter last, content- and budget-rejected requests do not consume quota.
type Chain struct {
	interceptors []Interceptor
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithInterceptor appends an interceptor to the chain. Interceptors run in
// the order the options are given.
func WithInterceptor(in Interceptor) ChainOption {
	return func(c *Chain) {
		c.interceptors = append(c.interceptors, in)
	}
}

// WithInterceptors appends several interceptors at once.
func WithInterceptors(ins ...Interceptor) ChainOption {
	return func(c *Chain) {
		c.interceptors = append(c.interceptors, ins...)
	}
}

// NewChain creates a Chain from the given options.
func NewChain(opts ...ChainOption) *Chain {
	c := &Chain{interceptors: make([]Interceptor, 0, 4)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Inspect runs every interceptor in order and returns the first rejection,
// or nil when all of them admit the request. Later interceptors are not
// invoked once one rejects.
func (c *Chain) Inspect(ctx context.Context, req *ModelRequest) *Rejection {
	for _, in := range c.interceptors {
		select {
		case <-ctx.Done():
			// The surrounding request was cancelled; nothing downstream
			// will consume the model reply, so just stop.
			return nil
		default:
		}

		if rej := in.Inspect(ctx, req); rej != nil {
			if rej.InterceptorID == "" {
				rej.InterceptorID = in.ID()
			}
			return rej
		}
	}
	return nil
}

// Interceptors returns the configured interceptors in execution order.
func (c *Chain) Interceptors() []Interceptor {
	return c.interceptors
}

// Len returns the number of configured interceptors.
func (c *Chain) Len() int {
	return len(c.interceptors)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
