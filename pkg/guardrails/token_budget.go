// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

package guardrails

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/campusworks/advisor/pkg/errors"
)

// charsPerToken is the length-to-token divisor. Roughly four characters per
// token for English text; a cheap upper-bound heuristic, not a tokenizer.
const charsPerToken = 4

// Default ceilings, tunable via NewTokenBudget.
const (
	DefaultMaxTokens         = 100
	DefaultDocumentMaxTokens = 3500
)

// TokenBudget refuses requests whose estimated token count exceeds the
// applicable ceiling. Document uploads get a substantially larger ceiling
// than direct messages to accommodate pasted document text.
//
// The request's DocumentUpload flag is the source of truth for ceiling
// selection. SetDocumentMode exists for callers that cannot thread the flag
// through the request; it only takes effect when a request is built without
// one (see inspectMode).
type TokenBudget struct {
	maxTokens         int
	documentMaxTokens int
	logger            *slog.Logger

	// Legacy document-mode flag, guarded so a concurrent SetDocumentMode
	// cannot race an in-flight inspection.
	mu           sync.Mutex
	documentMode bool
}

// TokenBudgetOption configures a TokenBudget.
type TokenBudgetOption func(*TokenBudget)

// WithTokenBudgetLogger sets the logger used for audit entries.
func WithTokenBudgetLogger(logger *slog.Logger) TokenBudgetOption {
	return func(b *TokenBudget) {
		b.logger = logger
	}
}

// NewTokenBudget creates a token-budget interceptor with the given ceilings.
// Zero values select the defaults; negative ceilings are a configuration
// error.
func NewTokenBudget(maxTokens, documentMaxTokens int, opts ...TokenBudgetOption) (*TokenBudget, error) {
	if maxTokens < 0 || documentMaxTokens < 0 {
		return nil, errors.New(errors.CodeInvalidConfig,
			fmt.Sprintf("token ceilings must not be negative (direct=%d, document=%d)", maxTokens, documentMaxTokens), nil)
	}
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	if documentMaxTokens == 0 {
		documentMaxTokens = DefaultDocumentMaxTokens
	}
	b := &TokenBudget{
		maxTokens:         maxTokens,
		documentMaxTokens: documentMaxTokens,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b, nil
}

// ID returns the interceptor identifier.
func (b *TokenBudget) ID() string {
	return "token-budget"
}

// SetDocumentMode sets the legacy fallback document-mode flag. New callers
// should set ModelRequest.DocumentUpload instead; the per-request flag wins
// whenever the request carries one.
func (b *TokenBudget) SetDocumentMode(isDocument bool) {
	b.mu.Lock()
	b.documentMode = isDocument
	b.mu.Unlock()
}

// EstimateTokens returns the heuristic token count for the given text.
func EstimateTokens(text string) int {
	return len(text) / charsPerToken
}

// Inspect estimates the token count of the latest user message and refuses
// when it exceeds the ceiling for the request class. The refusal reports
// the limit and whether it applied to a document upload or a direct message.
func (b *TokenBudget) Inspect(_ context.Context, req *ModelRequest) *Rejection {
	b.logger.Debug("guardrails.token_budget.run", slog.String("agent", req.AgentName))

	isDocument := b.inspectMode(req)
	limit := b.maxTokens
	queryType := "direct message"
	if isDocument {
		limit = b.documentMaxTokens
		queryType = "document upload"
	}

	estimated := EstimateTokens(req.LastUserText())
	if estimated > limit {
		b.logger.Warn("guardrails.token_budget.blocked",
			slog.String("agent", req.AgentName),
			slog.Int("estimated_tokens", estimated),
			slog.Int("limit", limit),
			slog.String("query_type", queryType),
		)
		return &Rejection{
			Kind:          RejectionBudget,
			InterceptorID: b.ID(),
			Message:       fmt.Sprintf("I cannot process this %s as it exceeds the token limit of %d. Please try a shorter input.", queryType, limit),
		}
	}

	b.logger.Debug("guardrails.token_budget.pass",
		slog.Int("estimated_tokens", estimated),
		slog.Int("limit", limit),
	)
	return nil
}

// inspectMode resolves which request class applies. The request flag is
// authoritative; the mutator-set flag only covers legacy integration paths
// where the router toggles the mode just-in-time and the request itself
// carries no classification.
func (b *TokenBudget) inspectMode(req *ModelRequest) bool {
	if req.DocumentUpload {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.documentMode
}
