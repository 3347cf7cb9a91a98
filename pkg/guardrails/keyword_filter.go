// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

package guardrails

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// KeywordFilter refuses requests whose latest user message contains any of
// the configured blocked words. Matching is a case-insensitive substring
// test; an empty word list makes the filter an always-pass.
//
// The filter holds only immutable configuration and is safe for concurrent
// use without synchronization.
type KeywordFilter struct {
	blockedWords []string
	logger       *slog.Logger
}

// KeywordFilterOption configures a KeywordFilter.
type KeywordFilterOption func(*KeywordFilter)

// WithKeywordLogger sets the logger used for audit entries.
func WithKeywordLogger(logger *slog.Logger) KeywordFilterOption {
	return func(f *KeywordFilter) {
		f.logger = logger
	}
}

// NewKeywordFilter creates a filter for the given blocked words. Empty
// entries are dropped.
func NewKeywordFilter(blockedWords []string, opts ...KeywordFilterOption) *KeywordFilter {
	f := &KeywordFilter{blockedWords: make([]string, 0, len(blockedWords))}
	for _, w := range blockedWords {
		w = strings.TrimSpace(w)
		if w != "" {
			f.blockedWords = append(f.blockedWords, w)
		}
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// ID returns the interceptor identifier.
func (f *KeywordFilter) ID() string {
	return "keyword-filter"
}

// BlockedWords returns the configured word list.
func (f *KeywordFilter) BlockedWords() []string {
	return f.blockedWords
}

// Inspect checks the latest user message against the blocked-word list and
// refuses on the first match. The refusal embeds the matched word so the
// user can rephrase.
func (f *KeywordFilter) Inspect(_ context.Context, req *ModelRequest) *Rejection {
	f.logger.Debug("guardrails.keyword_filter.run", slog.String("agent", req.AgentName))

	text := req.LastUserText()
	upper := strings.ToUpper(text)
	for _, kw := range f.blockedWords {
		if strings.Contains(upper, strings.ToUpper(kw)) {
			// Audit only a prefix of the offending text, never the full
			// message.
			f.logger.Info("guardrails.keyword_filter.blocked",
				slog.String("agent", req.AgentName),
				slog.String("keyword", kw),
				slog.String("text", truncate(text, 100)),
			)
			return &Rejection{
				Kind:          RejectionContent,
				InterceptorID: f.ID(),
				Message:       fmt.Sprintf("I cannot process this request because it contains the blocked keyword '%s'.", kw),
			}
		}
	}
	return nil
}
