// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

package guardrails

import (
	"context"
	"log/slog"
	"strings"
)

// ToolCall is a pending tool invocation, inspected before the tool executes.
type ToolCall struct {
	Name      string
	Arguments map[string]any
}

// BlockedParams maps tool name → argument name → blocked values.
type BlockedParams map[string]map[string][]string

// FunctionGuard vetoes specific tool invocations by argument value. It runs
// at a different trigger point than the model-call interceptors (before a
// tool executes, not before a model call) and answers allow/deny rather
// than producing a refusal message: the tool dispatcher reports a refused
// call back to the model as a failed tool result.
//
// Unlike KeywordFilter, matching is whole-value: an argument blocks only
// when it equals a blocked value case-insensitively, not when it merely
// contains one. Non-string argument values never match.
type FunctionGuard struct {
	blockedParams BlockedParams
	logger        *slog.Logger
}

// FunctionGuardOption configures a FunctionGuard.
type FunctionGuardOption func(*FunctionGuard)

// WithFunctionGuardLogger sets the logger used for audit entries.
func WithFunctionGuardLogger(logger *slog.Logger) FunctionGuardOption {
	return func(g *FunctionGuard) {
		g.logger = logger
	}
}

// NewFunctionGuard creates a guard from a tool→argument→blocked-values map.
//
//	guard := guardrails.NewFunctionGuard(guardrails.BlockedParams{
//	    "search_faq": {"query": {"classified", "confidential"}},
//	})
func NewFunctionGuard(blockedParams BlockedParams, opts ...FunctionGuardOption) *FunctionGuard {
	g := &FunctionGuard{blockedParams: blockedParams}
	for _, opt := range opts {
		opt(g)
	}
	if g.blockedParams == nil {
		g.blockedParams = BlockedParams{}
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// ID returns the guard identifier.
func (g *FunctionGuard) ID() string {
	return "function-guard"
}

// Allow reports whether the tool call may execute. Tools with no configured
// rules are always allowed.
func (g *FunctionGuard) Allow(_ context.Context, call ToolCall) bool {
	rules, ok := g.blockedParams[call.Name]
	if !ok {
		return true
	}

	g.logger.Debug("guardrails.function_guard.run", slog.String("tool", call.Name))

	for param, blockedValues := range rules {
		raw, present := call.Arguments[param]
		if !present {
			continue
		}
		value, isString := raw.(string)
		if !isString {
			continue
		}
		for _, blocked := range blockedValues {
			if strings.EqualFold(value, blocked) {
				g.logger.Warn("guardrails.function_guard.blocked",
					slog.String("tool", call.Name),
					slog.String("param", param),
					slog.String("value", truncate(value, 100)),
				)
				return false
			}
		}
	}
	return true
}
