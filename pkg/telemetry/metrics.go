// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AdmissionMetrics tracks guardrail decisions for production monitoring.
type AdmissionMetrics struct {
	// admittedCounter tracks requests that passed the whole chain
	admittedCounter metric.Int64Counter

	// rejectedCounter tracks rejections by guardrail and kind
	rejectedCounter metric.Int64Counter

	// toolBlockedCounter tracks tool calls refused by the function guard
	toolBlockedCounter metric.Int64Counter

	// estimatedTokens records the token estimate of admitted requests
	estimatedTokens metric.Int64Histogram
}

// NewAdmissionMetrics creates an admission metrics tracker with OTEL meters.
func NewAdmissionMetrics() (*AdmissionMetrics, error) {
	meter := otel.Meter("advisor/guardrails")

	admittedCounter, err := meter.Int64Counter(
		"advisor.admissions.allowed",
		metric.WithDescription("Requests admitted by the guardrail chain"),
	)
	if err != nil {
		return nil, err
	}

	rejectedCounter, err := meter.Int64Counter(
		"advisor.admissions.rejected",
		metric.WithDescription("Requests rejected, by guardrail and rejection kind"),
	)
	if err != nil {
		return nil, err
	}

	toolBlockedCounter, err := meter.Int64Counter(
		"advisor.tools.blocked",
		metric.WithDescription("Tool calls refused by the function guard"),
	)
	if err != nil {
		return nil, err
	}

	estimatedTokens, err := meter.Int64Histogram(
		"advisor.admissions.estimated_tokens",
		metric.WithDescription("Heuristic token estimate of admitted requests"),
	)
	if err != nil {
		return nil, err
	}

	return &AdmissionMetrics{
		admittedCounter:    admittedCounter,
		rejectedCounter:    rejectedCounter,
		toolBlockedCounter: toolBlockedCounter,
		estimatedTokens:    estimatedTokens,
	}, nil
}

// RecordAdmitted counts a request that passed the full chain.
func (am *AdmissionMetrics) RecordAdmitted(ctx context.Context, agentName string, tokens int) {
	if am == nil {
		return
	}
	am.admittedCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String(AttrAgentName, agentName)),
	)
	am.estimatedTokens.Record(ctx, int64(tokens),
		metric.WithAttributes(attribute.String(AttrAgentName, agentName)),
	)
}

// RecordRejected counts a rejection by guardrail and kind.
func (am *AdmissionMetrics) RecordRejected(ctx context.Context, agentName, guardrail, kind string) {
	if am == nil {
		return
	}
	am.rejectedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(AttrAgentName, agentName),
			attribute.String(AttrAdmissionGuard, guardrail),
			attribute.String(AttrAdmissionKind, kind),
		),
	)
}

// RecordToolBlocked counts a tool call refused by the function guard.
func (am *AdmissionMetrics) RecordToolBlocked(ctx context.Context, toolName string) {
	if am == nil {
		return
	}
	am.toolBlockedCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String(AttrToolName, toolName)),
	)
}
