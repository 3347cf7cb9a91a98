// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for Advisor telemetry.
// These follow OpenTelemetry naming conventions where applicable.
const (
	// Agent attributes
	AttrAgentName = "advisor.agent.name"
	AttrAgentTurn = "advisor.agent.turn_id"

	// Session attributes
	AttrSessionID  = "advisor.session.id"
	AttrUserID     = "advisor.session.user_id"
	AttrMsgCount   = "advisor.session.message_count"
	AttrUploadMode = "advisor.request.document_upload"

	// Admission attributes
	AttrAdmissionAllowed  = "advisor.admission.allowed"
	AttrAdmissionGuard    = "advisor.admission.guardrail"
	AttrAdmissionKind     = "advisor.admission.rejection_kind"
	AttrAdmissionWaitSecs = "advisor.admission.retry_after_seconds"
	AttrEstimatedTokens   = "advisor.admission.estimated_tokens"

	// Tool attributes
	AttrToolName    = "advisor.tool.name"
	AttrToolAllowed = "advisor.tool.allowed"
	AttrToolSuccess = "advisor.tool.success"

	// LLM attributes (standard gen_ai conventions)
	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMProvider     = "gen_ai.system"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
)

// AdmissionAttributes returns span attributes for a guardrail admission
// decision. guardrail and kind are empty for admitted requests.
func AdmissionAttributes(allowed bool, guardrail, kind string, retryAfter int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Bool(AttrAdmissionAllowed, allowed),
	}
	if guardrail != "" {
		attrs = append(attrs, attribute.String(AttrAdmissionGuard, guardrail))
	}
	if kind != "" {
		attrs = append(attrs, attribute.String(AttrAdmissionKind, kind))
	}
	if retryAfter > 0 {
		attrs = append(attrs, attribute.Int(AttrAdmissionWaitSecs, retryAfter))
	}
	return attrs
}

// TurnAttributes returns attributes common to a chat turn span.
func TurnAttributes(agentName, userID, sessionID string, msgCount int, documentUpload bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrAgentName, agentName),
		attribute.Bool(AttrUploadMode, documentUpload),
	}
	if userID != "" {
		attrs = append(attrs, attribute.String(AttrUserID, userID))
	}
	if sessionID != "" {
		attrs = append(attrs, attribute.String(AttrSessionID, sessionID))
	}
	if msgCount > 0 {
		attrs = append(attrs, attribute.Int(AttrMsgCount, msgCount))
	}
	return attrs
}

// ToolCallAttributes returns attributes for a tool dispatch span.
func ToolCallAttributes(name string, allowed, success bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrToolName, name),
		attribute.Bool(AttrToolAllowed, allowed),
		attribute.Bool(AttrToolSuccess, success),
	}
}

// LLMAttributes returns attributes for model call spans.
func LLMAttributes(model, provider string, inputTokens, outputTokens int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrLLMModel, model),
	}
	if provider != "" {
		attrs = append(attrs, attribute.String(AttrLLMProvider, provider))
	}
	if inputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensInput, inputTokens))
	}
	if outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensOutput, outputTokens))
	}
	return attrs
}
