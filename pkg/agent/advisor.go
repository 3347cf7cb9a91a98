// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent runs advising conversations: admission checks, the model
// call, and the tool loop for one turn.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/campusworks/advisor/pkg/audit"
	"github.com/campusworks/advisor/pkg/errors"
	"github.com/campusworks/advisor/pkg/guardrails"
	"github.com/campusworks/advisor/pkg/llm"
	"github.com/campusworks/advisor/pkg/session"
	"github.com/campusworks/advisor/pkg/telemetry"
	"github.com/campusworks/advisor/pkg/tools"
)

// defaultMaxToolRounds bounds the model/tool loop within a single turn.
const defaultMaxToolRounds = 5

// toolBlockedResult is fed back to the model when a tool call is refused,
// so the model can explain the refusal instead of the turn failing.
const toolBlockedResult = `{"error":"TOOL_CALL_BLOCKED","message":"This tool call was blocked by policy. Tell the user you cannot help with that specific request."}`

// TurnInput is one user message entering the system.
type TurnInput struct {
	UserID         string
	SessionID      string
	Message        string
	DocumentUpload bool
}

// TurnOutput is the reply for one turn. SessionID is always populated, even
// when the caller did not supply one.
type TurnOutput struct {
	Response  string
	UserID    string
	SessionID string
	Rejected  bool
}

// Advisor answers advising questions for a student. Every turn passes the
// admission chain before the model is called; tool calls pass the function
// guard before they execute.
type Advisor struct {
	name          string
	instructions  string
	model         string
	provider      llm.Provider
	sessions      *session.Store
	chain         *guardrails.Chain
	guard         *guardrails.FunctionGuard
	registry      *tools.Registry
	auditStore    audit.Store
	metrics       *telemetry.AdmissionMetrics
	logger        *slog.Logger
	maxToolRounds int
}

// Option configures an Advisor.
type Option func(*Advisor)

// WithInstructions sets the system prompt.
func WithInstructions(instructions string) Option {
	return func(a *Advisor) { a.instructions = instructions }
}

// WithModel sets the model name passed to the provider.
func WithModel(model string) Option {
	return func(a *Advisor) { a.model = model }
}

// WithChain sets the admission chain run before every model call.
func WithChain(chain *guardrails.Chain) Option {
	return func(a *Advisor) { a.chain = chain }
}

// WithFunctionGuard sets the guard applied to every tool call.
func WithFunctionGuard(guard *guardrails.FunctionGuard) Option {
	return func(a *Advisor) { a.guard = guard }
}

// WithRegistry sets the tool registry offered to the model.
func WithRegistry(registry *tools.Registry) Option {
	return func(a *Advisor) { a.registry = registry }
}

// WithAudit sets the store receiving admission decisions.
func WithAudit(store audit.Store) Option {
	return func(a *Advisor) { a.auditStore = store }
}

// WithMetrics sets the admission metrics sink.
func WithMetrics(m *telemetry.AdmissionMetrics) Option {
	return func(a *Advisor) { a.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Advisor) { a.logger = logger }
}

// WithMaxToolRounds bounds the tool loop within a turn.
func WithMaxToolRounds(n int) Option {
	return func(a *Advisor) {
		if n > 0 {
			a.maxToolRounds = n
		}
	}
}

// New creates an Advisor. The name and provider are required; sessions
// default to a fresh in-memory store.
func New(name string, provider llm.Provider, sessions *session.Store, opts ...Option) (*Advisor, error) {
	if name == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "agent name is required", nil)
	}
	if provider == nil {
		return nil, errors.New(errors.CodeInvalidConfig, "llm provider is required", nil)
	}
	if sessions == nil {
		sessions = session.NewStore()
	}
	a := &Advisor{
		name:          name,
		provider:      provider,
		sessions:      sessions,
		logger:        slog.Default(),
		maxToolRounds: defaultMaxToolRounds,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Name returns the agent's name.
func (a *Advisor) Name() string { return a.name }

// Respond handles one user turn end to end.
func (a *Advisor) Respond(ctx context.Context, in TurnInput) (*TurnOutput, error) {
	tracer := otel.Tracer("advisor/agent")
	ctx, span := tracer.Start(ctx, "advisor.turn")
	defer span.End()

	if in.UserID == "" {
		in.UserID = "web_user"
	}

	_, sessionID := a.sessions.GetOrCreate(ctx, in.UserID, in.SessionID)
	if err := a.sessions.Append(ctx, in.UserID, sessionID, session.Message{
		Role:    "user",
		Content: in.Message,
	}); err != nil {
		return nil, err
	}

	history := a.sessions.Messages(ctx, in.UserID, sessionID)
	span.SetAttributes(telemetry.TurnAttributes(a.name, in.UserID, sessionID, len(history), in.DocumentUpload)...)

	req := a.buildModelRequest(history, in.DocumentUpload)

	if rejection := a.inspect(ctx, span, req, in, sessionID); rejection != nil {
		// The refusal stands in for the model's reply and stays in the
		// conversation so the user sees a coherent transcript.
		if err := a.sessions.Append(ctx, in.UserID, sessionID, session.Message{
			Role:    "assistant",
			Content: rejection.Message,
		}); err != nil {
			return nil, err
		}
		return &TurnOutput{
			Response:  rejection.Message,
			UserID:    in.UserID,
			SessionID: sessionID,
			Rejected:  true,
		}, nil
	}

	reply, err := a.converse(ctx, history)
	if err != nil {
		return nil, err
	}

	if err := a.sessions.Append(ctx, in.UserID, sessionID, session.Message{
		Role:    "assistant",
		Content: reply,
	}); err != nil {
		return nil, err
	}
	return &TurnOutput{
		Response:  reply,
		UserID:    in.UserID,
		SessionID: sessionID,
	}, nil
}

func (a *Advisor) buildModelRequest(history []session.Message, documentUpload bool) *guardrails.ModelRequest {
	msgs := make([]guardrails.Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, guardrails.Message{Role: m.Role, Content: m.Content})
	}
	return &guardrails.ModelRequest{
		AgentName:      a.name,
		History:        msgs,
		DocumentUpload: documentUpload,
	}
}

// inspect runs the admission chain and records the outcome. A nil chain
// admits everything.
func (a *Advisor) inspect(ctx context.Context, span trace.Span, req *guardrails.ModelRequest, in TurnInput, sessionID string) *guardrails.Rejection {
	if a.chain == nil {
		return nil
	}
	rejection := a.chain.Inspect(ctx, req)

	decision := audit.Decision{
		UserID:       in.UserID,
		SessionID:    sessionID,
		AgentName:    a.name,
		Allowed:      rejection == nil,
		Input:        req.LastUserText(),
		DocumentMode: in.DocumentUpload,
	}
	if rejection == nil {
		span.SetAttributes(telemetry.AdmissionAttributes(true, "", "", 0)...)
		a.metrics.RecordAdmitted(ctx, a.name, guardrails.EstimateTokens(req.LastUserText()))
	} else {
		decision.InterceptorID = rejection.InterceptorID
		decision.Reason = rejection.Message
		span.SetAttributes(telemetry.AdmissionAttributes(false, rejection.InterceptorID, string(rejection.Kind), rejection.RetryAfterSeconds)...)
		a.metrics.RecordRejected(ctx, a.name, rejection.InterceptorID, string(rejection.Kind))
		a.logger.Warn("agent.admission.rejected",
			slog.String("agent", a.name),
			slog.String("user_id", in.UserID),
			slog.String("session_id", sessionID),
			slog.String("guardrail", rejection.InterceptorID),
			slog.String("kind", string(rejection.Kind)),
		)
	}
	if a.auditStore != nil {
		if err := a.auditStore.Record(ctx, decision); err != nil {
			a.logger.Error("agent.audit.record_failed", slog.String("error", err.Error()))
		}
	}
	return rejection
}

// converse calls the model, resolving tool calls until it produces a final
// text reply or the round bound is hit.
func (a *Advisor) converse(ctx context.Context, history []session.Message) (string, error) {
	msgs := make([]llm.Message, 0, len(history)+1)
	if a.instructions != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: a.instructions})
	}
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}

	var defs []llm.Tool
	if a.registry != nil {
		defs = a.registry.Definitions()
	}

	for round := 0; round < a.maxToolRounds; round++ {
		resp, err := a.provider.Chat(ctx, llm.ChatRequest{
			Model:    a.model,
			Messages: msgs,
			Tools:    defs,
		})
		if err != nil {
			return "", errors.New(errors.CodeLLMError, "model call failed", err).
				WithContext("agent", a.name)
		}
		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		msgs = append(msgs, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			result := a.runTool(ctx, call)
			msgs = append(msgs, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}
	return "", errors.New(errors.CodeLLMError,
		fmt.Sprintf("no final response after %d tool rounds", a.maxToolRounds), nil).
		WithContext("agent", a.name)
}

// runTool gates one tool call through the function guard and executes it.
// Failures come back as structured payloads for the model, never as errors.
func (a *Advisor) runTool(ctx context.Context, call llm.ToolCall) string {
	name := call.Function.Name

	args := map[string]any{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			a.logger.Warn("agent.tool.bad_arguments",
				slog.String("tool", name),
				slog.String("error", err.Error()),
			)
			return fmt.Sprintf(`{"error":"INVALID_ARGUMENTS","message":%q}`, err.Error())
		}
	}

	if a.guard != nil && !a.guard.Allow(ctx, guardrails.ToolCall{Name: name, Arguments: args}) {
		a.metrics.RecordToolBlocked(ctx, name)
		a.logger.Warn("agent.tool.blocked", slog.String("tool", name))
		return toolBlockedResult
	}

	if a.registry == nil {
		return fmt.Sprintf(`{"error":"UNKNOWN_TOOL","message":"no tool named '%s' is available"}`, name)
	}
	out, err := a.registry.Execute(ctx, name, args)
	if err != nil {
		a.logger.Error("agent.tool.failed",
			slog.String("tool", name),
			slog.String("error", err.Error()),
		)
		return fmt.Sprintf(`{"error":"TOOL_FAILURE","message":%q}`, err.Error())
	}
	return out
}
