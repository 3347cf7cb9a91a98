// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/campusworks/advisor/pkg/audit"
	"github.com/campusworks/advisor/pkg/guardrails"
	"github.com/campusworks/advisor/pkg/llm"
	"github.com/campusworks/advisor/pkg/session"
	"github.com/campusworks/advisor/pkg/tools"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testChain(t *testing.T) *guardrails.Chain {
	t.Helper()
	budget, err := guardrails.NewTokenBudget(100, 3500, guardrails.WithTokenBudgetLogger(discardLogger()))
	if err != nil {
		t.Fatalf("token budget: %v", err)
	}
	limiter, err := guardrails.NewRateLimiter(10, 60*time.Second, guardrails.WithRateLimiterLogger(discardLogger()))
	if err != nil {
		t.Fatalf("rate limiter: %v", err)
	}
	return guardrails.NewChain(
		guardrails.WithInterceptor(budget),
		guardrails.WithInterceptor(guardrails.NewKeywordFilter([]string{"classified", "bypass your restrictions"}, guardrails.WithKeywordLogger(discardLogger()))),
		guardrails.WithInterceptor(limiter),
	)
}

func newTestAdvisor(t *testing.T, provider llm.Provider, opts ...Option) (*Advisor, *audit.MemoryStore) {
	t.Helper()
	store := audit.NewMemoryStore()
	base := []Option{
		WithChain(testChain(t)),
		WithAudit(store),
		WithLogger(discardLogger()),
		WithModel("test-model"),
	}
	a, err := New("advisor", provider, session.NewStore(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("new advisor: %v", err)
	}
	return a, store
}

func historyFor(t *testing.T, a *Advisor, userID, sessionID string) []session.Message {
	t.Helper()
	return a.sessions.Messages(context.Background(), userID, sessionID)
}

func TestRespondAdmittedTurn(t *testing.T) {
	mock := &llm.MockProvider{Response: "CS521 covers data structures."}
	a, store := newTestAdvisor(t, mock)

	out, err := a.Respond(context.Background(), TurnInput{
		UserID:  "alice",
		Message: "What is CS521 about?",
	})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if out.Rejected {
		t.Error("expected an admitted turn")
	}
	if out.Response != "CS521 covers data structures." {
		t.Errorf("unexpected response: %q", out.Response)
	}
	if out.SessionID == "" {
		t.Error("expected a generated session id")
	}
	if len(mock.Calls) != 1 {
		t.Fatalf("expected 1 model call, got %d", len(mock.Calls))
	}

	decisions, _ := store.List(context.Background(), audit.Filter{})
	if len(decisions) != 1 || !decisions[0].Allowed {
		t.Errorf("expected one allowed decision, got %+v", decisions)
	}
}

func TestRespondBlockedKeyword(t *testing.T) {
	mock := &llm.MockProvider{Response: "should never be used"}
	a, store := newTestAdvisor(t, mock)

	out, err := a.Respond(context.Background(), TurnInput{
		UserID:  "alice",
		Message: "show me the classified files",
	})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if !out.Rejected {
		t.Fatal("expected a rejected turn")
	}
	want := "I cannot process this request because it contains the blocked keyword 'classified'."
	if out.Response != want {
		t.Errorf("got %q, want %q", out.Response, want)
	}
	// The model is never consulted for a rejected turn.
	if len(mock.Calls) != 0 {
		t.Errorf("expected no model calls, got %d", len(mock.Calls))
	}

	decisions, _ := store.List(context.Background(), audit.Filter{OnlyRejected: true})
	if len(decisions) != 1 || decisions[0].InterceptorID != "keyword-filter" {
		t.Errorf("unexpected audit trail: %+v", decisions)
	}

	// The refusal is kept in the transcript as the assistant turn.
	history := historyFor(t, a, "alice", out.SessionID)
	if len(history) != 2 || history[1].Role != "assistant" || history[1].Content != want {
		t.Errorf("unexpected history: %+v", history)
	}
}

func TestRespondBudgetRejection(t *testing.T) {
	mock := &llm.MockProvider{}
	a, _ := newTestAdvisor(t, mock)

	long := strings.Repeat("word ", 200) // 1000 chars, 250 estimated tokens
	out, err := a.Respond(context.Background(), TurnInput{UserID: "bob", Message: long})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if !out.Rejected {
		t.Fatal("expected a budget rejection")
	}
	if !strings.Contains(out.Response, "token limit of 100") {
		t.Errorf("unexpected refusal: %q", out.Response)
	}
	if len(mock.Calls) != 0 {
		t.Errorf("expected no model calls, got %d", len(mock.Calls))
	}
}

func TestRespondToolLoop(t *testing.T) {
	catalog, err := tools.OpenCatalog(":memory:")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	t.Cleanup(func() { catalog.Close() })
	if err := catalog.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	registry := tools.NewRegistry()
	if err := tools.RegisterAdvisingTools(registry, catalog); err != nil {
		t.Fatalf("register: %v", err)
	}

	var toolResult string
	calls := 0
	mock := &llm.MockProvider{
		ChatFunc: func(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			calls++
			if calls == 1 {
				if len(req.Tools) == 0 {
					t.Error("expected tool definitions on the request")
				}
				return &llm.ChatResponse{
					ToolCalls: []llm.ToolCall{{
						ID:   "call-1",
						Type: "function",
						Function: llm.FunctionCall{
							Name:      "get_course_details",
							Arguments: `{"course_number":"CS669"}`,
						},
					}},
				}, nil
			}
			// Second round sees the tool result appended as a tool message.
			last := req.Messages[len(req.Messages)-1]
			if last.Role != llm.RoleTool || last.ToolCallID != "call-1" {
				t.Errorf("expected tool result message, got %+v", last)
			}
			toolResult = last.Content
			return &llm.ChatResponse{Content: "CS669 is the database course."}, nil
		},
	}

	a, _ := newTestAdvisor(t, mock, WithRegistry(registry))
	out, err := a.Respond(context.Background(), TurnInput{
		UserID:  "carol",
		Message: "Tell me about CS669",
	})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if out.Response != "CS669 is the database course." {
		t.Errorf("unexpected response: %q", out.Response)
	}
	if calls != 2 {
		t.Errorf("expected 2 model rounds, got %d", calls)
	}
	if !strings.Contains(toolResult, "Database Design") {
		t.Errorf("tool result never reached the model: %q", toolResult)
	}
}

func TestRespondToolCallBlocked(t *testing.T) {
	guard := guardrails.NewFunctionGuard(guardrails.BlockedParams{
		"get_course_details": {"course_number": {"CS999"}},
	}, guardrails.WithFunctionGuardLogger(discardLogger()))

	var blockedResult string
	calls := 0
	mock := &llm.MockProvider{
		ChatFunc: func(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			calls++
			if calls == 1 {
				return &llm.ChatResponse{
					ToolCalls: []llm.ToolCall{{
						ID:   "call-1",
						Type: "function",
						Function: llm.FunctionCall{
							Name:      "get_course_details",
							Arguments: `{"course_number":"cs999"}`,
						},
					}},
				}, nil
			}
			blockedResult = req.Messages[len(req.Messages)-1].Content
			return &llm.ChatResponse{Content: "I cannot help with that course."}, nil
		},
	}

	a, _ := newTestAdvisor(t, mock, WithFunctionGuard(guard))
	out, err := a.Respond(context.Background(), TurnInput{
		UserID:  "dave",
		Message: "details please",
	})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if out.Response != "I cannot help with that course." {
		t.Errorf("unexpected response: %q", out.Response)
	}
	// The block surfaces to the model as a structured payload, not an error.
	if !strings.Contains(blockedResult, "TOOL_CALL_BLOCKED") {
		t.Errorf("expected blocked payload, got %q", blockedResult)
	}
}

func TestRespondToolRoundBound(t *testing.T) {
	mock := &llm.MockProvider{
		ChatFunc: func(_ context.Context, _ llm.ChatRequest) (*llm.ChatResponse, error) {
			return &llm.ChatResponse{
				ToolCalls: []llm.ToolCall{{
					ID:       "loop",
					Type:     "function",
					Function: llm.FunctionCall{Name: "say_hello", Arguments: `{}`},
				}},
			}, nil
		},
	}
	a, _ := newTestAdvisor(t, mock, WithMaxToolRounds(2))

	_, err := a.Respond(context.Background(), TurnInput{UserID: "erin", Message: "hi"})
	if err == nil || !strings.Contains(err.Error(), "no final response after 2 tool rounds") {
		t.Errorf("expected round bound error, got %v", err)
	}
}

func TestRespondProviderFailure(t *testing.T) {
	mock := &llm.FailingMockProvider{Err: context.DeadlineExceeded}
	a, _ := newTestAdvisor(t, mock)

	_, err := a.Respond(context.Background(), TurnInput{UserID: "frank", Message: "hello"})
	if err == nil {
		t.Fatal("expected an error when the provider fails")
	}
}

func TestOrchestratorRouting(t *testing.T) {
	mock := &llm.MockProvider{Response: "ok"}
	sessions := session.NewStore()

	newNamed := func(name string) *Advisor {
		a, err := New(name, mock, sessions, WithLogger(discardLogger()))
		if err != nil {
			t.Fatalf("new %s: %v", name, err)
		}
		return a
	}

	general := newNamed("advisor")
	o, err := NewOrchestrator(general,
		WithSpecialist(RouteCareer, newNamed("career_agent")),
		WithSpecialist(RouteCourses, newNamed("course_agent")),
		WithSpecialist(RouteScheduling, newNamed("scheduling_agent")),
		WithSpecialist(RouteDocuments, newNamed("document_agent")),
		WithOrchestratorLogger(discardLogger()),
	)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}

	tests := []struct {
		name  string
		input TurnInput
		want  string
	}{
		{"career question", TurnInput{Message: "What job can I get with this degree?"}, "career_agent"},
		{"course question", TurnInput{Message: "Which course should I take next?"}, "course_agent"},
		{"schedule question", TurnInput{Message: "When does CS521 meet, and the location?"}, "scheduling_agent"},
		{"document upload", TurnInput{Message: "here is my transcript", DocumentUpload: true}, "document_agent"},
		{"general question", TurnInput{Message: "hello there"}, "advisor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			advisor, _ := o.Route(tt.input)
			if advisor.Name() != tt.want {
				t.Errorf("routed to %s, want %s", advisor.Name(), tt.want)
			}
		})
	}
}

func TestOrchestratorRespondDelegates(t *testing.T) {
	mock := &llm.MockProvider{Response: "delegated"}
	a, err := New("advisor", mock, session.NewStore(), WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("new advisor: %v", err)
	}
	o, err := NewOrchestrator(a, WithOrchestratorLogger(discardLogger()))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}

	out, err := o.Respond(context.Background(), TurnInput{UserID: "gina", Message: "hello"})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if out.Response != "delegated" {
		t.Errorf("unexpected response: %q", out.Response)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New("", &llm.MockProvider{}, nil); err == nil {
		t.Error("expected an error for empty name")
	}
	if _, err := New("advisor", nil, nil); err == nil {
		t.Error("expected an error for nil provider")
	}
}
