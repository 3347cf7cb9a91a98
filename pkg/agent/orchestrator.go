// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/campusworks/advisor/pkg/errors"
)

// Route names for the built-in specialists.
const (
	RouteCareer     = "career"
	RouteCourses    = "courses"
	RouteScheduling = "scheduling"
	RouteDocuments  = "documents"
)

// Orchestrator sends each turn to the specialist best suited for it and
// falls back to the general advisor. All specialists are expected to share
// one admission chain and one session store so history and quotas are
// consistent no matter where a turn lands.
type Orchestrator struct {
	specialists map[string]*Advisor
	fallback    *Advisor
	logger      *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithSpecialist registers a specialist under a route name.
func WithSpecialist(route string, advisor *Advisor) OrchestratorOption {
	return func(o *Orchestrator) { o.specialists[route] = advisor }
}

// WithOrchestratorLogger sets the structured logger.
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = logger }
}

// NewOrchestrator creates an orchestrator with a required fallback advisor.
func NewOrchestrator(fallback *Advisor, opts ...OrchestratorOption) (*Orchestrator, error) {
	if fallback == nil {
		return nil, errors.New(errors.CodeInvalidConfig, "fallback advisor is required", nil)
	}
	o := &Orchestrator{
		specialists: make(map[string]*Advisor),
		fallback:    fallback,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// routeKeywords maps trigger words to routes. First match in declaration
// order of the routes slice wins.
var routeKeywords = []struct {
	route string
	words []string
}{
	{RouteScheduling, []string{"schedule", "when does", "what time", "meets", "location", "session"}},
	{RouteCareer, []string{"career", "job", "resume", "internship", "salary"}},
	{RouteCourses, []string{"course", "class", "prerequisite", "catalog", "syllabus", "faq"}},
}

// Route picks the specialist for a turn. Document uploads always go to the
// documents specialist when one is registered.
func (o *Orchestrator) Route(in TurnInput) (*Advisor, string) {
	if in.DocumentUpload {
		if a, ok := o.specialists[RouteDocuments]; ok {
			return a, RouteDocuments
		}
	}
	text := strings.ToLower(in.Message)
	for _, rk := range routeKeywords {
		for _, w := range rk.words {
			if strings.Contains(text, w) {
				if a, ok := o.specialists[rk.route]; ok {
					return a, rk.route
				}
			}
		}
	}
	return o.fallback, o.fallback.Name()
}

// Respond routes the turn and delegates to the chosen advisor.
func (o *Orchestrator) Respond(ctx context.Context, in TurnInput) (*TurnOutput, error) {
	advisor, route := o.Route(in)
	o.logger.Debug("orchestrator.routed",
		slog.String("route", route),
		slog.String("agent", advisor.Name()),
		slog.Bool("document_upload", in.DocumentUpload),
	)
	return advisor.Respond(ctx, in)
}
