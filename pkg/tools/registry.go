// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/campusworks/advisor/pkg/errors"
	"github.com/campusworks/advisor/pkg/llm"
)

// Handler executes a tool call. The returned string is fed back to the model
// as the tool result, so handlers should return compact JSON.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Tool pairs a model-facing definition with its handler.
type Tool struct {
	Definition llm.Tool
	Handler    Handler
}

// Registry holds the tools available to the agents.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering the same name twice replaces the earlier
// entry.
func (r *Registry) Register(t Tool) error {
	name := t.Definition.Function.Name
	if name == "" {
		return errors.New(errors.CodeInvalidConfig, "tool definition has no name", nil)
	}
	if t.Handler == nil {
		return errors.New(errors.CodeInvalidConfig, "tool has no handler", nil).
			WithContext("tool", name)
	}
	r.mu.Lock()
	r.tools[name] = t
	r.mu.Unlock()
	return nil
}

// Definitions returns all tool definitions, sorted by name, for inclusion in
// a model request.
func (r *Registry) Definitions() []llm.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]llm.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition)
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Function.Name < defs[j].Function.Name
	})
	return defs
}

// Execute runs the named tool with already-decoded arguments.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", errors.New(errors.CodeNotFound,
			fmt.Sprintf("unknown tool '%s'", name), nil).WithContext("tool", name)
	}
	out, err := t.Handler(ctx, args)
	if err != nil {
		return "", errors.New(errors.CodeToolFailure,
			fmt.Sprintf("tool '%s' failed", name), err).WithContext("tool", name)
	}
	return out, nil
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", errors.New(errors.CodeInvalidInput,
			fmt.Sprintf("missing required argument '%s'", key), nil)
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.New(errors.CodeInvalidInput,
			fmt.Sprintf("argument '%s' must be a string", key), nil)
	}
	return s, nil
}

func toolDef(name, description string, properties map[string]any, required []string) llm.Tool {
	params := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		params["required"] = required
	}
	return llm.Tool{
		Type: "function",
		Function: llm.FunctionDef{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
	}
}

// RegisterAdvisingTools wires the catalog-backed advising tools into the
// registry.
func RegisterAdvisingTools(r *Registry, catalog *Catalog) error {
	defs := []Tool{
		{
			Definition: toolDef("get_all_courses",
				"Returns a JSON list of all course numbers and names in the current catalog. Call this whenever the user asks for any list, summary, or catalog of courses.",
				map[string]any{}, nil),
			Handler: func(ctx context.Context, _ map[string]any) (string, error) {
				courses, err := catalog.Courses(ctx)
				if err != nil {
					return "", err
				}
				b, err := json.Marshal(courses)
				if err != nil {
					return "", err
				}
				return string(b), nil
			},
		},
		{
			Definition: toolDef("get_course_details",
				"Returns the full description and prerequisites for a single course. Call this when the user asks about one specific course.",
				map[string]any{
					"course_number": map[string]any{
						"type":        "string",
						"description": "The course number, e.g. 'CS633'.",
					},
				}, []string{"course_number"}),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				number, err := stringArg(args, "course_number")
				if err != nil {
					return "", err
				}
				course, err := catalog.Course(ctx, number)
				if err != nil {
					if ae := errors.AsAdvisorError(err); ae != nil && ae.Code == errors.CodeNotFound {
						return fmt.Sprintf(`{"error":"course number '%s' was not found in the catalog"}`, number), nil
					}
					return "", err
				}
				b, err := json.Marshal(course)
				if err != nil {
					return "", err
				}
				return string(b), nil
			},
		},
		{
			Definition: toolDef("get_course_schedule",
				"Returns the weekly meeting schedule (day and location) for a course.",
				map[string]any{
					"course_number": map[string]any{
						"type":        "string",
						"description": "The course number, e.g. 'CS633'.",
					},
				}, []string{"course_number"}),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				number, err := stringArg(args, "course_number")
				if err != nil {
					return "", err
				}
				entries, err := catalog.Schedule(ctx, number)
				if err != nil {
					return "", err
				}
				b, err := json.Marshal(entries)
				if err != nil {
					return "", err
				}
				return string(b), nil
			},
		},
		{
			Definition: toolDef("search_faq",
				"Searches the course FAQ for entries matching a term. Call this for questions about policies, office hours, or exams.",
				map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "A word or phrase to look for.",
					},
				}, []string{"query"}),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				term, err := stringArg(args, "query")
				if err != nil {
					return "", err
				}
				entries, err := catalog.SearchFAQ(ctx, term)
				if err != nil {
					return "", err
				}
				if len(entries) == 0 {
					return `{"results":[],"message":"no FAQ entries matched"}`, nil
				}
				b, err := json.Marshal(entries)
				if err != nil {
					return "", err
				}
				return string(b), nil
			},
		},
		{
			Definition: toolDef("say_hello",
				"Greets the user by name at the start of a conversation.",
				map[string]any{
					"name": map[string]any{
						"type":        "string",
						"description": "The user's name, if they gave one.",
					},
				}, nil),
			Handler: func(_ context.Context, args map[string]any) (string, error) {
				if name, err := stringArg(args, "name"); err == nil && name != "" {
					return fmt.Sprintf("Hello, %s! Pleasure to meet you. What can I assist you with today?", name), nil
				}
				return "Hello there! What can I assist you with today?", nil
			},
		},
		{
			Definition: toolDef("say_goodbye",
				"Closes the conversation when the user says goodbye.",
				map[string]any{}, nil),
			Handler: func(_ context.Context, _ map[string]any) (string, error) {
				return "Goodbye! I hope this conversation was insightful. If you would like to speak again, you'll need to provide me with all your background information again.", nil
			},
		},
	}

	for _, t := range defs {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}
