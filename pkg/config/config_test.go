// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected default port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Guardrails.MaxTokens != 100 {
		t.Errorf("expected default direct ceiling 100, got %d", cfg.Guardrails.MaxTokens)
	}
	if cfg.Guardrails.DocumentMaxTokens != 3500 {
		t.Errorf("expected default document ceiling 3500, got %d", cfg.Guardrails.DocumentMaxTokens)
	}
	if cfg.Guardrails.MaxRequests != 10 || cfg.Guardrails.WindowSeconds != 60 {
		t.Errorf("expected default rate limit 10/60s, got %d/%ds",
			cfg.Guardrails.MaxRequests, cfg.Guardrails.WindowSeconds)
	}
	if len(cfg.Guardrails.BlockedWords) == 0 {
		t.Error("expected a default blocked-word list")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "advisor.yaml")
	content := `
server:
  port: 9100
guardrails:
  max_tokens: 200
  document_max_tokens: 5000
  blocked_words: [classified]
llm:
  provider: mock
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("expected port 9100, got %d", cfg.Server.Port)
	}
	if cfg.Guardrails.MaxTokens != 200 {
		t.Errorf("expected direct ceiling 200, got %d", cfg.Guardrails.MaxTokens)
	}
	if len(cfg.Guardrails.BlockedWords) != 1 || cfg.Guardrails.BlockedWords[0] != "classified" {
		t.Errorf("expected file to replace blocked words, got %v", cfg.Guardrails.BlockedWords)
	}
	if cfg.LLM.Provider != "mock" {
		t.Errorf("expected provider mock, got %q", cfg.LLM.Provider)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ADVISOR_GUARDRAILS_MAX_REQUESTS", "3")
	t.Setenv("ADVISOR_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Guardrails.MaxRequests != 3 {
		t.Errorf("expected env override quota 3, got %d", cfg.Guardrails.MaxRequests)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected env override level debug, got %q", cfg.Log.Level)
	}
}

func TestValidateRejectsBadGuardrails(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative direct ceiling", func(c *Config) { c.Guardrails.MaxTokens = -1 }},
		{"negative document ceiling", func(c *Config) { c.Guardrails.DocumentMaxTokens = -1 }},
		{"negative quota", func(c *Config) { c.Guardrails.MaxRequests = -5 }},
		{"zero window", func(c *Config) { c.Guardrails.WindowSeconds = 0 }},
		{"bad port", func(c *Config) { c.Server.Port = -1 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestLoadToolPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := `
search_faq:
  query: [classified, confidential]
get_schedule:
  term: [restricted]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	policy, err := LoadToolPolicy(path)
	if err != nil {
		t.Fatalf("LoadToolPolicy: %v", err)
	}
	if len(policy["search_faq"]["query"]) != 2 {
		t.Errorf("expected two blocked values for search_faq.query, got %v", policy["search_faq"])
	}
	if policy["get_schedule"]["term"][0] != "restricted" {
		t.Errorf("unexpected policy for get_schedule: %v", policy["get_schedule"])
	}
}

func TestLoadToolPolicyEmptyPath(t *testing.T) {
	policy, err := LoadToolPolicy("")
	if err != nil {
		t.Fatalf("LoadToolPolicy: %v", err)
	}
	if len(policy) != 0 {
		t.Errorf("expected empty policy, got %v", policy)
	}
}

func TestLoadToolPolicyMissingFile(t *testing.T) {
	if _, err := LoadToolPolicy("/does/not/exist.yaml"); err == nil {
		t.Error("expected an error for a missing policy file")
	}
}
