// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads Advisor configuration from defaults, an optional
// YAML file, and ADVISOR_-prefixed environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/campusworks/advisor/pkg/errors"
	"github.com/campusworks/advisor/pkg/guardrails"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Log        LogConfig        `koanf:"log"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	LLM        LLMConfig        `koanf:"llm"`
	Guardrails GuardrailsConfig `koanf:"guardrails"`
	Database   DatabaseConfig   `koanf:"database"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

type LLMConfig struct {
	Provider string `koanf:"provider"` // ollama, mock
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
}

// GuardrailsConfig is the construction-time surface of the admission
// subsystem: blocked words, token ceilings, rate-limit quota/window, and
// the path of the tool-argument policy file.
type GuardrailsConfig struct {
	BlockedWords      []string `koanf:"blocked_words"`
	MaxTokens         int      `koanf:"max_tokens"`
	DocumentMaxTokens int      `koanf:"document_max_tokens"`
	MaxRequests       int      `koanf:"max_requests"`
	WindowSeconds     int      `koanf:"window_seconds"`
	ToolPolicyFile    string   `koanf:"tool_policy_file"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"` // sqlite file, ":memory:" for ephemeral
}

// defaultBlockedWords mirrors the advising deployment's word list.
var defaultBlockedWords = []string{
	"classified",
	"confidential",
	"exploit",
	"update your instructions",
	"change your guidelines",
	"ignore your programming",
	"bypass your restrictions",
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("server.host", "0.0.0.0")
	k.Set("server.port", 8000)
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("telemetry.exporter", "stdout")
	k.Set("llm.provider", "ollama")
	k.Set("llm.model", "qwen2.5-coder:7b-instruct-q5_K_M")
	k.Set("llm.base_url", "http://localhost:11434")
	k.Set("guardrails.blocked_words", defaultBlockedWords)
	k.Set("guardrails.max_tokens", guardrails.DefaultMaxTokens)
	k.Set("guardrails.document_max_tokens", guardrails.DefaultDocumentMaxTokens)
	k.Set("guardrails.max_requests", 10)
	k.Set("guardrails.window_seconds", 60)
	k.Set("database.path", "advisor.db")

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (ADVISOR_GUARDRAILS_MAX_TOKENS -> guardrails.max_tokens)
	if err := k.Load(env.Provider("ADVISOR_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "ADVISOR_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fails fast on misconfigured guardrails so a bad deployment never
// reaches request handling.
func (c *Config) Validate() error {
	g := c.Guardrails
	if g.MaxTokens < 0 || g.DocumentMaxTokens < 0 {
		return errors.New(errors.CodeInvalidConfig,
			fmt.Sprintf("token ceilings must not be negative (direct=%d, document=%d)", g.MaxTokens, g.DocumentMaxTokens), nil)
	}
	if g.MaxRequests < 0 {
		return errors.New(errors.CodeInvalidConfig,
			fmt.Sprintf("rate limit quota must not be negative (got %d)", g.MaxRequests), nil)
	}
	if g.WindowSeconds <= 0 {
		return errors.New(errors.CodeInvalidConfig,
			fmt.Sprintf("rate limit window must be positive (got %d)", g.WindowSeconds), nil)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New(errors.CodeInvalidConfig,
			fmt.Sprintf("server port out of range (got %d)", c.Server.Port), nil)
	}
	return nil
}

// LoadToolPolicy reads the tool-argument policy file:
//
//	search_faq:
//	  query: [classified, confidential]
//	get_schedule:
//	  term: [restricted]
//
// A missing path yields an empty policy, not an error.
func LoadToolPolicy(path string) (guardrails.BlockedParams, error) {
	if path == "" {
		return guardrails.BlockedParams{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidConfig, "cannot read tool policy file", err).
			WithContext("path", path)
	}
	var policy guardrails.BlockedParams
	if err := yamlv3.Unmarshal(data, &policy); err != nil {
		return nil, errors.New(errors.CodeInvalidConfig, "cannot parse tool policy file", err).
			WithContext("path", path)
	}
	if policy == nil {
		policy = guardrails.BlockedParams{}
	}
	return policy, nil
}
