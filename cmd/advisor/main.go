// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

// Command advisor runs the academic advising assistant: an HTTP chat API by
// default, or the tool registry over MCP stdio with the "mcp" subcommand.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campusworks/advisor/pkg/agent"
	"github.com/campusworks/advisor/pkg/audit"
	"github.com/campusworks/advisor/pkg/config"
	"github.com/campusworks/advisor/pkg/guardrails"
	"github.com/campusworks/advisor/pkg/httpapi"
	"github.com/campusworks/advisor/pkg/llm"
	advisormcp "github.com/campusworks/advisor/pkg/mcp"
	"github.com/campusworks/advisor/pkg/session"
	"github.com/campusworks/advisor/pkg/telemetry"
	"github.com/campusworks/advisor/pkg/tools"
)

const version = "0.3.0"

const advisorInstructions = `You are an academic advisor for the computer science graduate program.
Answer questions about courses, schedules, careers, and program policies.
Use the available tools for any factual claims about the catalog. If a tool
reports that something was blocked or not found, explain that to the student
politely instead of guessing.`

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	seed := flag.Bool("seed", false, "seed the catalog with demo data and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, flag.Arg(0), *seed); err != nil {
		logger.Error("advisor.fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, subcommand string, seed bool) error {
	catalog, err := tools.OpenCatalog(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer catalog.Close()

	if seed {
		if err := catalog.Seed(ctx); err != nil {
			return err
		}
		logger.Info("advisor.catalog.seeded", slog.String("path", cfg.Database.Path))
		return nil
	}

	registry := tools.NewRegistry()
	if err := tools.RegisterAdvisingTools(registry, catalog); err != nil {
		return err
	}

	// MCP mode publishes the registry over stdio and never touches the
	// model or the HTTP stack.
	if subcommand == "mcp" {
		logger.Info("advisor.mcp.serving")
		return advisormcp.NewServer("advisor-tools", version, registry).ServeStdio()
	}

	shutdown, err := telemetry.InitWithConfig("advisor", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("advisor.telemetry.shutdown_failed", slog.String("error", err.Error()))
		}
	}()

	chain, err := buildChain(cfg, logger)
	if err != nil {
		return err
	}

	policy, err := config.LoadToolPolicy(cfg.Guardrails.ToolPolicyFile)
	if err != nil {
		return err
	}
	guard := guardrails.NewFunctionGuard(policy, guardrails.WithFunctionGuardLogger(logger))

	auditStore, err := audit.NewSQLiteStore(catalog.DB())
	if err != nil {
		return err
	}

	metrics, err := telemetry.NewAdmissionMetrics()
	if err != nil {
		return err
	}

	provider := buildProvider(cfg)
	sessions := session.NewStore()

	newAdvisor := func(name string) (*agent.Advisor, error) {
		return agent.New(name, provider, sessions,
			agent.WithInstructions(advisorInstructions),
			agent.WithModel(cfg.LLM.Model),
			agent.WithChain(chain),
			agent.WithFunctionGuard(guard),
			agent.WithRegistry(registry),
			agent.WithAudit(auditStore),
			agent.WithMetrics(metrics),
			agent.WithLogger(logger),
		)
	}

	general, err := newAdvisor("advisor")
	if err != nil {
		return err
	}
	opts := []agent.OrchestratorOption{agent.WithOrchestratorLogger(logger)}
	for _, route := range []string{agent.RouteCareer, agent.RouteCourses, agent.RouteScheduling, agent.RouteDocuments} {
		specialist, err := newAdvisor(route + "_agent")
		if err != nil {
			return err
		}
		opts = append(opts, agent.WithSpecialist(route, specialist))
	}
	orchestrator, err := agent.NewOrchestrator(general, opts...)
	if err != nil {
		return err
	}

	api := httpapi.New(orchestrator, sessions, logger)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("advisor.http.listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("advisor.http.draining")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildChain assembles the admission chain in its canonical order: token
// budget, then keyword filter, then rate limiter, so oversized or blocked
// requests never consume quota.
func buildChain(cfg *config.Config, logger *slog.Logger) (*guardrails.Chain, error) {
	g := cfg.Guardrails

	budget, err := guardrails.NewTokenBudget(g.MaxTokens, g.DocumentMaxTokens,
		guardrails.WithTokenBudgetLogger(logger))
	if err != nil {
		return nil, err
	}
	filter := guardrails.NewKeywordFilter(g.BlockedWords,
		guardrails.WithKeywordLogger(logger))
	limiter, err := guardrails.NewRateLimiter(g.MaxRequests,
		time.Duration(g.WindowSeconds)*time.Second,
		guardrails.WithRateLimiterLogger(logger))
	if err != nil {
		return nil, err
	}

	return guardrails.NewChain(
		guardrails.WithInterceptors(budget, filter, limiter),
	), nil
}

func buildProvider(cfg *config.Config) llm.Provider {
	if cfg.LLM.Provider == "mock" {
		return &llm.MockProvider{Response: "This is a canned advising reply."}
	}
	ollama := llm.NewOllama(cfg.LLM.BaseURL)
	return llm.NewRetryingProvider(ollama, llm.DefaultRetryConfig(), slog.Default())
}
