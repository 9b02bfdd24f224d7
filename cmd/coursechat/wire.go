// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/learnit-dev/coursechat/internal/agent"
	"github.com/learnit-dev/coursechat/internal/catalog"
	"github.com/learnit-dev/coursechat/internal/config"
	"github.com/learnit-dev/coursechat/internal/provider"
	anthropicprov "github.com/learnit-dev/coursechat/internal/provider/anthropic"
	googleprov "github.com/learnit-dev/coursechat/internal/provider/google"
	openaiprov "github.com/learnit-dev/coursechat/internal/provider/openai"
	"github.com/learnit-dev/coursechat/internal/server"
	"github.com/learnit-dev/coursechat/internal/store"
	"github.com/learnit-dev/coursechat/internal/store/sqlite"
	ccerr "github.com/learnit-dev/coursechat/pkg/errors"
)

// Orchestrator holds all wired subsystems and manages their lifecycle.
type Orchestrator struct {
	Server           *server.Server
	Sessions         *agent.SessionManager
	ProviderRegistry *provider.Registry
	Catalog          *catalog.Client
	Audit            *sqlite.AuditStore
	Loop             *agent.Loop

	sessionStore *store.MemorySessionStore
}

// WireOrchestrator creates all subsystems and wires them together.
func WireOrchestrator(ctx context.Context, cfg *config.Config) (*Orchestrator, error) {
	// 1. Session store and per-session turn serialization.
	ss := store.NewMemorySessionStore()
	sessions := agent.NewSessionManager(ss)

	// 2. Optional SQLite audit trail.
	var audit *sqlite.AuditStore
	if cfg.Storage.AuditPath != "" {
		var err error
		audit, err = sqlite.NewAuditStore(cfg.Storage.AuditPath)
		if err != nil {
			return nil, ccerr.Wrapf(err, ccerr.CodeCLISetupFailure, "opening audit store %s", cfg.Storage.AuditPath)
		}
	}
	closeAudit := func() {
		if audit != nil {
			_ = audit.Close()
		}
	}

	// 3. Course catalog client.
	cat, err := catalog.New(catalog.Config{
		BaseURL:      cfg.Catalog.BaseURL,
		WebBaseURL:   cfg.Catalog.WebBaseURL,
		Timeout:      cfg.Catalog.Timeout,
		MaxRetries:   cfg.Catalog.MaxRetries,
		RetryBackoff: cfg.Catalog.RetryBackoff,
	})
	if err != nil {
		closeAudit()
		return nil, ccerr.Wrapf(err, ccerr.CodeCLISetupFailure, "creating catalog client")
	}
	catalogHealthy := probeCatalog(ctx, cat, cfg.Catalog.BaseURL)

	// 4. Provider registry with default and failover chain.
	provReg := provider.NewRegistry()
	registerBuiltinProviders(cfg, provReg)

	if cfg.Models.Default != "" {
		if err := provReg.SetDefault(cfg.Models.Default); err != nil {
			closeAudit()
			return nil, ccerr.Wrapf(err, ccerr.CodeCLISetupFailure, "setting default model: %s", cfg.Models.Default)
		}
	}
	if len(cfg.Models.Failover) > 0 {
		if err := provReg.SetFailover(cfg.Models.Failover); err != nil {
			closeAudit()
			return nil, ccerr.Wrapf(err, ccerr.CodeCLISetupFailure, "setting failover chain")
		}
	}

	// 5. Tool registry, dispatcher, pagination tracker, agent loop.
	toolReg, err := agent.NewRegistry()
	if err != nil {
		closeAudit()
		_ = provReg.Close()
		return nil, ccerr.Wrapf(err, ccerr.CodeCLISetupFailure, "compiling tool registry")
	}

	var auditStore store.AuditStore
	if audit != nil {
		auditStore = audit
	}
	dispatcher := agent.NewDispatcher(toolReg, cat, auditStore, cfg.Catalog.Timeout)
	tracker := agent.NewTracker(ss)

	loop := agent.NewLoop(agent.LoopConfig{
		Sessions:            sessions,
		Router:              provReg,
		Registry:            toolReg,
		Dispatcher:          dispatcher,
		Tracker:             tracker,
		Audit:               auditStore,
		Temperature:         cfg.Models.Temperature,
		MaxTokens:           cfg.Models.MaxTokens,
		MaxRounds:           cfg.Sessions.MaxToolRounds,
		MaxToolCallsPerTurn: cfg.Sessions.MaxToolCallsPerTurn,
		ActiveWindow:        cfg.Sessions.ActiveWindow,
	})

	// 6. HTTP server.
	services, err := server.NewServices(loop, sessions)
	if err != nil {
		closeAudit()
		_ = provReg.Close()
		return nil, ccerr.Wrapf(err, ccerr.CodeCLISetupFailure, "creating services")
	}

	srv, err := server.New(server.Config{
		ListenAddr:       cfg.Networking.Listen,
		CORSOrigins:      cfg.Networking.CORSOrigins,
		Model:            cfg.Models.Default,
		CourseAPIBaseURL: cfg.Catalog.BaseURL,
		Store:            cfg.Storage.Backend,
		CatalogHealthy:   catalogHealthy,
	})
	if err != nil {
		closeAudit()
		_ = provReg.Close()
		return nil, ccerr.Wrapf(err, ccerr.CodeCLISetupFailure, "creating server")
	}
	srv.RegisterServices(services)

	sessions.StartEviction(cfg.Sessions.IdleTTL, cfg.Sessions.EvictInterval)

	return &Orchestrator{
		Server:           srv,
		Sessions:         sessions,
		ProviderRegistry: provReg,
		Catalog:          cat,
		Audit:            audit,
		Loop:             loop,
		sessionStore:     ss,
	}, nil
}

// Start runs the HTTP server and blocks until the context is cancelled.
func (o *Orchestrator) Start(ctx context.Context) error {
	return o.Server.Start(ctx)
}

// Close releases all resources held by the orchestrator.
func (o *Orchestrator) Close() error {
	o.Sessions.Stop()

	var errs []error
	if err := o.ProviderRegistry.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := o.sessionStore.Close(); err != nil {
		errs = append(errs, err)
	}
	if o.Audit != nil {
		if err := o.Audit.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// probeCatalog checks the catalog API is reachable at startup. Failure is
// not fatal; the orchestrator still starts and tool calls retry on demand,
// but the health endpoint reports the failed probe.
func probeCatalog(ctx context.Context, cat *catalog.Client, baseURL string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := cat.Categories(probeCtx); err != nil {
		slog.Warn("course catalog unreachable at startup", "base_url", baseURL, "error", err)
		return false
	}
	slog.Info("course catalog reachable", "base_url", baseURL)
	return true
}

// providerFactory builds a provider.Provider from a ProviderConfig.
type providerFactory func(config.ProviderConfig) (provider.Provider, error)

// builtinProviderFactories maps provider names to their constructors.
// Declared as a variable so tests can inject failing factories.
var builtinProviderFactories = map[string]providerFactory{
	"openai": func(pc config.ProviderConfig) (provider.Provider, error) {
		return openaiprov.New(openaiprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
	"anthropic": func(pc config.ProviderConfig) (provider.Provider, error) {
		return anthropicprov.New(anthropicprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
	"google": func(pc config.ProviderConfig) (provider.Provider, error) {
		return googleprov.New(googleprov.Config{APIKey: pc.APIKey})
	},
}

// registerBuiltinProviders iterates configured providers and registers
// matching built-in implementations. Unknown names or empty API keys are
// logged and skipped; neither is fatal at startup.
func registerBuiltinProviders(cfg *config.Config, reg *provider.Registry) {
	for name, pc := range cfg.Providers {
		if pc.APIKey == "" {
			slog.Warn("skipping provider with empty API key", "provider", name)
			continue
		}
		factory, ok := builtinProviderFactories[name]
		if !ok {
			slog.Warn("unknown provider in config, skipping", "provider", name)
			continue
		}
		p, err := factory(pc)
		if err != nil {
			slog.Warn("failed to create provider", "provider", name, "error", err)
			continue
		}
		reg.Register(name, p)
		slog.Info("registered provider", "provider", name)
	}
}
