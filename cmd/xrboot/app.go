package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"arc-framework/xrboot/internal/api"
	"arc-framework/xrboot/internal/clients"
	"arc-framework/xrboot/internal/config"
	"arc-framework/xrboot/internal/orchestrator"
	"arc-framework/xrboot/internal/sequencer"
	"arc-framework/xrboot/internal/telemetry"
	"arc-framework/xrboot/internal/xr"
)

// AppContext holds all constructed application dependencies shared across
// subcommands. It is built once in PersistentPreRunE and referenced by
// server.go and bootstrap.go.
type AppContext struct {
	cfg          *config.Config
	otelProvider *telemetry.Provider
	handle       *xr.Handle
	sequencer    *sequencer.Sequencer
	reporters    []orchestrator.Reporter
	orchestrator *orchestrator.Orchestrator
	router       *api.Router
}

// buildAppContext constructs all application dependencies from cfg:
//  1. Initialises the OTEL provider (best-effort, non-fatal)
//  2. Builds the XR runtime module and its handle
//  3. Wraps the handle in a sequencer
//  4. Creates one reporter per enabled backend, each with its own breaker
//  5. Creates the orchestrator and the HTTP router
func buildAppContext(ctx context.Context, cfg *config.Config) (*AppContext, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	app := &AppContext{cfg: cfg}

	// OTEL is best-effort: a missing collector must never block startup.
	tp, err := telemetry.InitProvider(ctx, cfg.Telemetry)
	switch {
	case errors.Is(err, telemetry.ErrDisabled):
		slog.Info("OTEL telemetry disabled (no endpoint configured)")
	case err != nil:
		slog.Warn("OTEL provider init failed, telemetry disabled", "err", err)
	default:
		app.otelProvider = tp
	}

	module, err := xr.NewModule(cfg.Runtime, clients.NewCircuitBreaker("xr-runtime"))
	if err != nil {
		return nil, fmt.Errorf("building xr runtime: %w", err)
	}
	app.handle = xr.NewHandle(module)

	app.sequencer = sequencer.New(app.handle,
		sequencer.WithInitTimeout(cfg.Bootstrap.InitTimeout),
		sequencer.WithDiagnostics(sequencer.LogDiagnostics{}),
	)

	// One circuit breaker per reporter so each backend trips independently.
	if cfg.Report.Redis.Enabled {
		app.reporters = append(app.reporters,
			clients.NewRedisReporter(cfg.Report.Redis, clients.NewCircuitBreaker("redis")))
	}
	if cfg.Report.NATS.Enabled {
		app.reporters = append(app.reporters,
			clients.NewNATSReporter(cfg.Report.NATS, clients.NewCircuitBreaker("nats")))
	}
	if cfg.Report.Postgres.Enabled {
		app.reporters = append(app.reporters,
			clients.NewPostgresReporter(cfg.Report.Postgres, clients.NewCircuitBreaker("postgres")))
	}

	app.orchestrator = orchestrator.New(app.sequencer, app.reporters...)
	app.router = api.NewRouter(app.orchestrator, cfg.Bootstrap.Timeout)

	slog.Info("xrboot configured",
		"handle", app.handle.ID(),
		"driver", cfg.Runtime.Driver,
		"mode", cfg.Runtime.Session.Mode,
		"reporters", len(app.reporters),
	)
	return app, nil
}

// Close releases the runtime handle and flushes telemetry.
func (a *AppContext) Close() {
	if err := a.handle.Close(); err != nil {
		slog.Warn("closing xr runtime", "err", err)
	}
	if a.otelProvider != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelProvider.Shutdown(shutCtx); err != nil {
			slog.Warn("OTEL shutdown error", "err", err)
		}
	}
}
