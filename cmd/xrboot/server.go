package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"arc-framework/xrboot/internal/sequencer"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the xrboot status API server",
	Long: `Start the xrboot HTTP server on the configured port (default :8090).

Unless bootstrap.auto is false the bootstrap runs once at startup; otherwise
it waits for POST /api/v1/bootstrap. The server shuts down cleanly on
SIGTERM or SIGINT.`,
	RunE: runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer app.Close()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("xrboot server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if cfg.Bootstrap.Auto {
		go autoBootstrap(ctx)
	}

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped cleanly")
	return nil
}

// autoBootstrap runs the startup bootstrap. A shutdown signal cancels a probe
// that is still outstanding.
func autoBootstrap(ctx context.Context) {
	if cfg.Bootstrap.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Bootstrap.Timeout)
		defer cancel()
	}

	report, err := app.orchestrator.RunBootstrap(ctx)
	switch {
	case errors.Is(err, sequencer.ErrAlreadyInitialized):
		slog.Debug("startup bootstrap skipped, already requested over the API")
	case err != nil:
		slog.Error("startup bootstrap faulted", "err", err)
	default:
		slog.Info("startup bootstrap settled", "state", report.Result.State.String())
	}
}
