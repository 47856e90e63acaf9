package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"arc-framework/xrboot/internal/orchestrator"
	"arc-framework/xrboot/internal/sequencer"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Run one-shot XR runtime bootstrap and exit",
	Long: `Bootstrap issues a single initialize to the configured XR runtime, waits
for it to settle, and starts the runtime when the device supports immersive
sessions.

The command prints the JSON report to stdout. It exits 0 when the probe
settles (supported or not) and non-zero when initialization faults.`,
	RunE: runBootstrap,
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	defer app.Close()

	ctx := context.Background()
	if cfg.Bootstrap.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Bootstrap.Timeout)
		defer cancel()
	}

	slog.InfoContext(ctx, "starting bootstrap", "handle", app.handle.ID())

	report, err := app.orchestrator.RunBootstrap(ctx)
	if report != nil {
		printReport(report)
	}
	if err != nil {
		return fmt.Errorf("bootstrap faulted: %w", err)
	}

	if report.Result.State == sequencer.StateFailed {
		slog.WarnContext(ctx, "bootstrap completed: immersive session unsupported")
		return nil
	}
	slog.InfoContext(ctx, "bootstrap completed, runtime started")
	return nil
}

func printReport(report *orchestrator.BootstrapReport) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintf(os.Stdout, `{"state":%q}`+"\n", report.Result.State.String())
	}
}
