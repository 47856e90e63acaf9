package sequencer

import (
	"context"
	"log/slog"
)

// Diagnostic messages. Exactly one of them is emitted per run that settles.
const (
	MsgInitOK     = "init ok"
	MsgInitFailed = "init failed"
)

// Diagnostics is the one-way sink for bootstrap notices.
type Diagnostics interface {
	Emit(ctx context.Context, msg string)
}

// DiagnosticsFunc adapts a function to Diagnostics.
type DiagnosticsFunc func(ctx context.Context, msg string)

func (f DiagnosticsFunc) Emit(ctx context.Context, msg string) { f(ctx, msg) }

// LogDiagnostics writes each notice through a slog.Logger. A nil Logger uses
// slog.Default at emit time.
type LogDiagnostics struct {
	Logger *slog.Logger
}

func (d LogDiagnostics) Emit(ctx context.Context, msg string) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if msg == MsgInitFailed {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, msg, "component", "sequencer")
}
