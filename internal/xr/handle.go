// Package xr defines the contract between the bootstrap sequencer and the
// immersive runtime module, plus the drivers that implement it.
package xr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrAlreadyInitialized is returned when Initialize is called a second time
// on the same Handle.
var ErrAlreadyInitialized = errors.New("runtime handle already initialized")

// Module is an opaque runtime that can probe the host for XR support and run
// a session. Initialize blocks until the probe settles; a non-nil error means
// the probe settled abnormally. Start must return promptly: the caller neither
// waits for the session nor observes its failures.
type Module interface {
	Initialize(ctx context.Context) (Outcome, error)
	Start(ctx context.Context)
}

// Handle owns exactly one Module for the lifetime of the process. It permits a
// single Initialize and refuses Start unless that Initialize reported
// OutcomeSupported.
type Handle struct {
	id     uuid.UUID
	module Module

	initialized atomic.Bool
	supported   atomic.Bool
	started     atomic.Bool
	closeOnce   sync.Once
}

// NewHandle wraps m in a new Handle with a fresh identifier.
func NewHandle(m Module) *Handle {
	return &Handle{
		id:     uuid.New(),
		module: m,
	}
}

// ID returns the handle identifier used in logs and reports.
func (h *Handle) ID() string {
	return h.id.String()
}

// Initialize forwards to the module's probe exactly once.
func (h *Handle) Initialize(ctx context.Context) (Outcome, error) {
	if !h.initialized.CompareAndSwap(false, true) {
		return OutcomeUnsupported, ErrAlreadyInitialized
	}

	slog.InfoContext(ctx, "starting xr runtime", "handle", h.ID())

	outcome, err := h.module.Initialize(ctx)
	if err != nil {
		return OutcomeUnsupported, err
	}
	h.supported.Store(outcome.Supported())
	return outcome, nil
}

// Start hands control to the module's session. Calls after the first, or
// before a supported outcome, are ignored.
func (h *Handle) Start(ctx context.Context) {
	if !h.supported.Load() {
		slog.WarnContext(ctx, "xr start ignored: no supported session", "handle", h.ID())
		return
	}
	if !h.started.CompareAndSwap(false, true) {
		return
	}
	h.module.Start(ctx)
}

// Close releases the module if it holds resources. Safe to call repeatedly.
func (h *Handle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		if c, ok := h.module.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}
