package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"arc-framework/xrboot/internal/orchestrator"
	"arc-framework/xrboot/internal/sequencer"
)

// orchestratorService is the subset of *orchestrator.Orchestrator used by the
// HTTP handlers. Declaring it as an interface allows test doubles to be injected.
type orchestratorService interface {
	RunBootstrap(ctx context.Context) (*orchestrator.BootstrapReport, error)
	RunDeepHealth(ctx context.Context) map[string]orchestrator.ProbeResult
	Status() orchestrator.BootstrapReport
	State() sequencer.State
	IsReady() bool
	IsBootstrapInProgress() bool
}

// Handler holds the dependencies shared across all HTTP handlers.
type Handler struct {
	orchestrator     orchestratorService
	bootstrapTimeout time.Duration
}

// Bootstrap handles POST /api/v1/bootstrap.
// A sequencer runs once per process: 202 starts the run in the background
// when idle, 409 reports that it is in progress or already settled.
func (h *Handler) Bootstrap(c *gin.Context) {
	if h.orchestrator.IsBootstrapInProgress() {
		c.JSON(http.StatusConflict, gin.H{"status": "in-progress"})
		return
	}
	if state := h.orchestrator.State(); state != sequencer.StateIdle {
		c.JSON(http.StatusConflict, gin.H{"status": "completed", "state": state})
		return
	}

	// The run outlives the request but keeps its trace context.
	ctx := context.WithoutCancel(c.Request.Context())
	go h.runBootstrap(ctx)

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (h *Handler) runBootstrap(ctx context.Context) {
	if h.bootstrapTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.bootstrapTimeout)
		defer cancel()
	}

	_, err := h.orchestrator.RunBootstrap(ctx)
	switch {
	case errors.Is(err, sequencer.ErrAlreadyInitialized):
		slog.DebugContext(ctx, "bootstrap request lost race with another run")
	case err != nil:
		slog.ErrorContext(ctx, "bootstrap faulted", "err", err)
	}
}

// Status handles GET /api/v1/status.
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.orchestrator.Status())
}

// Health handles GET /health.
// It always returns 200; this is the liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"mode":   "shallow",
	})
}

// DeepHealth handles GET /health/deep.
// It probes every configured reporter backend and returns 200 only when every
// probe is OK.
func (h *Handler) DeepHealth(c *gin.Context) {
	probes := h.orchestrator.RunDeepHealth(c.Request.Context())

	allOK := true
	for _, p := range probes {
		if !p.OK {
			allOK = false
			break
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !allOK {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":       status,
		"dependencies": probes,
	})
}

// Ready handles GET /ready.
// It returns 200 only once the runtime has been started; 503 otherwise.
func (h *Handler) Ready(c *gin.Context) {
	state := h.orchestrator.State()
	if h.orchestrator.IsReady() {
		c.JSON(http.StatusOK, gin.H{"ready": true, "state": state})
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "state": state})
}
