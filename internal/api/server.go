package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"arc-framework/xrboot/internal/telemetry"
)

// Router wraps a configured Gin engine and exposes it as an http.Handler.
type Router struct {
	engine *gin.Engine
}

// NewRouter constructs a Router with the full middleware chain and all routes
// registered. Middleware runs in this order:
//  1. Recovery: panic → 500
//  2. OTEL: trace context per request
//  3. RequestLogger: structured request log plus HTTP metrics
//
// bootstrapTimeout bounds a run started through POST /api/v1/bootstrap; zero
// leaves it unbounded.
func NewRouter(o orchestratorService, bootstrapTimeout time.Duration) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	telemetry.RegisterMetrics()

	engine.Use(Recovery(slog.Default()))
	engine.Use(OTEL("xrboot"))
	engine.Use(RequestLogger(slog.Default()))

	h := &Handler{orchestrator: o, bootstrapTimeout: bootstrapTimeout}

	v1 := engine.Group("/api/v1")
	v1.GET("/status", h.Status)
	v1.POST("/bootstrap", h.Bootstrap)

	engine.GET("/health", h.Health)
	engine.GET("/health/deep", h.DeepHealth)
	engine.GET("/ready", h.Ready)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Router{engine: engine}
}

// Handler returns the underlying http.Handler for use with net/http servers.
func (r *Router) Handler() http.Handler {
	return r.engine
}
