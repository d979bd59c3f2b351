// Package http assembles the API server's route tree and its lifecycle.
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
	prommetrics "github.com/vantagelab/termlens/internal/infrastructure/monitoring/prometheus"
	"github.com/vantagelab/termlens/internal/interfaces/http/handlers"
	"github.com/vantagelab/termlens/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and cross-cutting dependencies of the
// route tree.
type RouterConfig struct {
	Analysis *handlers.AnalysisHandler
	Health   *handlers.HealthHandler

	Logger   logging.Logger
	Metrics  *prommetrics.Metrics
	Registry *prometheus.Registry
	Mode     string
}

// NewRouter builds the full gin engine: probes and metrics at the root,
// the API under /v1.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Metrics(cfg.Metrics))

	if cfg.Health != nil {
		r.GET("/healthz", cfg.Health.Liveness)
		r.GET("/readyz", cfg.Health.Readiness)
	}
	if cfg.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))
	}

	if cfg.Analysis != nil {
		v1 := r.Group("/v1")
		v1.POST("/analyses", cfg.Analysis.Submit)
		v1.GET("/analyses", cfg.Analysis.List)
		v1.GET("/analyses/:id", cfg.Analysis.Get)
		v1.GET("/analyses/:id/clusters", cfg.Analysis.Clusters)
	}
	return r
}
