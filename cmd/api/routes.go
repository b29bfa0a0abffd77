package main

import (
	"database/sql"
	"net/http"
	"time"

	"lead-intake/internal/httpapi"
	"lead-intake/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type routeDeps struct {
	db       *sql.DB
	rdb      *redis.Client
	registry *prometheus.Registry
	api      httpapi.Deps
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	d.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// public
	r.GET("/healthz", func(c *gin.Context) {
		ctx := c.Request.Context()
		checks := gin.H{"postgres": "ok", "redis": "ok"}
		status := http.StatusOK
		if err := utils.HealthCheck(ctx, d.db, 2*time.Second); err != nil {
			checks["postgres"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := utils.PingRedis(ctx, d.rdb, 2*time.Second); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})))

	httpapi.Register(r, d.api)
}
