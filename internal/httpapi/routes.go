package httpapi

import (
	"io"

	"lead-intake/internal/auth"
	"lead-intake/internal/metrics"
	"lead-intake/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Deps are the collaborators of the API routes.
type Deps struct {
	Handlers Handlers
	Recorder Recorder
	Linker   RequestLinker
	Metrics  *metrics.Metrics
	// Auth enables bearer auth on every API route; nil leaves lead routes
	// open and does not mount the audit endpoints at all.
	Auth *auth.Manager
	// Limiter enables per-client throttling on lead routes; nil disables it.
	Limiter *LimiterStore
}

// Register mounts the API routes on r.
//
// Lead routes are audited first, then recovered, throttled and
// authenticated, so rejected or panicking requests still leave an audit record.
func Register(r gin.IRouter, d Deps) {
	h := d.Handlers
	api := r.Group("/api")

	lr := api.Group("/leads",
		AuditTrail(d.Recorder, d.Linker, d.Metrics),
		gin.CustomRecoveryWithWriter(io.Discard, h.recoverPanic),
		Throttle(d.Limiter),
		auth.RequireAccessToken(d.Auth),
	)
	{
		lr.POST("", h.CreateLead)
		lr.GET("", h.ListLeads)
		lr.GET("/:id", h.GetLead)
	}

	if d.Auth == nil || h.Audit == nil {
		return
	}
	admin := api.Group("/admin/audit",
		auth.RequireAccessToken(d.Auth),
		rbac.RequireAnyRole(rbac.AuditReaders...),
	)
	{
		admin.GET("/stats", h.AuditStats)
		admin.GET("/failed", h.AuditFailed)
		admin.GET("/slow", h.AuditSlow)
		admin.GET("/:id", h.AuditRecord)
	}
}
