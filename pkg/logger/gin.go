package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-Id"

	ginKeyLogger       = "logger"
	ginKeyRequestID    = "request_id"
	ginKeyRequestStart = "request_start"
)

// Middleware returns a Gin middleware that injects request_id, records the
// request start time and logs request summaries.
func Middleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, rid)

		// attach request_id logger to both gin and request contexts
		reqLogger := l.With("request_id", rid)
		c.Set(ginKeyLogger, reqLogger)
		c.Set(ginKeyRequestID, rid)
		c.Set(ginKeyRequestStart, start)
		c.Request = c.Request.WithContext(With(c.Request.Context(), reqLogger))

		c.Next()

		dur := time.Since(start)
		status := c.Writer.Status()
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		attrs := []any{
			"method", method,
			"path", path,
			"status", status,
			"duration_ms", float64(dur.Microseconds()) / 1000.0,
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
			reqLogger.Error("request", attrs...)
			return
		}
		reqLogger.Info("request", attrs...)
	}
}

// FromGin pulls the request-scoped logger from Gin context.
func FromGin(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(ginKeyLogger); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

// RequestID returns the request id assigned by Middleware, if any.
func RequestID(c *gin.Context) string {
	return c.GetString(ginKeyRequestID)
}

// RequestStart returns the time Middleware first saw the request.
// Falls back to now when the middleware is not installed.
func RequestStart(c *gin.Context) time.Time {
	if v, ok := c.Get(ginKeyRequestStart); ok {
		if t, ok := v.(time.Time); ok && !t.IsZero() {
			return t
		}
	}
	return time.Now()
}
