package httpapi

import (
	"bytes"
	"context"
	"io"
	"time"

	"lead-intake/internal/audit"
	"lead-intake/internal/metrics"
	"lead-intake/pkg/logger"

	"github.com/gin-gonic/gin"
)

// maxCapturedBody bounds how much of each body lands in an audit record.
const maxCapturedBody = 64 << 10

// Recorder persists one exchange and returns the record id, 0 on failure.
type Recorder interface {
	RecordExchange(ctx context.Context, ex audit.Exchange) int64
}

// RequestLinker attaches an audit record to the lead its request created.
type RequestLinker interface {
	LinkRequest(ctx context.Context, leadID, requestID int64) error
}

// AuditTrail records every request that passes through it, including ones
// aborted further down the chain (throttled, unauthenticated, malformed).
// Install it before auth and throttling on the audited group.
func AuditTrail(rec Recorder, linker RequestLinker, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := logger.RequestStart(c)

		var reqBody []byte
		if c.Request.Body != nil {
			reqBody, _ = io.ReadAll(io.LimitReader(c.Request.Body, maxCapturedBody))
			c.Request.Body = readCloser{
				Reader: io.MultiReader(bytes.NewReader(reqBody), c.Request.Body),
				Closer: c.Request.Body,
			}
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		status := w.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(route, c.Request.Method, status, time.Since(start))

		ctx := c.Request.Context()
		id := rec.RecordExchange(ctx, audit.Exchange{
			Method:       c.Request.Method,
			Path:         c.Request.URL.Path,
			Header:       c.Request.Header,
			Query:        c.Request.URL.Query(),
			Body:         reqBody,
			ClientIP:     c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
			StartedAt:    start,
			StatusCode:   status,
			ResponseBody: w.body.Bytes(),
		})
		if id == 0 || linker == nil {
			return
		}

		leadID, ok := c.Get(ginKeyLeadID)
		if !ok {
			return
		}
		lid, _ := leadID.(int64)
		if lid <= 0 {
			return
		}
		if err := linker.LinkRequest(context.WithoutCancel(ctx), lid, id); err != nil {
			logger.From(ctx).Warn("lead not linked to audit record", "lead_id", lid, "audit_id", id, "err", err)
		}
	}
}

// captureWriter tees the response body into a bounded buffer.
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.capture(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.capture([]byte(s))
	return w.ResponseWriter.WriteString(s)
}

func (w *captureWriter) capture(b []byte) {
	if room := maxCapturedBody - w.body.Len(); room > 0 {
		if len(b) > room {
			b = b[:room]
		}
		w.body.Write(b)
	}
}

type readCloser struct {
	io.Reader
	io.Closer
}
