package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lead-intake/internal/metrics"
	"lead-intake/pkg/logger"
)

// Service records and reads the API audit trail.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to lead submitters.
// - Recording is best-effort: a failed write is logged and counted, never
//   returned to the request that produced it.
type Service struct {
	repo Repository
	opts Options
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

type Options struct {
	// WriteTimeout bounds one audit write, independent of the request context.
	WriteTimeout time.Duration
	// Retention is the width of the recent segment used by monitoring queries.
	Retention time.Duration
	// SlowThreshold classifies slow requests, in seconds.
	SlowThreshold float64
	Metrics       *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.Retention <= 0 {
		o.Retention = 30 * 24 * time.Hour
	}
	if o.SlowThreshold <= 0 {
		o.SlowThreshold = 1.0
	}
	return o
}

func NewService(repo Repository, opts Options) *Service {
	return &Service{repo: repo, opts: opts.withDefaults(), clock: time.Now}
}

var (
	ErrNotFound        = errors.New("audit: not found")
	ErrInvalidArgument = errors.New("audit: invalid argument")
	// ErrWriteFailed marks an absorbed audit write failure in logs.
	ErrWriteFailed = errors.New("audit: write failed")
)

const (
	maxMethodLen    = 10
	maxEndpointLen  = 255
	maxIPLen        = 45
	maxUserAgentLen = 255
	maxListLimit    = 200
)

// Build turns an exchange into a redacted record stamped at now.
func Build(ex Exchange, now time.Time) Record {
	elapsed := now.Sub(ex.StartedAt).Seconds()
	if ex.StartedAt.IsZero() || elapsed < 0 {
		elapsed = 0
	}
	return Record{
		Method:   truncate(storableText(ex.Method), maxMethodLen),
		Endpoint: truncate(storableText(ex.Path), maxEndpointLen),
		Request: RequestSnapshot{
			Headers: RedactHeaders(ex.Header),
			Query:   copyQuery(ex.Query),
			Body:    bodyJSON(ex.Body),
			Client:  clientInfo(storableText(ex.UserAgent)),
		},
		Response: ResponseSnapshot{
			StatusCode: ex.StatusCode,
			Body:       bodyJSON(ex.ResponseBody),
		},
		StatusCode:     ex.StatusCode,
		IPAddress:      truncate(storableText(ex.ClientIP), maxIPLen),
		UserAgent:      truncate(storableText(ex.UserAgent), maxUserAgentLen),
		CreatedAt:      now.UTC().Truncate(time.Microsecond),
		ProcessingTime: elapsed,
	}
}

// RecordExchange persists one exchange and returns its record id, or 0 when
// the write failed. Failures are logged and counted, never returned.
//
// The write detaches from ctx cancellation so a client hanging up does not
// lose the record; WriteTimeout bounds it instead.
func (s *Service) RecordExchange(ctx context.Context, ex Exchange) int64 {
	log := logger.From(ctx)
	rec := Build(ex, s.clock())

	if s.repo == nil {
		s.opts.Metrics.IncAuditFailures()
		log.Error("audit record dropped", "err", fmt.Errorf("%w: repository not configured", ErrWriteFailed))
		return 0
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.WriteTimeout)
	defer cancel()

	id, err := s.repo.Append(wctx, rec)
	if err != nil {
		s.opts.Metrics.IncAuditFailures()
		log.Error("audit record dropped",
			"method", rec.Method,
			"endpoint", rec.Endpoint,
			"status", rec.StatusCode,
			"err", fmt.Errorf("%w: %w", ErrWriteFailed, err),
		)
		return 0
	}
	s.opts.Metrics.IncAuditWritten()
	return id
}

func (s *Service) Get(ctx context.Context, id int64) (Record, error) {
	if id <= 0 {
		return Record{}, ErrInvalidArgument
	}
	rec, ok, err := s.repo.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Stats summarizes the recent segment.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx, s.recentSince(), s.opts.SlowThreshold)
}

func (s *Service) ListFailed(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > maxListLimit {
		return nil, ErrInvalidArgument
	}
	return s.repo.ListFailed(ctx, s.recentSince(), limit)
}

// ListSlow lists recent records slower than threshold seconds.
// A zero threshold uses the configured SlowThreshold.
func (s *Service) ListSlow(ctx context.Context, threshold float64, limit int) ([]Record, error) {
	if limit <= 0 || limit > maxListLimit || threshold < 0 {
		return nil, ErrInvalidArgument
	}
	if threshold == 0 {
		threshold = s.opts.SlowThreshold
	}
	return s.repo.ListSlow(ctx, s.recentSince(), threshold, limit)
}

func (s *Service) recentSince() time.Time {
	return s.clock().UTC().Add(-s.opts.Retention)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
