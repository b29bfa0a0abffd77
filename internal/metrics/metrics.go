// Package metrics holds the Prometheus instruments for intake, listing and audit.
//
// All methods are nil-safe so services can run without metrics in tests.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	LeadsCreated        prometheus.Counter
	LeadsRejected       *prometheus.CounterVec
	ListCache           *prometheus.CounterVec
	AuditRecordsWritten prometheus.Counter
	AuditWriteFailures  prometheus.Counter
	RequestDuration     *prometheus.HistogramVec
}

// New creates and registers all instruments on reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LeadsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "lead_intake_created_total",
			Help: "Total number of leads persisted",
		}),
		LeadsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lead_intake_rejected_total",
			Help: "Lead submissions rejected, by reason",
		}, []string{"reason"}),
		ListCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lead_list_cache_total",
			Help: "List query cache lookups, by result (hit, miss)",
		}, []string{"result"}),
		AuditRecordsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "audit_records_written_total",
			Help: "Audit records persisted",
		}),
		AuditWriteFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Audit records that could not be persisted",
		}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency of audited API requests",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route", "method", "status"}),
	}
}

func (m *Metrics) IncLeadsCreated() {
	if m == nil {
		return
	}
	m.LeadsCreated.Inc()
}

func (m *Metrics) IncLeadsRejected(reason string) {
	if m == nil {
		return
	}
	m.LeadsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveListCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.ListCache.WithLabelValues(result).Inc()
}

func (m *Metrics) IncAuditWritten() {
	if m == nil {
		return
	}
	m.AuditRecordsWritten.Inc()
}

func (m *Metrics) IncAuditFailures() {
	if m == nil {
		return
	}
	m.AuditWriteFailures.Inc()
}

func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(d.Seconds())
}
