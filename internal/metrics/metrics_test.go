package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncLeadsCreated()
	m.IncLeadsRejected("duplicate_lead")
	m.IncLeadsRejected("duplicate_lead")
	m.ObserveListCache(true)
	m.ObserveListCache(false)
	m.ObserveListCache(false)
	m.IncAuditWritten()
	m.IncAuditFailures()
	m.ObserveRequest("/api/leads", "POST", 201, 10*time.Millisecond)

	if got := testutil.ToFloat64(m.LeadsCreated); got != 1 {
		t.Fatalf("created: got %v", got)
	}
	if got := testutil.ToFloat64(m.LeadsRejected.WithLabelValues("duplicate_lead")); got != 2 {
		t.Fatalf("rejected: got %v", got)
	}
	if got := testutil.ToFloat64(m.ListCache.WithLabelValues("miss")); got != 2 {
		t.Fatalf("cache miss: got %v", got)
	}
	if got := testutil.ToFloat64(m.AuditWriteFailures); got != 1 {
		t.Fatalf("audit failures: got %v", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.IncLeadsCreated()
	m.IncLeadsRejected("x")
	m.ObserveListCache(true)
	m.IncAuditWritten()
	m.IncAuditFailures()
	m.ObserveRequest("/", "GET", 200, time.Millisecond)
}
