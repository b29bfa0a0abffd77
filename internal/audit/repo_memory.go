package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is a simple in-memory append-only repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu      sync.Mutex
	records []Record
	nextID  int64

	// AppendErr makes every Append fail, for exercising write-failure paths.
	AppendErr error
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{nextID: 1} }

func (r *MemoryRepo) Append(ctx context.Context, rec Record) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.AppendErr != nil {
		return 0, r.AppendErr
	}
	rec.ID = r.nextID
	r.nextID++
	r.records = append(r.records, rec)
	return rec.ID, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id int64) (Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id {
			return rec, true, nil
		}
	}
	return Record{}, false, nil
}

func (r *MemoryRepo) Stats(ctx context.Context, since time.Time, slowThreshold float64) (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := Stats{Since: since, SlowThreshold: slowThreshold}
	var sum float64
	for _, rec := range r.records {
		if rec.CreatedAt.Before(since) {
			continue
		}
		out.TotalRequests++
		sum += rec.ProcessingTime
		if rec.StatusCode >= 400 {
			out.ErrorCount++
		}
		if rec.ProcessingTime > slowThreshold {
			out.SlowCount++
		}
	}
	if out.TotalRequests > 0 {
		out.AvgProcessingTime = sum / float64(out.TotalRequests)
	}
	return out, nil
}

func (r *MemoryRepo) ListFailed(ctx context.Context, since time.Time, limit int) ([]Record, error) {
	return r.filter(since, limit, func(rec Record) bool { return rec.StatusCode >= 400 }, func(a, b Record) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	}), nil
}

func (r *MemoryRepo) ListSlow(ctx context.Context, since time.Time, threshold float64, limit int) ([]Record, error) {
	return r.filter(since, limit, func(rec Record) bool { return rec.ProcessingTime > threshold }, func(a, b Record) bool {
		if a.ProcessingTime != b.ProcessingTime {
			return a.ProcessingTime > b.ProcessingTime
		}
		return a.ID > b.ID
	}), nil
}

func (r *MemoryRepo) filter(since time.Time, limit int, keep func(Record) bool, less func(a, b Record) bool) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Record{}
	for _, rec := range r.records {
		if !rec.CreatedAt.Before(since) && keep(rec) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Records returns a snapshot in append order.
func (r *MemoryRepo) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}
