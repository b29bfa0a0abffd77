package leads

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryRepo is an in-memory Repository useful for tests and local runs.
// It enforces email uniqueness at commit time, the way the store's unique
// constraint does. It is not intended for production use.
type MemoryRepo struct {
	mu     sync.Mutex
	leads  []Lead
	nextID int64

	// Failure injection for tests.
	FindErr   error
	ListErr   error
	CommitErr error

	// Calls counts store reads, so tests can assert a path never touched storage.
	Calls int
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{nextID: 1} }

func (r *MemoryRepo) FindByEmail(ctx context.Context, email string) (Lead, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls++
	if r.FindErr != nil {
		return Lead{}, false, r.FindErr
	}
	for _, l := range r.leads {
		if l.Email == email {
			return cloneLead(l), true, nil
		}
	}
	return Lead{}, false, nil
}

func (r *MemoryRepo) FindByID(ctx context.Context, id int64) (Lead, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls++
	if r.FindErr != nil {
		return Lead{}, false, r.FindErr
	}
	for _, l := range r.leads {
		if l.ID == id {
			return cloneLead(l), true, nil
		}
	}
	return Lead{}, false, nil
}

func (r *MemoryRepo) List(ctx context.Context, p ListParams) ([]Lead, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls++
	if r.ListErr != nil {
		return nil, 0, r.ListErr
	}

	sorted := make([]Lead, len(r.leads))
	copy(sorted, r.leads)
	sort.SliceStable(sorted, func(i, j int) bool {
		c := compareLeads(sorted[i], sorted[j], p.SortBy)
		if c == 0 {
			c = compareInt64(sorted[i].ID, sorted[j].ID)
		}
		if p.Desc {
			return c > 0
		}
		return c < 0
	})

	out := make([]Lead, 0, p.Limit)
	for i := p.Offset; i < len(sorted) && len(out) < p.Limit; i++ {
		out = append(out, cloneLead(sorted[i]))
	}
	return out, len(sorted), nil
}

func (r *MemoryRepo) LinkRequest(ctx context.Context, leadID, requestID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.leads {
		if r.leads[i].ID != leadID {
			continue
		}
		if r.leads[i].CreatedByRequestID == nil {
			v := requestID
			r.leads[i].CreatedByRequestID = &v
		}
		v := requestID
		r.leads[i].LastModifiedByRequestID = &v
		return nil
	}
	return ErrNotFound
}

// ClearRequestLinks mirrors the api_logs delete trigger.
func (r *MemoryRepo) ClearRequestLinks(requestID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.leads {
		if p := r.leads[i].CreatedByRequestID; p != nil && *p == requestID {
			r.leads[i].CreatedByRequestID = nil
		}
		if p := r.leads[i].LastModifiedByRequestID; p != nil && *p == requestID {
			r.leads[i].LastModifiedByRequestID = nil
		}
	}
}

func (r *MemoryRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &memoryTx{repo: r}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CommitErr != nil {
		return r.CommitErr
	}
	for _, l := range tx.staged {
		for _, existing := range r.leads {
			if existing.Email == l.Email {
				return ErrEmailTaken
			}
		}
	}
	r.leads = append(r.leads, tx.staged...)
	return nil
}

// Leads returns a snapshot of committed leads.
func (r *MemoryRepo) Leads() []Lead {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Lead, 0, len(r.leads))
	for _, l := range r.leads {
		out = append(out, cloneLead(l))
	}
	return out
}

// memoryTx stages inserts until commit. Ids are drawn from the repo sequence
// at insert time, so a rolled back transaction burns its ids like a serial
// column does.
type memoryTx struct {
	repo   *MemoryRepo
	staged []Lead
}

func (t *memoryTx) Insert(ctx context.Context, l Lead) (Lead, error) {
	for _, s := range t.staged {
		if s.Email == l.Email {
			return Lead{}, ErrEmailTaken
		}
	}
	t.repo.mu.Lock()
	l.ID = t.repo.nextID
	t.repo.nextID++
	t.repo.mu.Unlock()

	l.AdditionalData = nonNilData(l.AdditionalData)
	t.staged = append(t.staged, cloneLead(l))
	return l, nil
}

func compareLeads(a, b Lead, by SortField) int {
	switch by {
	case SortByFirstName:
		return strings.Compare(a.FirstName, b.FirstName)
	case SortByLastName:
		return strings.Compare(a.LastName, b.LastName)
	case SortByEmail:
		return strings.Compare(a.Email, b.Email)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cloneLead(l Lead) Lead {
	if l.AdditionalData != nil {
		m := make(map[string]any, len(l.AdditionalData))
		for k, v := range l.AdditionalData {
			m[k] = v
		}
		l.AdditionalData = m
	}
	if l.CreatedByRequestID != nil {
		v := *l.CreatedByRequestID
		l.CreatedByRequestID = &v
	}
	if l.LastModifiedByRequestID != nil {
		v := *l.LastModifiedByRequestID
		l.LastModifiedByRequestID = &v
	}
	return l
}
