package leads

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lead-intake/internal/cache"
)

type failingCache struct {
	cache.Cache
	getErr error
	setErr error
}

func (c failingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	return c.Cache.Get(ctx, key)
}

func (c failingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	return c.Cache.Set(ctx, key, value, ttl)
}

// blindRepo hides existing rows from the pre-check, so only the
// uniqueness check at commit can catch a duplicate.
type blindRepo struct {
	*MemoryRepo
}

func (blindRepo) FindByEmail(ctx context.Context, email string) (Lead, bool, error) {
	return Lead{}, false, nil
}

func johnDoe() CreateLeadInput {
	return CreateLeadInput{
		FirstName:      "John",
		LastName:       "Doe",
		Email:          "john@example.com",
		Phone:          "+12025550123",
		DateOfBirth:    "1990-05-15",
		AdditionalData: map[string]any{"source": "website"},
	}
}

func newTestService(repo Repository, c cache.Cache) *Service {
	svc := NewService(repo, c, Options{})
	svc.clock = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 123456789, time.UTC) }
	return svc
}

func TestCreateLead_PersistsAndSuppressesResubmission(t *testing.T) {
	repo := NewMemoryRepo()
	mem := cache.NewMemory()
	svc := newTestService(repo, mem)

	l, err := svc.CreateLead(context.Background(), johnDoe())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if l.ID != 1 {
		t.Fatalf("expected id 1, got %d", l.ID)
	}
	if l.DateOfBirth.String() != "1990-05-15" {
		t.Fatalf("unexpected dob %q", l.DateOfBirth.String())
	}
	if l.AdditionalData["source"] != "website" {
		t.Fatalf("unexpected additional data %v", l.AdditionalData)
	}
	if !l.CreatedAt.Equal(l.UpdatedAt) {
		t.Fatalf("expected createdAt == updatedAt, got %v / %v", l.CreatedAt, l.UpdatedAt)
	}
	if l.CreatedAt.Nanosecond()%1000 != 0 {
		t.Fatalf("expected microsecond precision, got %v", l.CreatedAt)
	}

	if _, hit, _ := mem.Get(context.Background(), RateLimitKey("john@example.com", "+12025550123")); !hit {
		t.Fatalf("expected rate limit marker after create")
	}

	_, err = svc.CreateLead(context.Background(), johnDoe())
	if !errors.Is(err, ErrDuplicateLead) {
		t.Fatalf("expected ErrDuplicateLead on resubmission, got %v", err)
	}
	if n := len(repo.Leads()); n != 1 {
		t.Fatalf("expected 1 stored lead, got %d", n)
	}
}

func TestCreateLead_NormalizesEmail(t *testing.T) {
	repo := NewMemoryRepo()
	svc := newTestService(repo, cache.NewMemory())

	in := johnDoe()
	in.Email = "  John@Example.COM "
	l, err := svc.CreateLead(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if l.Email != "john@example.com" {
		t.Fatalf("expected normalized email, got %q", l.Email)
	}

	_, err = svc.CreateLead(context.Background(), johnDoe())
	if KindOf(err) != KindDuplicateLead {
		t.Fatalf("expected duplicate_lead, got %v", err)
	}
}

func TestCreateLead_RateLimitedWhenPairRecentlySeen(t *testing.T) {
	repo := NewMemoryRepo()
	mem := cache.NewMemory()
	svc := newTestService(repo, mem)

	// A marker for this pair exists but no lead with the email does.
	in := johnDoe()
	in.Email = "jane@example.com"
	if err := mem.Set(context.Background(), RateLimitKey(in.Email, in.Phone), []byte("1"), time.Minute); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := svc.CreateLead(context.Background(), in)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if len(repo.Leads()) != 0 {
		t.Fatalf("rate limited submission must not persist")
	}
}

func TestCreateLead_RateLimitExpires(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	mem := cache.NewMemory().WithClock(func() time.Time { return now })
	svc := newTestService(NewMemoryRepo(), mem)

	in := johnDoe()
	if err := mem.Set(context.Background(), RateLimitKey(in.Email, in.Phone), []byte("1"), time.Minute); err != nil {
		t.Fatalf("seed: %v", err)
	}
	now = now.Add(61 * time.Second)

	if _, err := svc.CreateLead(context.Background(), in); err != nil {
		t.Fatalf("expected create after window, got %v", err)
	}
}

func TestCreateLead_DifferentPhoneIsNotRateLimited(t *testing.T) {
	mem := cache.NewMemory()
	svc := newTestService(NewMemoryRepo(), mem)

	in := johnDoe()
	if err := mem.Set(context.Background(), RateLimitKey(in.Email, "+442071838750"), []byte("1"), time.Minute); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.CreateLead(context.Background(), in); err != nil {
		t.Fatalf("expected create, got %v", err)
	}
}

func TestCreateLead_ValidationCollectsAllErrors(t *testing.T) {
	repo := NewMemoryRepo()
	svc := newTestService(repo, cache.NewMemory())

	_, err := svc.CreateLead(context.Background(), CreateLeadInput{
		FirstName:   "J",
		LastName:    "",
		Email:       "not-an-email",
		Phone:       "call-me",
		DateOfBirth: "1990-02-30",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	got := map[string]bool{}
	for _, f := range verr.Fields {
		got[f.Field] = true
	}
	for _, want := range []string{"firstName", "lastName", "email", "phone", "dateOfBirth"} {
		if !got[want] {
			t.Fatalf("expected error for %s, got %+v", want, verr.Fields)
		}
	}
	if repo.Calls != 0 {
		t.Fatalf("validation failure must not touch the store")
	}
}

func TestCreateLead_NulCharactersAreValidationFailures(t *testing.T) {
	repo := NewMemoryRepo()
	svc := newTestService(repo, cache.NewMemory())

	in := johnDoe()
	in.FirstName = "Jo\x00hn"
	in.AdditionalData = map[string]any{"k": "a\x00b"}
	_, err := svc.CreateLead(context.Background(), in)
	if KindOf(err) != KindValidationFailed {
		t.Fatalf("expected validation_failed, got %v (%s)", err, KindOf(err))
	}
	if repo.Calls != 0 {
		t.Fatalf("validation failure must not touch the store")
	}
}

func TestCreateLead_RollbackLeavesNoMarker(t *testing.T) {
	repo := NewMemoryRepo()
	repo.CommitErr = errors.New("commit: connection reset")
	mem := cache.NewMemory()
	svc := newTestService(repo, mem)

	_, err := svc.CreateLead(context.Background(), johnDoe())
	if KindOf(err) != KindStoreFailure {
		t.Fatalf("expected store_failure, got %v", err)
	}
	if len(repo.Leads()) != 0 {
		t.Fatalf("expected no stored lead")
	}
	if mem.Len() != 0 {
		t.Fatalf("expected no rate limit marker after rollback")
	}
}

func TestCreateLead_StoreLookupFailure(t *testing.T) {
	repo := NewMemoryRepo()
	repo.FindErr = errors.New("dial tcp: timeout")
	svc := newTestService(repo, cache.NewMemory())

	_, err := svc.CreateLead(context.Background(), johnDoe())
	if !errors.Is(err, ErrStoreFailure) {
		t.Fatalf("expected ErrStoreFailure, got %v", err)
	}
	if KindOf(err).ClientCaused() {
		t.Fatalf("store failure must not be client caused")
	}
}

func TestCreateLead_CacheReadFailureIsStoreFailure(t *testing.T) {
	repo := NewMemoryRepo()
	svc := newTestService(repo, failingCache{Cache: cache.NewMemory(), getErr: errors.New("redis down")})

	_, err := svc.CreateLead(context.Background(), johnDoe())
	if KindOf(err) != KindStoreFailure {
		t.Fatalf("expected store_failure, got %v", err)
	}
	if len(repo.Leads()) != 0 {
		t.Fatalf("expected no stored lead")
	}
}

func TestCreateLead_MarkerWriteFailureStillSucceeds(t *testing.T) {
	repo := NewMemoryRepo()
	svc := newTestService(repo, failingCache{Cache: cache.NewMemory(), setErr: errors.New("redis down")})

	if _, err := svc.CreateLead(context.Background(), johnDoe()); err != nil {
		t.Fatalf("expected committed lead to be returned, got %v", err)
	}
	if len(repo.Leads()) != 1 {
		t.Fatalf("expected 1 stored lead")
	}
}

func TestCreateLead_UniqueConstraintCatchesRace(t *testing.T) {
	repo := NewMemoryRepo()
	svc := newTestService(blindRepo{repo}, cache.NewMemory())

	phones := []string{"+12025550101", "+12025550102", "+12025550103", "+12025550104", "+12025550105"}
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	for _, p := range phones {
		wg.Add(1)
		go func(phone string) {
			defer wg.Done()
			in := johnDoe()
			in.Phone = phone
			_, err := svc.CreateLead(context.Background(), in)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrDuplicateLead):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(p)
	}
	wg.Wait()

	if successes != 1 || dupes != len(phones)-1 {
		t.Fatalf("expected 1 success and %d duplicates, got %d / %d", len(phones)-1, successes, dupes)
	}
	if n := len(repo.Leads()); n != 1 {
		t.Fatalf("expected 1 stored lead, got %d", n)
	}
}

func TestGetLead(t *testing.T) {
	repo := NewMemoryRepo()
	svc := newTestService(repo, cache.NewMemory())
	created, err := svc.CreateLead(context.Background(), johnDoe())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.GetLead(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Email != created.Email {
		t.Fatalf("unexpected lead %+v", got)
	}

	if _, err := svc.GetLead(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.GetLead(context.Background(), 0); KindOf(err) != KindInvalidArgument {
		t.Fatalf("expected invalid_argument, got %v", err)
	}
}

func TestLinkRequest_KeepsCreatorAndUpdatedAt(t *testing.T) {
	repo := NewMemoryRepo()
	svc := newTestService(repo, cache.NewMemory())
	created, err := svc.CreateLead(context.Background(), johnDoe())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.LinkRequest(context.Background(), created.ID, 41); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := svc.LinkRequest(context.Background(), created.ID, 42); err != nil {
		t.Fatalf("link: %v", err)
	}

	got, _ := svc.GetLead(context.Background(), created.ID)
	if got.CreatedByRequestID == nil || *got.CreatedByRequestID != 41 {
		t.Fatalf("expected creator 41, got %v", got.CreatedByRequestID)
	}
	if got.LastModifiedByRequestID == nil || *got.LastModifiedByRequestID != 42 {
		t.Fatalf("expected last modifier 42, got %v", got.LastModifiedByRequestID)
	}
	if !got.UpdatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("linking must not touch updatedAt")
	}

	repo.ClearRequestLinks(41)
	got, _ = svc.GetLead(context.Background(), created.ID)
	if got.CreatedByRequestID != nil {
		t.Fatalf("expected creator link cleared")
	}

	if err := svc.LinkRequest(context.Background(), 999, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRateLimitKey(t *testing.T) {
	a := RateLimitKey("john@example.com", "+12025550123")
	if a != RateLimitKey("john@example.com", "+12025550123") {
		t.Fatalf("key must be deterministic")
	}
	if a == RateLimitKey("john@example.com", "+12025550124") {
		t.Fatalf("key must depend on phone")
	}
	if len(a) != len(rateLimitPrefix)+64 {
		t.Fatalf("unexpected key %q", a)
	}
}
