package leads

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"lead-intake/internal/cache"
	"lead-intake/internal/metrics"
	"lead-intake/pkg/logger"
)

// Service validates, de-duplicates, throttles and persists leads.
//
// Intake invariants:
// - A lead is persisted only after validation, the duplicate check and the
//   rate-limit check all pass.
// - The rate-limit marker is written only after the insert commits.
// - A failed transaction leaves no lead and no marker behind.
type Service struct {
	repo  Repository
	cache cache.Cache
	opts  Options
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

type Options struct {
	// RateLimitWindow is how long an (email, phone) pair is suppressed after a create.
	RateLimitWindow time.Duration
	// ListCacheTTL is how long a list page is served from cache.
	ListCacheTTL time.Duration
	MaxListLimit int
	Metrics      *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.RateLimitWindow <= 0 {
		o.RateLimitWindow = 60 * time.Second
	}
	if o.ListCacheTTL <= 0 {
		o.ListCacheTTL = 300 * time.Second
	}
	if o.MaxListLimit <= 0 {
		o.MaxListLimit = 100
	}
	return o
}

func NewService(repo Repository, c cache.Cache, opts Options) *Service {
	return &Service{repo: repo, cache: c, opts: opts.withDefaults(), clock: time.Now}
}

const rateLimitPrefix = "lead:ratelimit:"

// RateLimitKey derives the suppression key for a normalized email and phone.
// The digest keeps contact data out of cache key space.
func RateLimitKey(email, phone string) string {
	sum := sha256.Sum256([]byte(email + "\x00" + phone))
	return rateLimitPrefix + hex.EncodeToString(sum[:])
}

// CreateLead runs the intake pipeline for one submission.
//
// Errors classify through KindOf: *ValidationError, ErrDuplicateLead,
// ErrRateLimited or ErrStoreFailure.
func (s *Service) CreateLead(ctx context.Context, in CreateLeadInput) (Lead, error) {
	log := logger.From(ctx)
	in = Normalize(in)

	if err := Validate(in); err != nil {
		s.opts.Metrics.IncLeadsRejected(string(KindValidationFailed))
		return Lead{}, err
	}
	dob, err := ParseDate(in.DateOfBirth)
	if err != nil {
		s.opts.Metrics.IncLeadsRejected(string(KindValidationFailed))
		return Lead{}, &ValidationError{Fields: []FieldError{{Field: "dateOfBirth", Reason: "must be a valid calendar date (YYYY-MM-DD)"}}}
	}

	if _, found, err := s.repo.FindByEmail(ctx, in.Email); err != nil {
		return Lead{}, storeFailure("find by email", err)
	} else if found {
		s.opts.Metrics.IncLeadsRejected(string(KindDuplicateLead))
		return Lead{}, ErrDuplicateLead
	}

	key := RateLimitKey(in.Email, in.Phone)
	if _, hit, err := s.cache.Get(ctx, key); err != nil {
		return Lead{}, storeFailure("rate limit lookup", err)
	} else if hit {
		s.opts.Metrics.IncLeadsRejected(string(KindRateLimited))
		return Lead{}, ErrRateLimited
	}

	now := s.clock().UTC().Truncate(time.Microsecond)
	extra := in.AdditionalData
	if extra == nil {
		extra = map[string]any{}
	}
	draft := Lead{
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Email:          in.Email,
		Phone:          in.Phone,
		DateOfBirth:    dob,
		AdditionalData: extra,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var out Lead
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		l, err := tx.Insert(ctx, draft)
		if err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			s.opts.Metrics.IncLeadsRejected(string(KindDuplicateLead))
			return Lead{}, ErrDuplicateLead
		}
		return Lead{}, storeFailure("insert lead", err)
	}

	// The lead is committed; a lost marker only weakens suppression.
	if err := s.cache.Set(ctx, key, []byte("1"), s.opts.RateLimitWindow); err != nil {
		log.Warn("rate limit marker not stored", "lead_id", out.ID, "err", err)
	}

	s.opts.Metrics.IncLeadsCreated()
	log.Info("lead created", "lead_id", out.ID)
	return out, nil
}

// GetLead returns one lead by id.
func (s *Service) GetLead(ctx context.Context, id int64) (Lead, error) {
	if id <= 0 {
		return Lead{}, invalidArgument("id must be positive, got %d", id)
	}
	l, found, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Lead{}, storeFailure("find by id", err)
	}
	if !found {
		return Lead{}, ErrNotFound
	}
	return l, nil
}

// LinkRequest attaches the audit record of the creating request to a lead.
func (s *Service) LinkRequest(ctx context.Context, leadID, requestID int64) error {
	if leadID <= 0 || requestID <= 0 {
		return invalidArgument("lead and request ids must be positive")
	}
	if err := s.repo.LinkRequest(ctx, leadID, requestID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return storeFailure("link request", err)
	}
	return nil
}
