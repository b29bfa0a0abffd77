package leads

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Client-caused.
	ErrDuplicateLead   = errors.New("duplicate lead")
	ErrRateLimited     = errors.New("rate limited")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")

	// Server-caused: transaction, commit, connectivity or timeout failures.
	ErrStoreFailure = errors.New("store failure")

	// ErrEmailTaken is returned by repositories when the email uniqueness
	// constraint rejects a write. The service translates it to ErrDuplicateLead.
	ErrEmailTaken = errors.New("leads: email already stored")
)

// FieldError is one violated input constraint.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError carries every violated constraint of one submission.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Kind is the tagged outcome of a failed intake or list call.
type Kind string

const (
	KindNone             Kind = ""
	KindValidationFailed Kind = "validation_failed"
	KindDuplicateLead    Kind = "duplicate_lead"
	KindRateLimited      Kind = "rate_limited"
	KindInvalidArgument  Kind = "invalid_argument"
	KindNotFound         Kind = "not_found"
	KindStoreFailure     Kind = "store_failure"
)

// KindOf classifies err. Unknown errors are store failures.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return KindValidationFailed
	case errors.Is(err, ErrDuplicateLead):
		return KindDuplicateLead
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindStoreFailure
	}
}

// ClientCaused reports whether k maps to a 4xx outcome.
func (k Kind) ClientCaused() bool {
	switch k {
	case KindValidationFailed, KindDuplicateLead, KindRateLimited, KindInvalidArgument, KindNotFound:
		return true
	default:
		return false
	}
}

func storeFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreFailure, op, err)
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
