// Package cache is the short-TTL key-value store used for intake
// rate-limit suppression and for list-result caching.
package cache

import (
	"context"
	"errors"
	"time"
)

// Cache is a key-value store with per-key expiry.
//
// Keys are independent: callers never need cross-key coordination.
// A missing or expired key is reported as (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

var ErrInvalidTTL = errors.New("cache: ttl must be > 0")
