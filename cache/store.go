// Package cache provides the TTL-bounded key/value stores used to memoize derived CREST data.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("cache: key not found")

// Store is a byte oriented TTL store. Values are returned verbatim as stored.
//
// Implementations must be safe for concurrent use. Concurrent Set calls for
// the same key may race; the last write wins.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
