// Package approval implements the human-in-the-loop approval lifecycle:
// a TTL-bound pending-action store, chat reply parsing, and dispatch of the
// approved tool call.
package approval

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Store.Get for missing keys.
var ErrKeyNotFound = errors.New("key not found")

// Store is the key-value backend holding pending approvals. Process-wide
// visibility comes from the backing service, not shared memory.
type Store interface {
	// SetEx writes a value with a TTL.
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get reads a value. Returns ErrKeyNotFound for missing keys.
	Get(ctx context.Context, key string) ([]byte, error)

	// Keys returns all keys with the given prefix, sorted lexicographically.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// CompareAndSet atomically replaces the value only if the stored bytes
	// equal expected. Returns false when the value changed underneath or the
	// key no longer exists.
	CompareAndSet(ctx context.Context, key string, expected, next []byte, ttl time.Duration) (bool, error)
}
