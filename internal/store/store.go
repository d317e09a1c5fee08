// Package store provides the key-value state store with per-key expiration that backs the
// enforcement records. Every write carries a TTL so storage stays bounded without maintenance.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrTTLRequired is returned when a write has no positive expiration.
var ErrTTLRequired = errors.New("store: ttl must be positive")

// Store is a key-value store with per-key expiration.
type Store interface {
	// Get returns the value of key; ok is false when the key is absent or expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set writes key with the given ttl, replacing any previous value and expiration.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// ScanPrefix lists the live keys starting with prefix.
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)
}

// Purger is implemented by backends whose expired entries must be removed explicitly.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}
