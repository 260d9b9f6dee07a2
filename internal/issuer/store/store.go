package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound means the token id has no live entry: never stored, deleted
	// or expired. For refresh tokens that all means revoked.
	ErrNotFound = errors.New("store: not found")

	// ErrUnavailable means the backend could not answer in time. Callers
	// must treat it as a rejection.
	ErrUnavailable = errors.New("store: unavailable")
)

// Store is the root data access interface. Concrete drivers (redis, sqlite,
// memory) implement this.
type Store interface {
	RefreshTokens() RefreshTokens

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error
}

// RefreshTokens tracks which refresh tokens are still live, keyed by token
// id (the token's fingerprint, never the token itself).
type RefreshTokens interface {
	// Put records tokenID -> subject. The entry disappears after ttl.
	Put(ctx context.Context, tokenID, subject string, ttl time.Duration) error

	// Get returns the subject stored for tokenID, or ErrNotFound.
	Get(ctx context.Context, tokenID string) (string, error)

	// Delete removes tokenID. Deleting a missing entry is not an error.
	Delete(ctx context.Context, tokenID string) error
}

// Sweeper is implemented by drivers whose expired entries linger until
// removed. Redis expires keys itself and does not implement it.
type Sweeper interface {
	// DeleteExpired removes expired entries and returns how many went.
	DeleteExpired(ctx context.Context) (int64, error)
}
