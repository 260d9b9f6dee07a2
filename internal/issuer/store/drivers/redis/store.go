// Package redis is the refresh token store for multi-node deployments. Every
// issuer replica shares one Redis, so a revocation on one replica is seen by
// the next read on any other.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/tokentrust/internal/issuer/store"
)

const (
	// DefaultOpTimeout bounds every Redis round trip.
	DefaultOpTimeout = 2 * time.Second

	keyPrefix = "refresh:"
)

// Config holds Redis connection settings.
type Config struct {
	Addr      string
	Password  string
	DB        int
	OpTimeout time.Duration
}

type Store struct {
	client    *goredis.Client
	opTimeout time.Duration
	tokens    *refreshTokensRepo
}

// NewStore creates a client for cfg. It does not dial; use Ping to check
// reachability.
func NewStore(cfg Config) *Store {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		// No retries: an unreachable store should fail fast and reject.
		MaxRetries: -1,
	})
	return newStore(client, cfg.OpTimeout)
}

func newStore(client *goredis.Client, opTimeout time.Duration) *Store {
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	s := &Store{client: client, opTimeout: opTimeout}
	s.tokens = &refreshTokensRepo{s: s}
	return s
}

func (s *Store) RefreshTokens() store.RefreshTokens { return s.tokens }

func (s *Store) Close() error { return s.client.Close() }

// Ping verifies Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return mapErr(s.client.Ping(ctx).Err())
}

// mapErr converts go-redis errors to store errors. redis.Nil is a miss;
// anything else (timeouts, refused connections, server errors) is
// ErrUnavailable.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, goredis.Nil):
		return store.ErrNotFound
	default:
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
}
