// Package sqlite is the refresh token store for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aussiebroadwan/tokentrust/internal/issuer/store"
)

// DefaultOpTimeout bounds every query.
const DefaultOpTimeout = 2 * time.Second

type Store struct {
	db        *sql.DB
	opTimeout time.Duration
	now       func() time.Time
	tokens    *refreshTokensRepo
}

// Option configures a Store.
type Option func(*Store)

// WithOpTimeout bounds each query. Non-positive values are ignored.
func WithOpTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// WithClock overrides time.Now for expiry bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore opens the database at dsn. Call ApplyMigrations before use.
func NewStore(dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, opTimeout: DefaultOpTimeout, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.tokens = &refreshTokensRepo{s: s}
	return s, nil
}

func (s *Store) RefreshTokens() store.RefreshTokens { return s.tokens }

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return mapErr(s.db.PingContext(ctx))
}

// DeleteExpired removes rows past their expiry.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return store.ErrNotFound
	default:
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
}
