package sqlite_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tokentrust/internal/issuer/store"
	"github.com/aussiebroadwan/tokentrust/internal/issuer/store/drivers/sqlite"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, c *clock) *sqlite.Store {
	t.Helper()

	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "issuer.db"), sqlite.WithClock(c.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	// Applying twice is a no-op.
	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestRefreshTokens(t *testing.T) {
	c := &clock{t: time.Unix(1700000000, 0)}
	s := newTestStore(t, c)
	ctx := context.Background()
	tokens := s.RefreshTokens()

	require.NoError(t, s.Ping(ctx))

	require.NoError(t, tokens.Put(ctx, "tok-1", "alice", time.Hour))
	subject, err := tokens.Get(ctx, "tok-1")
	require.NoError(t, err)
	require.Equal(t, "alice", subject)

	// Put on an existing id replaces the entry.
	require.NoError(t, tokens.Put(ctx, "tok-1", "alice2", time.Hour))
	subject, err = tokens.Get(ctx, "tok-1")
	require.NoError(t, err)
	require.Equal(t, "alice2", subject)

	require.NoError(t, tokens.Delete(ctx, "tok-1"))
	_, err = tokens.Get(ctx, "tok-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, tokens.Delete(ctx, "tok-1"))
}

func TestExpiredEntriesAreHiddenAndSwept(t *testing.T) {
	c := &clock{t: time.Unix(1700000000, 0)}
	s := newTestStore(t, c)
	ctx := context.Background()
	tokens := s.RefreshTokens()

	require.NoError(t, tokens.Put(ctx, "short", "alice", time.Minute))
	require.NoError(t, tokens.Put(ctx, "long", "bob", time.Hour))

	c.Advance(2 * time.Minute)

	_, err := tokens.Get(ctx, "short")
	require.ErrorIs(t, err, store.ErrNotFound)

	n, err := s.DeleteExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	subject, err := tokens.Get(ctx, "long")
	require.NoError(t, err)
	require.Equal(t, "bob", subject)
}

func TestClosedDatabaseIsUnavailable(t *testing.T) {
	c := &clock{t: time.Now()}
	s := newTestStore(t, c)
	require.NoError(t, s.Close())

	_, err := s.RefreshTokens().Get(context.Background(), "tok")
	require.ErrorIs(t, err, store.ErrUnavailable)
}
