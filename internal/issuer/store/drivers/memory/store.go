// Package memory is an in-process refresh token store for development and
// tests. Entries do not survive a restart and are not shared between
// replicas.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aussiebroadwan/tokentrust/internal/issuer/store"
)

type entry struct {
	subject   string
	expiresAt time.Time
}

type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewStore returns an empty store. now may be nil.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{entries: make(map[string]entry), now: now}
}

func (s *Store) RefreshTokens() store.RefreshTokens { return s }
func (s *Store) Ping(context.Context) error         { return nil }
func (s *Store) Close() error                       { return nil }

func (s *Store) Put(_ context.Context, tokenID, subject string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[tokenID] = entry{subject: subject, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *Store) Get(_ context.Context, tokenID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[tokenID]
	if !ok || !s.now().Before(e.expiresAt) {
		return "", store.ErrNotFound
	}
	return e.subject, nil
}

func (s *Store) Delete(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, tokenID)
	return nil
}

// DeleteExpired drops expired entries.
func (s *Store) DeleteExpired(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
			n++
		}
	}
	return n, nil
}

// Len counts entries, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
