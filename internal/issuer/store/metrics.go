package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/tokentrust/pkg/obs"
)

// Instrument wraps s so every refresh token call is timed and failures are
// counted.
func Instrument(s Store) Store {
	return &instrumented{Store: s, tokens: &instrumentedTokens{next: s.RefreshTokens()}}
}

type instrumented struct {
	Store
	tokens *instrumentedTokens
}

func (s *instrumented) RefreshTokens() RefreshTokens { return s.tokens }

// DeleteExpired forwards to the wrapped store if it can sweep.
func (s *instrumented) DeleteExpired(ctx context.Context) (int64, error) {
	sw, ok := s.Store.(Sweeper)
	if !ok {
		return 0, nil
	}
	return sw.DeleteExpired(ctx)
}

type instrumentedTokens struct {
	next RefreshTokens
}

func (t *instrumentedTokens) Put(ctx context.Context, tokenID, subject string, ttl time.Duration) error {
	defer observe("put", time.Now())
	return record("put", t.next.Put(ctx, tokenID, subject, ttl))
}

func (t *instrumentedTokens) Get(ctx context.Context, tokenID string) (string, error) {
	defer observe("get", time.Now())
	subject, err := t.next.Get(ctx, tokenID)
	return subject, record("get", err)
}

func (t *instrumentedTokens) Delete(ctx context.Context, tokenID string) error {
	defer observe("delete", time.Now())
	return record("delete", t.next.Delete(ctx, tokenID))
}

func observe(op string, start time.Time) {
	obs.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// record counts err unless it is a plain miss.
func record(op string, err error) error {
	if err != nil && !errors.Is(err, ErrNotFound) {
		obs.StoreErrors.WithLabelValues(op).Inc()
	}
	return err
}
