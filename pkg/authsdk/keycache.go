package authsdk

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aussiebroadwan/tokentrust/pkg/jwtx"
	"github.com/aussiebroadwan/tokentrust/pkg/obs"
	"github.com/aussiebroadwan/tokentrust/pkg/slogx"
)

const (
	// DefaultKeyTTL is how long a fetched key counts as fresh.
	DefaultKeyTTL = 5 * time.Minute
	// DefaultKeyFetchTimeout bounds a single fetch from the issuer.
	DefaultKeyFetchTimeout = 3 * time.Second
)

// KeyFetcher retrieves the current public key from wherever it is published.
type KeyFetcher func(ctx context.Context) (*rsa.PublicKey, error)

// KeyStatus is a point-in-time view of a KeyCache.
type KeyStatus struct {
	HasKey    bool
	FetchedAt time.Time
	Stale     bool
}

// KeyCache caches the issuer's public key. A stale key is refetched on the
// next Get; if that fetch fails the stale key is returned instead of an
// error. Only one fetch runs at a time.
//
// KeyCache implements jwtx.KeySource.
type KeyCache struct {
	fetch   KeyFetcher
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time

	mu        sync.RWMutex
	key       *rsa.PublicKey
	fetchedAt time.Time

	// refreshing is set while a stale key is being replaced.
	refreshing atomic.Bool
	group      singleflight.Group
}

var _ jwtx.KeySource = (*KeyCache)(nil)

// KeyCacheOption configures a KeyCache.
type KeyCacheOption func(*keyCacheOptions)

type keyCacheOptions struct {
	ttl     time.Duration
	timeout time.Duration
	format  KeyFormat
	now     func() time.Time
	fetch   KeyFetcher
}

// WithTTL sets how long a key is fresh. Non-positive values are ignored.
func WithTTL(ttl time.Duration) KeyCacheOption {
	return func(o *keyCacheOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithFetchTimeout bounds each fetch. Non-positive values are ignored.
func WithFetchTimeout(d time.Duration) KeyCacheOption {
	return func(o *keyCacheOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithKeyFormat picks the JWK or PEM endpoint.
func WithKeyFormat(f KeyFormat) KeyCacheOption {
	return func(o *keyCacheOptions) { o.format = f }
}

// WithCacheClock overrides time.Now.
func WithCacheClock(now func() time.Time) KeyCacheOption {
	return func(o *keyCacheOptions) { o.now = now }
}

// WithFetcher replaces the SDK client as the key source.
func WithFetcher(f KeyFetcher) KeyCacheOption {
	return func(o *keyCacheOptions) { o.fetch = f }
}

// NewKeyCache creates an empty cache that fetches from client. client may be
// nil when WithFetcher is given.
func NewKeyCache(client *SDKClient, opts ...KeyCacheOption) *KeyCache {
	o := keyCacheOptions{
		ttl:     DefaultKeyTTL,
		timeout: DefaultKeyFetchTimeout,
		format:  KeyFormatJWK,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fetch == nil {
		format := o.format
		o.fetch = func(ctx context.Context) (*rsa.PublicKey, error) {
			return client.FetchPublicKey(ctx, format)
		}
	}

	return &KeyCache{
		fetch:   o.fetch,
		ttl:     o.ttl,
		timeout: o.timeout,
		now:     o.now,
	}
}

// PublicKey implements jwtx.KeySource.
func (c *KeyCache) PublicKey(ctx context.Context) (*rsa.PublicKey, error) {
	return c.Get(ctx)
}

// Get returns the cached key, refetching it first when it is missing or
// stale. Returns jwtx.ErrKeyUnavailable only when no key was ever fetched.
func (c *KeyCache) Get(ctx context.Context) (*rsa.PublicKey, error) {
	key, fresh := c.cached()
	if fresh {
		return key, nil
	}

	if key == nil {
		// Nothing to fall back on, so wait for whichever fetch is running.
		fetched, err := c.refetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", jwtx.ErrKeyUnavailable, err)
		}
		return fetched, nil
	}

	if !c.refreshing.CompareAndSwap(false, true) {
		obs.KeyStaleServed.Inc()
		return key, nil
	}
	defer c.refreshing.Store(false)

	fetched, err := c.refetch(ctx)
	if err != nil {
		obs.KeyStaleServed.Inc()
		slogx.FromContext(ctx).Warn("key cache: refetch failed, serving stale key",
			"err", err, "age", c.now().Sub(c.Status().FetchedAt).String())
		return key, nil
	}
	return fetched, nil
}

// Prime fetches a key if the cache does not have a fresh one. Call it at
// startup so the first request does not pay for the fetch.
func (c *KeyCache) Prime(ctx context.Context) error {
	_, err := c.Get(ctx)
	return err
}

// Status reports whether a key is held and how old it is.
func (c *KeyCache) Status() KeyStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return KeyStatus{
		HasKey:    c.key != nil,
		FetchedAt: c.fetchedAt,
		Stale:     c.key == nil || !c.freshLocked(),
	}
}

func (c *KeyCache) cached() (*rsa.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.key, c.key != nil && c.freshLocked()
}

func (c *KeyCache) freshLocked() bool {
	return c.now().Sub(c.fetchedAt) < c.ttl
}

// refetch runs at most one fetch at a time; concurrent callers share its
// result.
func (c *KeyCache) refetch(ctx context.Context) (*rsa.PublicKey, error) {
	v, err, _ := c.group.Do("key", func() (any, error) {
		// A fetch that finished while we queued already did the work.
		if key, fresh := c.cached(); fresh {
			return key, nil
		}

		// Callers share this fetch, so one caller going away must not cancel it.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		key, err := c.fetch(fetchCtx)
		if err == nil && key == nil {
			err = errors.New("issuer returned no key")
		}
		if err != nil {
			obs.KeyFetches.WithLabelValues("error").Inc()
			return nil, err
		}
		obs.KeyFetches.WithLabelValues("ok").Inc()

		c.mu.Lock()
		c.key = key
		c.fetchedAt = c.now()
		c.mu.Unlock()

		return key, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*rsa.PublicKey), nil
}
