package service_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tokentrust/internal/issuer/domain"
	"github.com/aussiebroadwan/tokentrust/internal/issuer/identity"
	"github.com/aussiebroadwan/tokentrust/internal/issuer/service"
	"github.com/aussiebroadwan/tokentrust/internal/issuer/store"
	"github.com/aussiebroadwan/tokentrust/internal/issuer/store/drivers/memory"
	"github.com/aussiebroadwan/tokentrust/pkg/cryptox"
	"github.com/aussiebroadwan/tokentrust/pkg/jwtx"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "service-pepper")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

var alice = domain.Principal{Username: "alice", UserID: "42", Email: "alice@x.com", Role: "USER"}

type fixture struct {
	svc   *service.TokenService
	keys  *jwtx.KeyPair
	store *memory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	kp, err := jwtx.GenerateKeyPair(2048)
	require.NoError(t, err)
	signer, err := jwtx.NewRS256Signer(kp)
	require.NoError(t, err)

	hash, err := cryptox.HashPassword("s3cret")
	require.NoError(t, err)
	users, err := identity.NewDirectory(identity.User{
		Username:     alice.Username,
		UserID:       alice.UserID,
		Email:        alice.Email,
		Role:         alice.Role,
		PasswordHash: hash,
	})
	require.NoError(t, err)

	mem := memory.NewStore(nil)
	return &fixture{
		svc: &service.TokenService{
			Signer:     signer,
			Verifier:   jwtx.NewVerifierRS256(kp.Source()),
			Store:      mem,
			Identities: users,
		},
		keys:  kp,
		store: mem,
	}
}

func payload(t *testing.T, token string) map[string]any {
	t.Helper()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestIssueAccessToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, err := f.svc.IssueAccessToken(alice)
	require.NoError(t, err)

	claims, err := f.svc.Verifier.Verify(ctx, token, alice.Username)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)
	require.Empty(t, claims.UserID)

	_, err = f.svc.Verifier.Verify(ctx, token, "bob")
	require.ErrorIs(t, err, jwtx.ErrSubjectMismatch)
}

func TestIssueAccessTokenWithClaims(t *testing.T) {
	f := newFixture(t)
	f.svc.Now = func() time.Time { return time.Unix(1700000000, 0) }

	token, err := f.svc.IssueAccessTokenWithClaims("alice", "42", "alice@x.com", "USER")
	require.NoError(t, err)

	p := payload(t, token)
	require.Equal(t, "alice@x.com", p["sub"])
	require.Equal(t, "42", p["userId"])
	require.Equal(t, "alice@x.com", p["email"])
	require.Equal(t, "USER", p["role"])
	require.Equal(t, "alice", p["username"])
	require.EqualValues(t, 1700000000, p["iat"])
	require.EqualValues(t, 1700000900, p["exp"])
}

func TestRefreshTokenLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	refresh, err := f.svc.IssueRefreshToken(ctx, "alice")
	require.NoError(t, err)

	p := payload(t, refresh)
	require.Equal(t, "alice", p["sub"])
	require.InDelta(t, (7 * 24 * time.Hour).Seconds(), p["exp"].(float64)-p["iat"].(float64), 0)

	subject, err := f.svc.ValidateRefreshToken(ctx, refresh)
	require.NoError(t, err)
	require.Equal(t, "alice", subject)

	require.NoError(t, f.svc.RevokeRefreshToken(ctx, refresh))

	// exp is a week away but the entry is gone.
	_, err = f.svc.ValidateRefreshToken(ctx, refresh)
	require.ErrorIs(t, err, service.ErrRefreshRevoked)

	// Revoking twice is fine.
	require.NoError(t, f.svc.RevokeRefreshToken(ctx, refresh))
}

func TestRevokeRefreshTokenByID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	refresh, err := f.svc.IssueRefreshToken(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, f.svc.RevokeRefreshTokenByID(ctx, cryptox.FingerprintToken(refresh)))
	_, err = f.svc.ValidateRefreshToken(ctx, refresh)
	require.ErrorIs(t, err, service.ErrRefreshRevoked)
}

func TestValidateRefreshTokenRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("unknown token", func(t *testing.T) {
		other, err := f.svc.IssueAccessToken(alice)
		require.NoError(t, err)
		_, err = f.svc.ValidateRefreshToken(ctx, other)
		require.ErrorIs(t, err, service.ErrRefreshRevoked)
	})

	t.Run("stored under a different subject", func(t *testing.T) {
		token, err := f.svc.IssueAccessToken(alice)
		require.NoError(t, err)
		require.NoError(t, f.store.Put(ctx, cryptox.FingerprintToken(token), "bob", time.Hour))

		_, err = f.svc.ValidateRefreshToken(ctx, token)
		require.ErrorIs(t, err, service.ErrInvalidRefresh)
		require.ErrorIs(t, err, jwtx.ErrSubjectMismatch)
	})

	t.Run("expired but still stored", func(t *testing.T) {
		past := time.Now().Add(-30 * 24 * time.Hour)
		f.svc.Now = func() time.Time { return past }
		defer func() { f.svc.Now = nil }()

		token, err := f.svc.IssueRefreshToken(ctx, "alice")
		require.NoError(t, err)
		// The memory store keeps it a week from real now.
		_, err = f.svc.ValidateRefreshToken(ctx, token)
		require.ErrorIs(t, err, service.ErrInvalidRefresh)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("forged signature", func(t *testing.T) {
		otherKP, err := jwtx.GenerateKeyPair(2048)
		require.NoError(t, err)
		otherSigner, err := jwtx.NewRS256Signer(otherKP)
		require.NoError(t, err)
		forged, err := otherSigner.Sign(jwtx.NewPlainClaims("alice", time.Hour, time.Now()))
		require.NoError(t, err)
		require.NoError(t, f.store.Put(ctx, cryptox.FingerprintToken(forged), "alice", time.Hour))

		_, err = f.svc.ValidateRefreshToken(ctx, forged)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})
}

type brokenTokens struct{}

func (brokenTokens) Put(context.Context, string, string, time.Duration) error {
	return store.ErrUnavailable
}
func (brokenTokens) Get(context.Context, string) (string, error) { return "", store.ErrUnavailable }
func (brokenTokens) Delete(context.Context, string) error       { return store.ErrUnavailable }

type brokenStore struct{}

func (brokenStore) RefreshTokens() store.RefreshTokens { return brokenTokens{} }
func (brokenStore) Ping(context.Context) error         { return store.ErrUnavailable }
func (brokenStore) Close() error                       { return nil }

func TestStoreOutageFailsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	refresh, err := f.svc.IssueRefreshToken(ctx, "alice")
	require.NoError(t, err)

	f.svc.Store = brokenStore{}

	_, err = f.svc.ValidateRefreshToken(ctx, refresh)
	require.ErrorIs(t, err, service.ErrStoreUnavailable)

	_, err = f.svc.ExchangeRefreshToken(ctx, refresh)
	require.ErrorIs(t, err, service.ErrStoreUnavailable)

	token, err := f.svc.IssueRefreshToken(ctx, "alice")
	require.ErrorIs(t, err, service.ErrStoreUnavailable)
	require.Empty(t, token)

	_, err = f.svc.Login(ctx, "alice", "s3cret")
	require.ErrorIs(t, err, service.ErrStoreUnavailable)

	require.ErrorIs(t, f.svc.RevokeRefreshToken(ctx, refresh), service.ErrStoreUnavailable)
}

func TestLoginAndExchange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, "nobody", "s3cret")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	pair, err := f.svc.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)
	require.Equal(t, 15*time.Minute, pair.ExpiresIn)

	claims, err := f.svc.Verifier.Verify(ctx, pair.AccessToken, "alice@x.com")
	require.NoError(t, err)
	require.Equal(t, "42", claims.UserID)

	exchanged, err := f.svc.ExchangeRefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Empty(t, exchanged.RefreshToken)

	claims, err = f.svc.Verifier.Verify(ctx, exchanged.AccessToken, "alice@x.com")
	require.NoError(t, err)
	require.Equal(t, "USER", claims.Role)

	require.NoError(t, f.svc.RevokeRefreshToken(ctx, pair.RefreshToken))
	_, err = f.svc.ExchangeRefreshToken(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrRefreshRevoked)
}

func TestHousekeepingSweep(t *testing.T) {
	now := time.Now()
	mem := memory.NewStore(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, mem.Put(ctx, "old", "alice", time.Minute))
	require.NoError(t, mem.Put(ctx, "new", "alice", time.Hour))
	now = now.Add(2 * time.Minute)

	hk := service.NewHousekeepingService(mem, slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
	require.Equal(t, time.Hour, hk.Interval)
	require.EqualValues(t, 1, hk.Sweep(ctx))
	require.Zero(t, hk.Sweep(ctx))

	_, err := mem.Get(ctx, "new")
	require.NoError(t, err)
}

func TestHousekeepingSweepsOnStart(t *testing.T) {
	now := time.Now()
	mem := memory.NewStore(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, mem.Put(ctx, "old", "alice", time.Minute))
	now = now.Add(2 * time.Minute)

	hk := service.NewHousekeepingService(mem, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Hour)
	hk.Start()
	require.Eventually(t, func() bool { return mem.Len() == 0 }, time.Second, 10*time.Millisecond)
	hk.Stop()
	hk.Stop()
}
