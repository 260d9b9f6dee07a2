package http_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	issuerhttp "github.com/aussiebroadwan/tokentrust/internal/issuer/http"
	"github.com/aussiebroadwan/tokentrust/internal/issuer/identity"
	"github.com/aussiebroadwan/tokentrust/internal/issuer/service"
	"github.com/aussiebroadwan/tokentrust/internal/issuer/store"
	"github.com/aussiebroadwan/tokentrust/internal/issuer/store/drivers/memory"
	"github.com/aussiebroadwan/tokentrust/pkg/authsdk"
	"github.com/aussiebroadwan/tokentrust/pkg/cryptox"
	"github.com/aussiebroadwan/tokentrust/pkg/httpx"
	"github.com/aussiebroadwan/tokentrust/pkg/jwtx"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "issuer-http-pepper")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

// switchableStore lets a test take the refresh store down mid-flight.
type switchableStore struct {
	store.Store
	down atomic.Bool
}

type downTokens struct{}

func (downTokens) Put(context.Context, string, string, time.Duration) error {
	return store.ErrUnavailable
}
func (downTokens) Get(context.Context, string) (string, error) { return "", store.ErrUnavailable }
func (downTokens) Delete(context.Context, string) error       { return store.ErrUnavailable }

func (s *switchableStore) RefreshTokens() store.RefreshTokens {
	if s.down.Load() {
		return downTokens{}
	}
	return s.Store.RefreshTokens()
}

func (s *switchableStore) Ping(ctx context.Context) error {
	if s.down.Load() {
		return store.ErrUnavailable
	}
	return s.Store.Ping(ctx)
}

type issuer struct {
	srv    *httptest.Server
	client *authsdk.SDKClient
	keys   *jwtx.KeyPair
	store  *switchableStore
}

func newIssuer(t *testing.T, limits httpx.RateLimitProfiles) *issuer {
	t.Helper()

	kp, err := jwtx.GenerateKeyPair(2048)
	require.NoError(t, err)
	signer, err := jwtx.NewRS256Signer(kp)
	require.NoError(t, err)
	verifier := jwtx.NewVerifierRS256(kp.Source())

	userHash, err := cryptox.HashPassword("s3cret")
	require.NoError(t, err)
	adminHash, err := cryptox.HashPassword("r00t")
	require.NoError(t, err)
	users, err := identity.NewDirectory(
		identity.User{Username: "alice", UserID: "42", Email: "alice@x.com", Role: "USER", PasswordHash: userHash},
		identity.User{Username: "root", UserID: "1", Email: "root@x.com", Role: "ADMIN", PasswordHash: adminHash},
	)
	require.NoError(t, err)

	st := &switchableStore{Store: memory.NewStore(nil)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := issuerhttp.NewRouter(kp, verifier, "test", st, limits, logger)
	router.TokenService = &service.TokenService{
		Signer:     signer,
		Verifier:   verifier,
		Store:      st,
		Identities: users,
	}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &issuer{srv: srv, client: authsdk.NewSDKClient(srv.URL), keys: kp, store: st}
}

func relaxedLimits() httpx.RateLimitProfiles {
	relaxed := httpx.RateLimitConfig{RequestsPerWindow: 10000, Window: time.Minute, Burst: 10000}
	return httpx.RateLimitProfiles{Strict: relaxed, Moderate: relaxed, Lenient: relaxed, Public: relaxed}
}

func requireAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	apiErr, ok := err.(*authsdk.APIError)
	require.True(t, ok, "expected *authsdk.APIError, got %T: %v", err, err)
	require.Equal(t, status, apiErr.StatusCode)
	require.Equal(t, code, apiErr.Code)
}

func TestLoginRefreshRevokeFlow(t *testing.T) {
	iss := newIssuer(t, relaxedLimits())
	ctx := context.Background()

	tokens, err := iss.client.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)
	require.Equal(t, "Bearer", tokens.TokenType)
	require.Equal(t, 900, tokens.ExpiresIn)
	require.NotEmpty(t, tokens.RefreshToken)

	// A remote verifier only ever sees the published key.
	verifier := jwtx.NewVerifierRS256(authsdk.NewKeyCache(iss.client))
	claims, err := verifier.Verify(ctx, tokens.AccessToken, "alice@x.com")
	require.NoError(t, err)
	require.Equal(t, "42", claims.UserID)
	require.Equal(t, "USER", claims.Role)

	refreshed, err := iss.client.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	require.Empty(t, refreshed.RefreshToken)
	require.True(t, verifier.Valid(ctx, refreshed.AccessToken, "alice@x.com"))

	require.NoError(t, iss.client.Revoke(ctx, tokens.RefreshToken))
	// Unknown tokens revoke fine too.
	require.NoError(t, iss.client.Revoke(ctx, "not-a-token"))

	_, err = iss.client.Refresh(ctx, tokens.RefreshToken)
	requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidGrant)
}

func TestCredentialFailuresLookTheSame(t *testing.T) {
	iss := newIssuer(t, relaxedLimits())
	ctx := context.Background()

	_, wrongPassword := iss.client.Login(ctx, "alice", "nope")
	_, unknownUser := iss.client.Login(ctx, "mallory", "nope")
	_, badRefresh := iss.client.Refresh(ctx, "a.b.c")

	for _, err := range []error{wrongPassword, unknownUser, badRefresh} {
		requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidGrant)
		require.Equal(t, "invalid credentials", err.(*authsdk.APIError).Description)
	}
}

func TestBadRequests(t *testing.T) {
	iss := newIssuer(t, relaxedLimits())

	resp, err := http.Post(iss.srv.URL+"/v1/token", "application/json", strings.NewReader(`{"username":"alice"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, err = iss.client.Login(context.Background(), "alice", "")
	requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest)
}

func TestRefreshStoreOutage(t *testing.T) {
	iss := newIssuer(t, relaxedLimits())
	ctx := context.Background()

	tokens, err := iss.client.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)

	iss.store.down.Store(true)

	_, err = iss.client.Refresh(ctx, tokens.RefreshToken)
	requireAPIError(t, err, http.StatusServiceUnavailable, authsdk.ErrorCodeTemporarilyUnavailable)

	_, err = iss.client.Login(ctx, "alice", "s3cret")
	requireAPIError(t, err, http.StatusServiceUnavailable, authsdk.ErrorCodeTemporarilyUnavailable)

	_, err = iss.client.GetReadiness(ctx)
	requireAPIError(t, err, http.StatusServiceUnavailable, authsdk.ErrorCodeServerError)

	iss.store.down.Store(false)
	health, err := iss.client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, authsdk.StatusOK, health.Checks.Store)
}

func TestAdminRevokeByID(t *testing.T) {
	iss := newIssuer(t, relaxedLimits())
	ctx := context.Background()

	user, err := iss.client.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)
	admin, err := iss.client.Login(ctx, "root", "r00t")
	require.NoError(t, err)

	tokenID := cryptox.FingerprintToken(user.RefreshToken)

	err = iss.client.RevokeByID(ctx, user.AccessToken, tokenID)
	requireAPIError(t, err, http.StatusForbidden, authsdk.ErrorCodeInsufficientScope)

	err = iss.client.RevokeByID(ctx, "garbage", tokenID)
	requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken)

	require.NoError(t, iss.client.RevokeByID(ctx, admin.AccessToken, tokenID))

	_, err = iss.client.Refresh(ctx, user.RefreshToken)
	requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidGrant)
}

func TestKeyPublication(t *testing.T) {
	iss := newIssuer(t, relaxedLimits())
	ctx := context.Background()

	jwk, err := iss.client.GetJWK(ctx)
	require.NoError(t, err)
	require.Equal(t, "RSA", jwk.Kty)
	require.Equal(t, "RS256", jwk.Alg)
	require.Equal(t, "sig", jwk.Use)
	require.Equal(t, iss.keys.KID(), jwk.Kid)
	require.NotContains(t, jwk.N, "=")

	pub, err := jwk.RSAPublicKey()
	require.NoError(t, err)
	require.True(t, pub.Equal(iss.keys.Public()))

	pem, err := iss.client.GetPublicKeyPEM(ctx)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(pem, "-----BEGIN PUBLIC KEY-----\n"))
	require.Contains(t, pem, "-----END PUBLIC KEY-----")

	jwks, err := iss.client.GetJWKS(ctx)
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, *jwk, jwks.Keys[0])

	resp, err := http.Get(iss.srv.URL + "/v1/keys/pem")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "application/x-pem-file", resp.Header.Get("Content-Type"))
	require.Contains(t, resp.Header.Get("Cache-Control"), "max-age")
}

func TestHealthAndMetrics(t *testing.T) {
	iss := newIssuer(t, relaxedLimits())
	ctx := context.Background()

	live, err := iss.client.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, authsdk.StatusOK, live.Status)
	require.Equal(t, "test", live.Version)

	ready, err := iss.client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, authsdk.StatusOK, ready.Checks.Key)

	_, err = iss.client.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)

	resp, err := http.Get(iss.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `tokentrust_tokens_issued_total{kind="refresh"}`)
}

func TestLoginRateLimit(t *testing.T) {
	limits := relaxedLimits()
	limits.Strict = httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}
	iss := newIssuer(t, limits)

	post := func(username string) *http.Response {
		resp, err := http.PostForm(iss.srv.URL+"/v1/token", url.Values{
			"username": {username},
			"password": {"nope"},
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	require.Equal(t, http.StatusUnauthorized, post("alice").StatusCode)
	require.Equal(t, http.StatusUnauthorized, post("alice").StatusCode)

	limited := post("alice")
	require.Equal(t, http.StatusTooManyRequests, limited.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(limited.Body).Decode(&body))
	require.Equal(t, "rate_limit_exceeded", body["error"])

	// The bucket is per origin and username.
	require.Equal(t, http.StatusUnauthorized, post("root").StatusCode)
}
