package tokentrust_test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/tokentrust/internal/appconfig"
	gatewayapp "github.com/aussiebroadwan/tokentrust/internal/gateway/app"
	issuerapp "github.com/aussiebroadwan/tokentrust/internal/issuer/app"
	"github.com/aussiebroadwan/tokentrust/pkg/authsdk"
	"github.com/aussiebroadwan/tokentrust/pkg/cryptox"
	"github.com/aussiebroadwan/tokentrust/pkg/httpx"
)

/*
 * Issuer and gateway run in-process on loopback listeners. The refresh
 * store is Redis in a container when Docker is around, memory otherwise.
 */

const (
	aliceUsername = "alice"
	alicePassword = "s3cret"
	aliceEmail    = "alice@x.com"
	aliceUserID   = "42"
)

func relaxedLimits() httpx.RateLimitProfiles {
	relaxed := httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}
	return httpx.RateLimitProfiles{Strict: relaxed, Moderate: relaxed, Lenient: relaxed, Public: relaxed}
}

func common() appconfig.Common {
	return appconfig.Common{
		Env:                 "test",
		LogLevel:            "error",
		LogFormat:           "text",
		ShutdownGracePeriod: 5 * time.Second,
		RateLimits:          relaxedLimits(),
	}
}

// writeUsersFile writes a single-user identity file hashed with the pepper
// in dir.
func writeUsersFile(t *testing.T, dir string) string {
	t.Helper()

	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))
	hash, err := cryptox.HashPassword(alicePassword)
	require.NoError(t, err)

	body := fmt.Sprintf(`users:
  - username: %s
    user_id: "%s"
    email: %s
    role: USER
    password_hash: "%s"
`, aliceUsername, aliceUserID, aliceEmail, hash)

	path := filepath.Join(dir, "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// setupRedis starts a Redis container, or returns "" when Docker is not
// usable so callers can fall back to the memory driver.
func setupRedis(t *testing.T) (addr string, container testcontainers.Container) {
	t.Helper()
	if testing.Short() {
		return "", nil
	}

	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Logf("redis container unavailable, using memory store: %v", err)
		return "", nil
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return net.JoinHostPort(host, port.Port()), c
}

type issuer struct {
	URL   string
	Redis testcontainers.Container // nil with the memory store
	stop  func()
}

// startIssuer runs the issuer until the test ends or stop is called.
func startIssuer(t *testing.T) *issuer {
	t.Helper()
	dir := t.TempDir()

	cfg := issuerapp.Config{
		Common:               common(),
		Issuer:               "tokentrust-e2e",
		RSABits:              2048,
		AccessTTL:            15 * time.Minute,
		RefreshTTL:           7 * 24 * time.Hour,
		StoreDriver:          issuerapp.StoreMemory,
		StoreTimeout:         time.Second,
		HousekeepingInterval: time.Hour,
		UsersFile:            writeUsersFile(t, dir),
		PepperFile:           filepath.Join(dir, "pepper"),
	}

	addr, redis := setupRedis(t)
	if addr != "" {
		cfg.StoreDriver = issuerapp.StoreRedis
		cfg.RedisAddr = addr
	}

	application, err := issuerapp.New(cfg)
	require.NoError(t, err)

	iss := &issuer{Redis: redis}
	iss.URL, iss.stop = serve(t, application.Serve)
	return iss
}

type gateway struct {
	URL  string
	stop func()
}

func startGateway(t *testing.T, issuerURL string, upstream *url.URL) *gateway {
	t.Helper()

	cfg := gatewayapp.Config{
		Common:          common(),
		IssuerURL:       issuerURL,
		KeyTTL:          time.Minute,
		KeyFormat:       authsdk.KeyFormatJWK,
		KeyFetchTimeout: time.Second,
		UpstreamURL:     upstream,
		PublicPrefixes:  []string{"/public/"},
	}

	gw := &gateway{}
	gw.URL, gw.stop = serve(t, gatewayapp.New(cfg).Serve)
	return gw
}

// serve runs fn on a fresh loopback listener and returns its base URL plus
// an idempotent stop function that waits for shutdown.
func serve(t *testing.T, fn func(context.Context, net.Listener) error) (string, func()) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fn(ctx, ln) }()

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(15 * time.Second):
			t.Error("server did not shut down")
		}
	}
	t.Cleanup(stop)

	return "http://" + ln.Addr().String(), stop
}

// startUpstream echoes the identity headers it received.
func startUpstream(t *testing.T) *url.URL {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{
			"path":     r.URL.Path,
			"userId":   r.Header.Get("X-User-ID"),
			"email":    r.Header.Get("X-User-Email"),
			"role":     r.Header.Get("X-User-Role"),
			"username": r.Header.Get("X-Username"),
		})
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return u
}

// get issues a GET with an optional bearer token.
func get(t *testing.T, rawURL, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, rawURL, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
