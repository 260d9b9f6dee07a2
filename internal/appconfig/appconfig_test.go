package appconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tokentrust/pkg/httpx"
)

func TestDefaults(t *testing.T) {
	v, err := New(nil)
	require.NoError(t, err)

	c, err := LoadCommon(v)
	require.NoError(t, err)
	require.Equal(t, "dev", c.Env)
	require.Equal(t, "info", c.LogLevel)
	require.Equal(t, "json", c.LogFormat)
	require.Equal(t, 8080, c.Port)
	require.Equal(t, 10*time.Second, c.ShutdownGracePeriod)
	require.Equal(t, httpx.DefaultRateLimitProfiles(), c.RateLimits)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SHUTDOWN_GRACE_PERIOD", "3s")
	t.Setenv("RATELIMIT_STRICT_REQUESTS", "2")
	t.Setenv("RATELIMIT_STRICT_WINDOW_SEC", "30")

	v, err := New(nil)
	require.NoError(t, err)
	c, err := LoadCommon(v)
	require.NoError(t, err)

	require.Equal(t, 9000, c.Port)
	require.Equal(t, "debug", c.LogLevel)
	require.Equal(t, 3*time.Second, c.ShutdownGracePeriod)
	require.Equal(t, 2, c.RateLimits.Strict.RequestsPerWindow)
	require.Equal(t, 30*time.Second, c.RateLimits.Strict.Window)
	require.Equal(t, httpx.DefaultRateLimitProfiles().Strict.Burst, c.RateLimits.Strict.Burst)
}

func TestConfigFileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("env: prod\nlog:\n  format: text\nport: 7000\n"), 0o600))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.Int("port", 0, "")
	require.NoError(t, fs.Parse([]string{"--config", path, "--port", "7100"}))

	v, err := New(fs)
	require.NoError(t, err)
	c, err := LoadCommon(v)
	require.NoError(t, err)

	require.Equal(t, "prod", c.Env)
	require.Equal(t, "text", c.LogFormat)
	require.Equal(t, 7100, c.Port)
}

func TestRejectsBadValues(t *testing.T) {
	t.Run("port", func(t *testing.T) {
		t.Setenv("PORT", "70000")
		v, err := New(nil)
		require.NoError(t, err)
		_, err = LoadCommon(v)
		require.Error(t, err)
	})

	t.Run("rate limit", func(t *testing.T) {
		t.Setenv("RATELIMIT_PUBLIC_BURST", "0")
		v, err := New(nil)
		require.NoError(t, err)
		_, err = RateLimitProfiles(v)
		require.ErrorContains(t, err, "public")
	})

	t.Run("missing config file", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := New(nil)
		require.Error(t, err)
	})
}
