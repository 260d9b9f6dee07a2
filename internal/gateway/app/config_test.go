package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tokentrust/pkg/authsdk"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("GATEWAY_ISSUER_URL", "http://issuer:8080")
	t.Setenv("GATEWAY_UPSTREAM_URL", "http://backend:9000")
	t.Setenv("GATEWAY_PUBLIC_PREFIXES", "/public/, /docs/")
	t.Setenv("GATEWAY_KEY_FORMAT", "PEM")
	t.Setenv("GATEWAY_KEY_TTL", "1m")

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	require.Equal(t, "http://issuer:8080", cfg.IssuerURL)
	require.Equal(t, "backend:9000", cfg.UpstreamURL.Host)
	require.Equal(t, []string{"/public/", "/docs/"}, cfg.PublicPrefixes)
	require.Equal(t, authsdk.KeyFormatPEM, cfg.KeyFormat)
	require.Equal(t, time.Minute, cfg.KeyTTL)
	require.Equal(t, authsdk.DefaultKeyFetchTimeout, cfg.KeyFetchTimeout)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GATEWAY_ISSUER_URL", "http://issuer:8080")

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	require.Nil(t, cfg.UpstreamURL)
	require.Empty(t, cfg.PublicPrefixes)
	require.Equal(t, authsdk.KeyFormatJWK, cfg.KeyFormat)
	require.Equal(t, authsdk.DefaultKeyTTL, cfg.KeyTTL)
	require.Equal(t, 15*time.Minute, cfg.MaxTokenLifetime)
}

func TestLoadConfigRejects(t *testing.T) {
	tests := map[string]map[string]string{
		"no issuer":     {},
		"bad format":    {"GATEWAY_ISSUER_URL": "http://issuer", "GATEWAY_KEY_FORMAT": "x509"},
		"bad upstream":  {"GATEWAY_ISSUER_URL": "http://issuer", "GATEWAY_UPSTREAM_URL": "backend"},
		"zero ttl":      {"GATEWAY_ISSUER_URL": "http://issuer", "GATEWAY_KEY_TTL": "0s"},
		"zero lifetime": {"GATEWAY_ISSUER_URL": "http://issuer", "GATEWAY_MAX_TOKEN_LIFETIME": "0s"},
	}

	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(nil)
			require.Error(t, err)
		})
	}
}
