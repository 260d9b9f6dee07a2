package app

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/aussiebroadwan/tokentrust/internal/appconfig"
	"github.com/aussiebroadwan/tokentrust/pkg/authsdk"
	"github.com/aussiebroadwan/tokentrust/pkg/jwtx"
)

type Config struct {
	appconfig.Common

	IssuerURL       string            // Required: base URL of the issuer
	KeyTTL          time.Duration     // how long a fetched key is fresh (default: 5m)
	KeyFormat       authsdk.KeyFormat // jwk or pem (default: jwk)
	KeyFetchTimeout time.Duration     // default: 3s
	UpstreamURL     *url.URL          // Optional: backend to proxy to
	PublicPrefixes  []string          // path prefixes proxied without a token

	// MaxTokenLifetime is the longest exp-iat span accepted; keep it at the
	// issuer's access TTL so refresh tokens are refused (default: 15m).
	MaxTokenLifetime time.Duration
}

// LoadConfig reads gateway configuration from the environment, the optional
// config file and any bound flags in fs.
func LoadConfig(fs *pflag.FlagSet) (Config, error) {
	v, err := appconfig.New(fs)
	if err != nil {
		return Config{}, err
	}

	v.SetDefault("gateway.key_ttl", authsdk.DefaultKeyTTL)
	v.SetDefault("gateway.key_format", string(authsdk.KeyFormatJWK))
	v.SetDefault("gateway.key_fetch_timeout", authsdk.DefaultKeyFetchTimeout)
	v.SetDefault("gateway.max_token_lifetime", jwtx.DefaultAccessTokenTTL)

	common, err := appconfig.LoadCommon(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Common:          common,
		IssuerURL:       v.GetString("gateway.issuer_url"),
		KeyTTL:          v.GetDuration("gateway.key_ttl"),
		KeyFormat:       authsdk.KeyFormat(strings.ToLower(v.GetString("gateway.key_format"))),
		KeyFetchTimeout: v.GetDuration("gateway.key_fetch_timeout"),
		PublicPrefixes:  splitList(v.GetStringSlice("gateway.public_prefixes")),

		MaxTokenLifetime: v.GetDuration("gateway.max_token_lifetime"),
	}

	if cfg.IssuerURL == "" {
		return Config{}, fmt.Errorf("GATEWAY_ISSUER_URL is required")
	}
	if _, err := url.ParseRequestURI(cfg.IssuerURL); err != nil {
		return Config{}, fmt.Errorf("invalid GATEWAY_ISSUER_URL: %w", err)
	}

	switch cfg.KeyFormat {
	case authsdk.KeyFormatJWK, authsdk.KeyFormatPEM:
	default:
		return Config{}, fmt.Errorf("GATEWAY_KEY_FORMAT must be jwk or pem, got %q", cfg.KeyFormat)
	}

	if cfg.KeyTTL <= 0 || cfg.KeyFetchTimeout <= 0 {
		return Config{}, fmt.Errorf("key TTL and fetch timeout must be positive")
	}
	if cfg.MaxTokenLifetime <= 0 {
		return Config{}, fmt.Errorf("GATEWAY_MAX_TOKEN_LIFETIME must be positive")
	}

	if raw := v.GetString("gateway.upstream_url"); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return Config{}, fmt.Errorf("invalid GATEWAY_UPSTREAM_URL %q", raw)
		}
		cfg.UpstreamURL = u
	}

	return cfg, nil
}

// splitList accepts both a YAML list and a comma separated env value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
