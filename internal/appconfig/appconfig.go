// Package appconfig holds the configuration shared by the issuer and the
// gateway: environment lookup, the optional config file, logging, the
// listen port and rate limit profiles.
//
// Keys are dotted (log.level) and map to upper-case environment variables
// with underscores (LOG_LEVEL).
package appconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/aussiebroadwan/tokentrust/pkg/httpx"
)

// Common is the part of every service's Config that is not service specific.
type Common struct {
	Env                 string        // dev, staging, prod (default: dev)
	LogLevel            string        // debug, info, warn, error (default: info)
	LogFormat           string        // json, text (default: json)
	Port                int           // HTTP listen port (default: 8080)
	ShutdownGracePeriod time.Duration // default: 10s
	RateLimits          httpx.RateLimitProfiles
}

// New returns a viper instance backed by the environment and, when
// CONFIG_FILE (or --config) names one, a YAML file. Flags in fs named
// config, port and log-level override both; fs may be nil.
func New(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", "dev")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("port", 8080)
	v.SetDefault("shutdown_grace_period", "10s")

	if fs != nil {
		for key, flag := range map[string]string{
			"config_file": "config",
			"port":        "port",
			"log.level":   "log-level",
		} {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag --%s: %w", flag, err)
				}
			}
		}
	}

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	return v, nil
}

// LoadCommon reads the shared keys from v.
func LoadCommon(v *viper.Viper) (Common, error) {
	c := Common{
		Env:                 v.GetString("env"),
		LogLevel:            v.GetString("log.level"),
		LogFormat:           v.GetString("log.format"),
		Port:                v.GetInt("port"),
		ShutdownGracePeriod: v.GetDuration("shutdown_grace_period"),
	}

	if c.Port <= 0 || c.Port > 65535 {
		return Common{}, fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.ShutdownGracePeriod <= 0 {
		c.ShutdownGracePeriod = 10 * time.Second
	}

	limits, err := RateLimitProfiles(v)
	if err != nil {
		return Common{}, err
	}
	c.RateLimits = limits

	return c, nil
}

// RateLimitProfiles starts from httpx.DefaultRateLimitProfiles and applies
// any RATELIMIT_<PROFILE>_{REQUESTS,WINDOW_SEC,BURST} overrides.
func RateLimitProfiles(v *viper.Viper) (httpx.RateLimitProfiles, error) {
	p := httpx.DefaultRateLimitProfiles()

	for name, cfg := range map[string]*httpx.RateLimitConfig{
		"strict":   &p.Strict,
		"moderate": &p.Moderate,
		"lenient":  &p.Lenient,
		"public":   &p.Public,
	} {
		prefix := "ratelimit." + name + "."

		if key := prefix + "requests"; v.IsSet(key) {
			cfg.RequestsPerWindow = v.GetInt(key)
		}
		if key := prefix + "window_sec"; v.IsSet(key) {
			cfg.Window = time.Duration(v.GetInt(key)) * time.Second
		}
		if key := prefix + "burst"; v.IsSet(key) {
			cfg.Burst = v.GetInt(key)
		}

		if cfg.RequestsPerWindow <= 0 || cfg.Window <= 0 || cfg.Burst <= 0 {
			return httpx.RateLimitProfiles{}, fmt.Errorf("rate limit profile %q must be positive", name)
		}
	}

	return p, nil
}
