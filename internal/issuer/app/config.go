package app

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/aussiebroadwan/tokentrust/internal/appconfig"
	"github.com/aussiebroadwan/tokentrust/pkg/jwtx"
)

// Store drivers.
const (
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

type Config struct {
	appconfig.Common

	Issuer         string        // Optional: issuer name in logs (default: tokentrust-issuer)
	RSABits        int           // Optional: RSA key size when generating (default: 2048, min: 2048)
	PrivateKeyFile string        // Optional: PKCS1/PKCS8 PEM key to load instead of generating
	AccessTTL      time.Duration // default: 15m
	RefreshTTL     time.Duration // default: 168h

	StoreDriver  string        // redis, sqlite, memory (default: redis)
	StoreTimeout time.Duration // per refresh store operation (default: 2s)
	RedisAddr    string        // default: localhost:6379
	RedisPass    string
	RedisDB      int
	DatabaseFile string // sqlite driver only (default: ./tokentrust.db)

	HousekeepingInterval time.Duration // sqlite expired-row sweep (default: 1h)

	UsersFile  string // Required: YAML identity file
	PepperFile string // default: ./pepper
}

// LoadConfig reads issuer configuration from the environment, the optional
// config file and any bound flags in fs.
func LoadConfig(fs *pflag.FlagSet) (Config, error) {
	v, err := appconfig.New(fs)
	if err != nil {
		return Config{}, err
	}
	setDefaults(v)

	common, err := appconfig.LoadCommon(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Common:               common,
		Issuer:               v.GetString("auth.issuer"),
		RSABits:              v.GetInt("auth.rsa_bits"),
		PrivateKeyFile:       v.GetString("auth.private_key_file"),
		AccessTTL:            v.GetDuration("auth.access_ttl"),
		RefreshTTL:           v.GetDuration("auth.refresh_ttl"),
		StoreDriver:          v.GetString("auth.store_driver"),
		StoreTimeout:         v.GetDuration("auth.store_timeout"),
		RedisAddr:            v.GetString("redis.addr"),
		RedisPass:            v.GetString("redis.password"),
		RedisDB:              v.GetInt("redis.db"),
		DatabaseFile:         v.GetString("auth.database_file"),
		HousekeepingInterval: v.GetDuration("housekeeping_interval"),
		UsersFile:            v.GetString("auth.users_file"),
		PepperFile:           v.GetString("auth.pepper_file"),
	}

	return cfg, cfg.validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("auth.issuer", "tokentrust-issuer")
	v.SetDefault("auth.rsa_bits", jwtx.DefaultRSABits)
	v.SetDefault("auth.access_ttl", jwtx.DefaultAccessTokenTTL)
	v.SetDefault("auth.refresh_ttl", jwtx.DefaultRefreshTokenTTL)
	v.SetDefault("auth.store_driver", StoreRedis)
	v.SetDefault("auth.store_timeout", "2s")
	v.SetDefault("auth.database_file", "tokentrust.db")
	v.SetDefault("auth.pepper_file", "pepper")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("housekeeping_interval", time.Hour)
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case StoreRedis, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("unknown AUTH_STORE_DRIVER %q", c.StoreDriver)
	}

	if c.RSABits < jwtx.DefaultRSABits {
		return fmt.Errorf("AUTH_RSA_BITS must be at least %d", jwtx.DefaultRSABits)
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("AUTH_STORE_TIMEOUT must be positive")
	}
	if c.UsersFile == "" {
		return fmt.Errorf("AUTH_USERS_FILE is required")
	}
	return nil
}
