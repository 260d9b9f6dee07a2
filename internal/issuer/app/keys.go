package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/tokentrust/pkg/jwtx"
)

// InitKeyPair loads the signing key from cfg.PrivateKeyFile, or generates
// a fresh one when no file is configured.
//
// A generated key lives only as long as the process. Every token issued by
// a previous run stops verifying once the new key is published.
func InitKeyPair(cfg Config, logger *slog.Logger) (*jwtx.KeyPair, error) {
	if cfg.PrivateKeyFile != "" {
		pemKey, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}

		kp, err := jwtx.LoadKeyPair("", pemKey)
		if err != nil {
			return nil, err
		}

		logger.Info("signing key loaded", "kid", kp.KID(), "file", cfg.PrivateKeyFile)
		return kp, nil
	}

	kp, err := jwtx.GenerateKeyPair(cfg.RSABits)
	if err != nil {
		return nil, err
	}

	logger.Info("generated signing key", "kid", kp.KID(), "bits", cfg.RSABits)
	logger.Warn("tokens issued before this start no longer verify")
	return kp, nil
}
