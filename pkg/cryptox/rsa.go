package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// MinRSABits is the smallest modulus accepted for signing keys.
const MinRSABits = 2048

// KeyEncoding selects the PEM container for a private key.
type KeyEncoding int

const (
	PKCS1 KeyEncoding = iota // "RSA PRIVATE KEY"
	PKCS8                    // "PRIVATE KEY"
)

var ErrNotRSAKey = errors.New("cryptox: not an RSA private key")

// GenerateRSAKey creates a key of the given size and returns it as PEM.
func GenerateRSAKey(bits int, enc KeyEncoding) ([]byte, error) {
	if bits < MinRSABits {
		return nil, fmt.Errorf("cryptox: RSA key size must be at least %d bits, got %d", MinRSABits, bits)
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("cryptox: generate RSA key: %w", err)
	}
	return EncodeRSAPrivateKey(key, enc)
}

// EncodeRSAPrivateKey wraps key in a PEM block of the requested encoding.
func EncodeRSAPrivateKey(key *rsa.PrivateKey, enc KeyEncoding) ([]byte, error) {
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	if enc == PKCS8 {
		der, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("cryptox: marshal PKCS8: %w", err)
		}
		block = &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	}
	return pem.EncodeToMemory(block), nil
}

// ParseRSAPrivateKey reads the first PEM block of pemKey. Both PKCS1 and
// PKCS8 are accepted; openssl and most tooling default to the latter.
func ParseRSAPrivateKey(pemKey []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("cryptox: no PEM block found")
	}

	var (
		parsed any
		err    error
	)
	switch block.Type {
	case "RSA PRIVATE KEY":
		parsed, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		parsed, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("cryptox: unsupported PEM type %q", block.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("cryptox: parse %s: %w", block.Type, err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrNotRSAKey
	}
	return key, nil
}
