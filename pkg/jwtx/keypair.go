package jwtx

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/tokentrust/pkg/cryptox"
	"github.com/aussiebroadwan/tokentrust/pkg/idx"
)

// AlgorithmRS256 is the only signing algorithm we issue or accept.
const AlgorithmRS256 = "RS256"

// DefaultRSABits is used when no key size is configured.
const DefaultRSABits = cryptox.MinRSABits

// KeyPair is the issuer's single active RSA signing key. It is built once at
// startup and never mutated, so it is safe to share between the signer, the
// key publisher and the local verifier.
type KeyPair struct {
	kid string
	key *rsa.PrivateKey
}

// GenerateKeyPair creates a fresh RSA key under a random kid. Every token
// signed by a previous key pair stops verifying once this one is published.
func GenerateKeyPair(bits int) (*KeyPair, error) {
	if bits == 0 {
		bits = DefaultRSABits
	}

	pemKey, err := cryptox.GenerateRSAKey(bits, cryptox.PKCS1)
	if err != nil {
		return nil, fmt.Errorf("jwtx: generate key pair: %w", err)
	}

	return LoadKeyPair("tt-"+strings.ToLower(idx.New().String()), pemKey)
}

// LoadKeyPair builds a KeyPair from a PKCS1 or PKCS8 PEM private key. An
// empty kid is derived from the public key.
func LoadKeyPair(kid string, pemKey []byte) (*KeyPair, error) {
	key, err := cryptox.ParseRSAPrivateKey(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: load key pair: %w", err)
	}

	if kid == "" {
		if kid, err = publicKeyID(&key.PublicKey); err != nil {
			return nil, err
		}
	}

	kp := &KeyPair{kid: kid, key: key}
	if err := kp.Validate(); err != nil {
		return nil, err
	}
	return kp, nil
}

func (kp *KeyPair) KID() string { return kp.kid }
func (kp *KeyPair) Alg() string { return AlgorithmRS256 }
func (kp *KeyPair) Public() *rsa.PublicKey { return &kp.key.PublicKey }
func (kp *KeyPair) privateKey() *rsa.PrivateKey { return kp.key }

// Source exposes the public half as a KeySource for in-process verification.
func (kp *KeyPair) Source() KeySource {
	return StaticKey{Key: kp.Public()}
}

// PublicJWK returns the public key in JWK form for publication.
func (kp *KeyPair) PublicJWK() JWK {
	return NewRSAJWK(kp.kid, kp.Public())
}

// PublicKeyPEM returns the public key as a PKIX "PUBLIC KEY" PEM block.
func (kp *KeyPair) PublicKeyPEM() (string, error) {
	return EncodePublicKeyPEM(kp.Public())
}

// Validate does a quick sanity check to make sure we actually have keys.
func (kp *KeyPair) Validate() error {
	if kp == nil || kp.key == nil {
		return errors.New("jwtx: nil RSA key")
	}
	if kp.key.N.BitLen() < cryptox.MinRSABits {
		return fmt.Errorf("jwtx: RSA key too small (%d bits)", kp.key.N.BitLen())
	}
	return nil
}

// KeySource supplies the public key a verifier checks signatures against.
// The issuer uses a StaticKey; every other service plugs in a fetching cache.
type KeySource interface {
	PublicKey(ctx context.Context) (*rsa.PublicKey, error)
}

// StaticKey is a KeySource that never changes.
type StaticKey struct {
	Key *rsa.PublicKey
}

func (s StaticKey) PublicKey(context.Context) (*rsa.PublicKey, error) {
	if s.Key == nil {
		return nil, ErrKeyUnavailable
	}
	return s.Key, nil
}

// publicKeyID derives a kid from the public key, so the same key file
// always publishes under the same id.
func publicKeyID(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("jwtx: key id: %w", err)
	}
	return "tt-" + cryptox.Fingerprint(der)[:22], nil
}
