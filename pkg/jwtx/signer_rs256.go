package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Signer is our interface for anything that can sign tokens.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
}

// RS256Signer signs tokens with the issuer's KeyPair using RSA SHA-256.
type RS256Signer struct {
	keys *KeyPair
}

// NewRS256Signer wraps a KeyPair. The KeyPair must already be valid.
func NewRS256Signer(keys *KeyPair) (*RS256Signer, error) {
	if err := keys.Validate(); err != nil {
		return nil, err
	}
	return &RS256Signer{keys: keys}, nil
}

func (s *RS256Signer) Alg() string { return s.keys.Alg() }
func (s *RS256Signer) KID() string { return s.keys.KID() }

// Sign takes your claims and turns them into a compact signed token. The
// header is exactly {"alg":"RS256","kid":...}; the library's "typ" entry is
// dropped.
func (s *RS256Signer) Sign(claims Claims) (string, error) {
	if claims.ExpiresAt == nil {
		return "", errors.New("jwtx: refusing to sign claims without exp")
	}

	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	delete(t.Header, "typ")
	t.Header["kid"] = s.keys.KID()
	return t.SignedString(s.keys.privateKey())
}
