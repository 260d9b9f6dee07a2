package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
)

// Fingerprint is the unpadded base64url SHA-256 of b, 43 characters.
func Fingerprint(b []byte) string {
	sum := sha256.Sum256(b)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// FingerprintToken fingerprints a token string. Refresh tokens are stored
// and revoked under their fingerprint so the raw token never sits in the
// store.
func FingerprintToken(token string) string {
	return Fingerprint([]byte(token))
}
