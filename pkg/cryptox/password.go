package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// ErrPasswordMismatch is returned by VerifyPassword when the hash is well
// formed but the password is wrong.
var ErrPasswordMismatch = errors.New("password does not match")

// ErrInvalidHash is any hash VerifyPassword cannot use.
var ErrInvalidHash = errors.New("invalid argon2id hash")

// Upper bounds for parameters read back from a hash. A users file with
// absurd costs should fail to load rather than stall every login.
const (
	maxMemory     = 256 * 1024
	maxIterations = 10
)

type argonParams struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// HashPassword returns a PHC string:
// $argon2id$v=19$m=<KiB>,t=<iterations>,p=<threads>$<salt>$<key>
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	p := argonParams{memory: memory, iterations: iterations, parallelism: parallelism, salt: salt}
	p.key = p.derive(password, keyLength)

	return p.encode(), nil
}

// VerifyPassword checks password against a hash made by HashPassword.
func VerifyPassword(password, encodedHash string) error {
	p, err := decodeHash(encodedHash)
	if err != nil {
		return err
	}

	computed := p.derive(password, uint32(len(p.key))) // #nosec G115 -- key length is checked in decodeHash
	if subtle.ConstantTimeCompare(computed, p.key) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

// CheckHash reports whether encodedHash is usable by VerifyPassword
// without running the KDF.
func CheckHash(encodedHash string) error {
	_, err := decodeHash(encodedHash)
	return err
}

func (p argonParams) derive(password string, n uint32) []byte {
	return argon2.IDKey([]byte(password+GetPepper()), p.salt, p.iterations, p.memory, p.parallelism, n)
}

func (p argonParams) encode() string {
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.iterations, p.parallelism,
		b64.EncodeToString(p.salt), b64.EncodeToString(p.key))
}

func decodeHash(encoded string) (argonParams, error) {
	var p argonParams

	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(encoded, "$")
	switch {
	case len(parts) != 6 || parts[0] != "":
		return p, fmt.Errorf("%w: expected 6 fields", ErrInvalidHash)
	case parts[1] != "argon2id":
		return p, fmt.Errorf("%w: algorithm %q", ErrInvalidHash, parts[1])
	case parts[2] != fmt.Sprintf("v=%d", argon2.Version):
		return p, fmt.Errorf("%w: version %q", ErrInvalidHash, parts[2])
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.iterations, &p.parallelism); err != nil {
		return p, fmt.Errorf("%w: parameters: %w", ErrInvalidHash, err)
	}
	if p.memory == 0 || p.memory > maxMemory || p.iterations == 0 || p.iterations > maxIterations || p.parallelism == 0 {
		return p, fmt.Errorf("%w: parameters out of range", ErrInvalidHash)
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return p, fmt.Errorf("%w: salt: %w", ErrInvalidHash, err)
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return p, fmt.Errorf("%w: key: %w", ErrInvalidHash, err)
	}
	if len(p.key) < 16 || len(p.key) > 64 {
		return p, fmt.Errorf("%w: key length %d", ErrInvalidHash, len(p.key))
	}

	return p, nil
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// BurnPasswordCheck runs a full Argon2id verification against a throwaway
// hash. Call it when the user doesn't exist so unknown and known usernames
// take the same time to reject.
func BurnPasswordCheck(password string) {
	dummyOnce.Do(func() {
		dummyHash, _ = HashPassword("not-a-real-password")
	})
	_ = VerifyPassword(password, dummyHash)
}
