package jwtx

import (
	"context"
	"errors"
)

// Verifier validates a token and gives you back the claims if it's legit.
// An empty expectedSubject means "don't care".
type Verifier interface {
	Verify(ctx context.Context, token, expectedSubject string) (*Claims, error)
}

var (
	ErrMalformed       = errors.New("jwtx: malformed token")
	ErrAlgMismatch     = errors.New("jwtx: algorithm mismatch")
	ErrInvalidSig      = errors.New("jwtx: invalid signature")
	ErrExpired         = errors.New("jwtx: token expired")
	ErrSubjectMismatch = errors.New("jwtx: subject mismatch")

	// ErrLifetimeExceeded is a validly signed token whose exp-iat span is
	// longer than the verifier accepts, e.g. a refresh token presented where
	// only access tokens are allowed.
	ErrLifetimeExceeded = errors.New("jwtx: token lifetime exceeds limit")

	// ErrKeyUnavailable means no public key could be obtained at all. It is
	// kept distinct so callers can answer "try again later" instead of
	// "your token is bad".
	ErrKeyUnavailable = errors.New("jwtx: verification key unavailable")
)

// Reason maps a verification error onto a short, stable label for logs and
// metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrKeyUnavailable):
		return "key_unavailable"
	case errors.Is(err, ErrAlgMismatch):
		return "alg_mismatch"
	case errors.Is(err, ErrInvalidSig):
		return "invalid_signature"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrSubjectMismatch):
		return "subject_mismatch"
	case errors.Is(err, ErrLifetimeExceeded):
		return "lifetime_exceeded"
	default:
		return "malformed"
	}
}
