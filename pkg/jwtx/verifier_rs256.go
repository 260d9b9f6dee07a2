package jwtx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RS256Verifier validates tokens signed using RS256 against whatever key
// its KeySource currently hands out.
type RS256Verifier struct {
	keys        KeySource
	now         func() time.Time
	maxLifetime time.Duration
}

// VerifierOption tweaks an RS256Verifier.
type VerifierOption func(*RS256Verifier)

// WithClock overrides the time source used for the exp check.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *RS256Verifier) { v.now = now }
}

// WithMaxLifetime rejects tokens whose exp-iat span exceeds d, or that have
// no iat at all. Refresh tokens share the access token shape, so services
// that only accept access tokens set this to the access TTL.
func WithMaxLifetime(d time.Duration) VerifierOption {
	return func(v *RS256Verifier) { v.maxLifetime = d }
}

// NewVerifierRS256 creates a verifier backed by the given KeySource.
func NewVerifierRS256(keys KeySource, opts ...VerifierOption) *RS256Verifier {
	v := &RS256Verifier{keys: keys, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks structure, signature, expiry, the lifetime limit if one is
// set and (optionally) the subject, in that order, and returns the decoded claims.
func (v *RS256Verifier) Verify(ctx context.Context, tokenStr, expectedSubject string) (*Claims, error) {
	if strings.Count(tokenStr, ".") != 2 {
		return nil, ErrMalformed
	}

	parser := jwt.NewParser(
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return v.now().UTC() }),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		// The header is attacker controlled, only ever accept RS256.
		if t.Method == nil || t.Method.Alg() != AlgorithmRS256 {
			return nil, ErrAlgMismatch
		}

		pub, err := v.keys.PublicKey(ctx)
		if err != nil {
			if errors.Is(err, ErrKeyUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
		}
		return pub, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	if v.maxLifetime > 0 {
		if claims.IssuedAt == nil || claims.ExpiresAt.Sub(claims.IssuedAt.Time) > v.maxLifetime {
			return nil, ErrLifetimeExceeded
		}
	}

	if expectedSubject != "" && claims.Subject != expectedSubject {
		return nil, ErrSubjectMismatch
	}

	return claims, nil
}

// Valid is the boolean form of Verify. It never panics and never leaks the
// failure reason.
func (v *RS256Verifier) Valid(ctx context.Context, tokenStr, expectedSubject string) bool {
	_, err := v.Verify(ctx, tokenStr, expectedSubject)
	return err == nil
}

// classify folds the library's error tree into our sentinels. Order matters:
// keyfunc errors come wrapped in ErrTokenUnverifiable.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrKeyUnavailable):
		return fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	case errors.Is(err, ErrAlgMismatch):
		return ErrAlgMismatch
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		// Unknown or unusable "alg" in the header.
		return ErrAlgMismatch
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
