package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants. Services can override them through config but
// these are what every issuer starts with.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims is the token payload shared by every service. Field order here is
// the order fields appear in the encoded payload, so don't shuffle it.
//
// Plain tokens (access and refresh) only carry sub/iat/exp. Identity tokens
// additionally carry userId, email, role and username, and use the email as
// the subject.
type Claims struct {
	Subject   string           `json:"sub"`
	UserID    string           `json:"userId,omitempty"`
	Email     string           `json:"email,omitempty"`
	Role      string           `json:"role,omitempty"`
	Username  string           `json:"username,omitempty"`
	IssuedAt  *jwt.NumericDate `json:"iat,omitempty"`
	ExpiresAt *jwt.NumericDate `json:"exp,omitempty"`
}

// NewPlainClaims builds the minimal sub/iat/exp payload.
func NewPlainClaims(subject string, ttl time.Duration, now time.Time) Claims {
	now = now.UTC()
	return Claims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

// NewIdentityClaims builds the identity-bearing payload. The subject is the
// email here, not the username.
func NewIdentityClaims(username, userID, email, role string, ttl time.Duration, now time.Time) Claims {
	now = now.UTC()
	return Claims{
		Subject:   email,
		UserID:    userID,
		Email:     email,
		Role:      role,
		Username:  username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

// Expiry returns exp as unix seconds, or 0 when it is missing.
func (c Claims) Expiry() int64 {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Unix()
}

// jwt.Claims implementation. Only exp is enforced by the parser; the rest
// of the registered claims are not part of our tokens.

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) { return c.ExpiresAt, nil }
func (c Claims) GetIssuedAt() (*jwt.NumericDate, error) { return c.IssuedAt, nil }
func (c Claims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c Claims) GetIssuer() (string, error) { return "", nil }
func (c Claims) GetSubject() (string, error) { return c.Subject, nil }
func (c Claims) GetAudience() (jwt.ClaimStrings, error) { return nil, nil }
