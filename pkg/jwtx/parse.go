package jwtx

import "github.com/golang-jwt/jwt/v5"

// ParseUnverified decodes the payload without checking the signature or
// expiry. Never use the result for an authorization decision.
func ParseUnverified(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, ErrMalformed
	}
	return claims, nil
}

// ExtractSubject returns the sub claim without verifying the token.
func ExtractSubject(token string) (string, bool) {
	c, err := ParseUnverified(token)
	if err != nil || c.Subject == "" {
		return "", false
	}
	return c.Subject, true
}

// ExtractExpiration returns exp in unix seconds, or 0 if the token can't be
// decoded or has no exp.
func ExtractExpiration(token string) int64 {
	c, err := ParseUnverified(token)
	if err != nil {
		return 0
	}
	return c.Expiry()
}
