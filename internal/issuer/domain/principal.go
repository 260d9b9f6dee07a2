package domain

import "time"

// Principal is the authenticated identity a token is issued for. It does not
// change for the lifetime of a token.
type Principal struct {
	Username string
	UserID   string
	Email    string
	Role     string
}

// TokenPair is what a successful login returns.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}
