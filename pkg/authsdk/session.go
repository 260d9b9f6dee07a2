package authsdk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// refreshSkew is how long before expiry a Session refreshes.
const refreshSkew = 30 * time.Second

// ErrNoRefreshToken is returned when the access token has expired and there
// is nothing to refresh it with.
var ErrNoRefreshToken = errors.New("authsdk: access token expired and no refresh token available")

// Session holds a token pair and refreshes the access token when needed.
type Session struct {
	client *SDKClient
	now    func() time.Time

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func newSession(client *SDKClient, tokenResp *TokenResponse, now func() time.Time) *Session {
	return &Session{
		client:       client,
		now:          now,
		accessToken:  tokenResp.AccessToken,
		refreshToken: tokenResp.RefreshToken,
		expiresAt:    expiryFrom(now(), tokenResp.ExpiresIn),
	}
}

func expiryFrom(now time.Time, expiresIn int) time.Time {
	return now.Add(time.Duration(expiresIn)*time.Second - refreshSkew)
}

// Token returns a valid access token, refreshing it first if it is about to
// expire.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if s.now().Before(s.expiresAt) {
		return s.accessToken, nil
	}

	if s.refreshToken == "" {
		return "", ErrNoRefreshToken
	}

	tokenResp, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	s.accessToken = tokenResp.AccessToken
	if tokenResp.RefreshToken != "" {
		s.refreshToken = tokenResp.RefreshToken
	}
	s.expiresAt = expiryFrom(s.now(), tokenResp.ExpiresIn)

	return s.accessToken, nil
}

// AccessToken returns the current access token without checking expiry.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// Revoke revokes the session's refresh token. The access token stays valid
// until it expires.
func (s *Session) Revoke(ctx context.Context) error {
	s.mu.Lock()
	refreshToken := s.refreshToken
	s.refreshToken = ""
	s.mu.Unlock()

	if refreshToken == "" {
		return ErrNoRefreshToken
	}

	return s.client.Revoke(ctx, refreshToken)
}
