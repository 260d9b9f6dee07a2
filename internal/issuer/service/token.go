package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/tokentrust/internal/issuer/domain"
	"github.com/aussiebroadwan/tokentrust/internal/issuer/identity"
	"github.com/aussiebroadwan/tokentrust/internal/issuer/store"
	"github.com/aussiebroadwan/tokentrust/pkg/cryptox"
	"github.com/aussiebroadwan/tokentrust/pkg/jwtx"
	"github.com/aussiebroadwan/tokentrust/pkg/obs"
	"github.com/aussiebroadwan/tokentrust/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrInvalidRefresh is a refresh token that failed signature, expiry or
	// subject checks.
	ErrInvalidRefresh = errors.New("invalid_refresh_token")

	// ErrRefreshRevoked is a refresh token with no store entry: revoked,
	// expired out of the store, or never issued here.
	ErrRefreshRevoked = errors.New("refresh_token_revoked")

	// ErrStoreUnavailable means the refresh store could not be consulted.
	// The operation was rejected.
	ErrStoreUnavailable = errors.New("store_unavailable")
)

// Token kinds for the issued-tokens metric.
const (
	kindAccess       = "access"
	kindAccessClaims = "access_claims"
	kindRefresh      = "refresh"
)

// TokenService issues and validates tokens. Signer and Verifier share the
// issuer's single key pair.
type TokenService struct {
	Signer     jwtx.Signer
	Verifier   jwtx.Verifier
	Store      store.Store
	Identities identity.Source
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

// IssueAccessToken signs {"sub": username, "iat", "exp"}.
func (s *TokenService) IssueAccessToken(p domain.Principal) (string, error) {
	token, err := s.Signer.Sign(jwtx.NewPlainClaims(p.Username, s.accessTTL(), s.now()))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	obs.TokensIssued.WithLabelValues(kindAccess).Inc()
	return token, nil
}

// IssueAccessTokenWithClaims signs the identity-bearing variant. Its
// subject is the email address, not the username.
func (s *TokenService) IssueAccessTokenWithClaims(username, userID, email, role string) (string, error) {
	token, err := s.Signer.Sign(jwtx.NewIdentityClaims(username, userID, email, role, s.accessTTL(), s.now()))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	obs.TokensIssued.WithLabelValues(kindAccessClaims).Inc()
	return token, nil
}

// IssueRefreshToken signs a refresh token for username and records it in
// the store. If the store write fails no token is returned.
func (s *TokenService) IssueRefreshToken(ctx context.Context, username string) (string, error) {
	ttl := s.refreshTTL()

	token, err := s.Signer.Sign(jwtx.NewPlainClaims(username, ttl, s.now()))
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}

	if err := s.Store.RefreshTokens().Put(ctx, cryptox.FingerprintToken(token), username, ttl); err != nil {
		return "", fmt.Errorf("%w: record refresh token: %w", ErrStoreUnavailable, err)
	}

	obs.TokensIssued.WithLabelValues(kindRefresh).Inc()
	return token, nil
}

// ValidateRefreshToken returns the refresh token's subject if the store
// still holds it and it verifies against that subject. Any store failure
// rejects the token.
func (s *TokenService) ValidateRefreshToken(ctx context.Context, token string) (string, error) {
	tokenID := cryptox.FingerprintToken(token)

	subject, err := s.Store.RefreshTokens().Get(ctx, tokenID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "", ErrRefreshRevoked
	case err != nil:
		return "", fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if _, err := s.Verifier.Verify(ctx, token, subject); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRefresh, err)
	}

	return subject, nil
}

// Login authenticates username/password and returns an identity-bearing
// access token plus a refresh token.
func (s *TokenService) Login(ctx context.Context, username, password string) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	p, err := s.Identities.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			l.Info("login rejected", slog.String("username", username))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	access, err := s.IssueAccessTokenWithClaims(p.Username, p.UserID, p.Email, p.Role)
	if err != nil {
		return nil, err
	}

	refresh, err := s.IssueRefreshToken(ctx, p.Username)
	if err != nil {
		return nil, err
	}

	l.Info("login succeeded", slog.String("username", p.Username), slog.String("user_id", p.UserID))
	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.accessTTL(),
	}, nil
}

// ExchangeRefreshToken validates a refresh token and issues a new
// identity-bearing access token for its user. The refresh token is not
// rotated.
func (s *TokenService) ExchangeRefreshToken(ctx context.Context, token string) (*domain.TokenPair, error) {
	username, err := s.ValidateRefreshToken(ctx, token)
	if err != nil {
		return nil, err
	}

	p, err := s.Identities.Lookup(ctx, username)
	if err != nil {
		if errors.Is(err, identity.ErrUnknownUser) {
			// The user was removed after the token was issued.
			return nil, fmt.Errorf("%w: %w", ErrInvalidRefresh, err)
		}
		return nil, err
	}

	access, err := s.IssueAccessTokenWithClaims(p.Username, p.UserID, p.Email, p.Role)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{AccessToken: access, ExpiresIn: s.accessTTL()}, nil
}

// RevokeRefreshToken deletes the token's store entry. Revoking an unknown
// token succeeds.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, token string) error {
	return s.RevokeRefreshTokenByID(ctx, cryptox.FingerprintToken(token))
}

// RevokeRefreshTokenByID deletes a store entry by token id.
func (s *TokenService) RevokeRefreshTokenByID(ctx context.Context, tokenID string) error {
	if err := s.Store.RefreshTokens().Delete(ctx, tokenID); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}
