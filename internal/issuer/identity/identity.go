// Package identity resolves usernames to principals for the issuer. The
// issuer only needs to check a password and look a user up again on
// refresh; where users live is up to the Source.
package identity

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/tokentrust/internal/issuer/domain"
)

var (
	// ErrInvalidCredentials covers both unknown users and wrong passwords.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	// ErrUnknownUser is returned by Lookup.
	ErrUnknownUser = errors.New("identity: unknown user")
)

// Source authenticates users.
type Source interface {
	// Authenticate checks password and returns the principal.
	Authenticate(ctx context.Context, username, password string) (domain.Principal, error)

	// Lookup returns the principal without a password check.
	Lookup(ctx context.Context, username string) (domain.Principal, error)
}
