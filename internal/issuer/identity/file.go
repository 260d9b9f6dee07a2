package identity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aussiebroadwan/tokentrust/internal/issuer/domain"
	"github.com/aussiebroadwan/tokentrust/pkg/cryptox"
	"github.com/aussiebroadwan/tokentrust/pkg/slogx"
)

// User is one entry of the users file.
type User struct {
	Username     string `yaml:"username"`
	UserID       string `yaml:"user_id"`
	Email        string `yaml:"email"`
	Role         string `yaml:"role"`
	PasswordHash string `yaml:"password_hash"`
}

type usersFile struct {
	Users []User `yaml:"users"`
}

// Directory is a read-only Source backed by a fixed user list, usually
// loaded from a YAML file:
//
//	users:
//	  - username: alice
//	    user_id: "42"
//	    email: alice@x.com
//	    role: USER
//	    password_hash: "$argon2id$v=19$..."
type Directory struct {
	users map[string]User
}

var _ Source = (*Directory)(nil)

// LoadFile reads a users file.
func LoadFile(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}

	// Unknown keys are errors; a typo in password_hash should not load
	// as a user with no hash.
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f usersFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse users file: %w", err)
	}

	return NewDirectory(f.Users...)
}

// NewDirectory builds a Directory from users. Usernames are case-sensitive
// and must be unique.
func NewDirectory(users ...User) (*Directory, error) {
	d := &Directory{users: make(map[string]User, len(users))}
	for i, u := range users {
		u.Username = strings.TrimSpace(u.Username)
		if u.Username == "" {
			return nil, fmt.Errorf("user %d: username is required", i)
		}
		if u.PasswordHash == "" {
			return nil, fmt.Errorf("user %q: password_hash is required", u.Username)
		}
		if err := cryptox.CheckHash(u.PasswordHash); err != nil {
			return nil, fmt.Errorf("user %q: %w", u.Username, err)
		}
		if _, dup := d.users[u.Username]; dup {
			return nil, fmt.Errorf("user %q: duplicate username", u.Username)
		}
		d.users[u.Username] = u
	}
	return d, nil
}

// Len returns the number of users.
func (d *Directory) Len() int { return len(d.users) }

func (d *Directory) Authenticate(ctx context.Context, username, password string) (domain.Principal, error) {
	u, ok := d.users[username]
	if !ok {
		// Burn the same time as a real check.
		cryptox.BurnPasswordCheck(password)
		return domain.Principal{}, ErrInvalidCredentials
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		slogx.FromContext(ctx).Debug("password check failed", "username", username, "err", err)
		return domain.Principal{}, ErrInvalidCredentials
	}

	return u.principal(), nil
}

func (d *Directory) Lookup(_ context.Context, username string) (domain.Principal, error) {
	u, ok := d.users[username]
	if !ok {
		return domain.Principal{}, ErrUnknownUser
	}
	return u.principal(), nil
}

func (u User) principal() domain.Principal {
	return domain.Principal{
		Username: u.Username,
		UserID:   u.UserID,
		Email:    u.Email,
		Role:     u.Role,
	}
}
