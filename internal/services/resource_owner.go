package services

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/permgate/permgate/internal/core"
	"github.com/permgate/permgate/internal/store"
)

// LocalResourceOwnerAuthenticator verifies resource-owner credentials
// against the local user table. Additional verifiers (LDAP, remote IdP) can
// be registered alongside it; the password grant tries them in order.
type LocalResourceOwnerAuthenticator struct {
	store *store.Store
}

func NewLocalResourceOwnerAuthenticator(s *store.Store) *LocalResourceOwnerAuthenticator {
	return &LocalResourceOwnerAuthenticator{store: s}
}

// Authenticate checks username/password against the stored bcrypt hash.
// A failed match is a nil result, not an error; errors are reserved for
// lookup faults.
func (a *LocalResourceOwnerAuthenticator) Authenticate(
	ctx context.Context,
	username, password string,
) (*core.ResourceOwnerResult, error) {
	user, err := a.store.GetUserByUsername(username)
	if err != nil {
		return nil, nil
	}
	if user.IsExternal() || user.PasswordHash == "" {
		return nil, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, nil
	}

	return &core.ResourceOwnerResult{
		Subject:  user.ID,
		Username: user.Username,
		Email:    user.Email,
		FullName: user.FullName,
		Success:  true,
	}, nil
}

func (a *LocalResourceOwnerAuthenticator) Name() string {
	return "local"
}
