package core

import "context"

// ResourceOwnerResult holds the outcome of a resource-owner credential check.
type ResourceOwnerResult struct {
	Subject  string
	Username string
	Email    string // Optional
	FullName string // Optional
	Success  bool
}

// ResourceOwnerAuthenticator is the interface that password-grant credential
// backends must implement. Registered authenticators are tried in order; the
// first success wins.
type ResourceOwnerAuthenticator interface {
	Authenticate(ctx context.Context, username, password string) (*ResourceOwnerResult, error)
	Name() string
}
