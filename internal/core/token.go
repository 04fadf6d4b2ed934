package core

import "time"

// TokenResult is the outcome of a token generation call.
type TokenResult struct {
	TokenString string
	TokenType   string
	ExpiresAt   time.Time
	Claims      map[string]any
	Success     bool
}

// TokenValidationResult is the outcome of a token validation call.
type TokenValidationResult struct {
	Valid     bool
	Subject   string
	ClientID  string
	Scopes    string
	ExpiresAt time.Time
	Claims    map[string]any
}

