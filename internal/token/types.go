package token

import (
	"time"

	"github.com/permgate/permgate/internal/core"
)

const (
	TokenTypeBearer = "Bearer"

	// type claim values
	typeAccess  = "access"
	typeRefresh = "refresh"
	typeRPT     = "rpt"
)

// Result is an alias for core.TokenResult.
type Result = core.TokenResult

// ValidationResult is an alias for core.TokenValidationResult.
type ValidationResult = core.TokenValidationResult

// IDTokenParams holds the data needed to generate an OIDC ID Token
// (OIDC Core 1.0 §2).
type IDTokenParams struct {
	Issuer       string
	Subject      string
	Audience     string
	AuthTime     time.Time
	Expiry       time.Duration
	Nonce        string
	AtHash       string
	CHash        string
	SessionState string

	// Claims holds the user claims derived from the granted scopes at
	// issuance time (name, email, preferred_username, ...). Reserved
	// claim names are never overridden by this map.
	Claims map[string]any
}

// PermissionLine is one entry of the "ticket" claim carried by an RPT,
// granting a set of scopes on one resource set.
type PermissionLine struct {
	ResourceSetID string   `json:"resource_set_id"`
	Scopes        []string `json:"scopes"`
}
