package services

import "errors"

// Grant processing errors. The HTTP boundary maps each to its RFC error code
// and status; services never shape wire responses themselves.
var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInvalidGrant   = errors.New("invalid_grant")
	ErrInvalidScope   = errors.New("invalid_scope")

	ErrUnauthorizedClient      = errors.New("unauthorized_client")
	ErrUnsupportedGrantType    = errors.New("unsupported_grant_type")
	ErrUnsupportedResponseType = errors.New("unsupported_response_type")

	// UMA ticket exchange
	ErrInvalidTicket = errors.New("invalid_ticket")
	ErrExpiredTicket = errors.New("expired_ticket")
	ErrRequestDenied = errors.New("request_denied")

	// Device authorization grant (RFC 8628)
	ErrAuthorizationPending = errors.New("authorization_pending")
	ErrSlowDown             = errors.New("slow_down")
	ErrAccessDenied         = errors.New("access_denied")

	// Authorization code exchange
	ErrAuthCodeNotFound    = errors.New("authorization code not found")
	ErrAuthCodeExpired     = errors.New("authorization code expired")
	ErrAuthCodeAlreadyUsed = errors.New("authorization code already used")
	ErrInvalidRedirectURI  = errors.New("invalid redirect_uri")
	ErrInvalidCodeVerifier = errors.New("invalid code_verifier")
	ErrPKCERequired        = errors.New("pkce required")

	// Data consistency faults. Never a policy denial: something the ticket
	// or token references no longer exists.
	ErrInternal = errors.New("internal server error")
)

// OAuth2 / OIDC grant type identifiers understood by the token endpoint.
const (
	GrantTypePassword          = "password"
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeClientCredentials = "client_credentials"
	GrantTypeImplicit          = "implicit"
	GrantTypeDeviceCode        = "urn:ietf:params:oauth:grant-type:device_code"
	GrantTypeUMATicket         = "urn:ietf:params:oauth:grant-type:uma-ticket"
)
