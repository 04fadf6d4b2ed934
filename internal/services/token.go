package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/permgate/permgate/internal/config"
	"github.com/permgate/permgate/internal/core"
	"github.com/permgate/permgate/internal/events"
	"github.com/permgate/permgate/internal/models"
	"github.com/permgate/permgate/internal/store"
	"github.com/permgate/permgate/internal/token"
	"github.com/permgate/permgate/internal/util"
)

// TokenService runs the grant-type state machines: each public method is one
// self-contained validation and issuance pipeline. Callers authenticate the
// client first (clientauth package) and hand the resolved Client in.
type TokenService struct {
	store          *store.Store
	config         *config.Config
	provider       *token.Provider
	deviceService  *DeviceService
	authenticators []core.ResourceOwnerAuthenticator
	events         *events.Publisher
	metrics        core.Recorder
}

func NewTokenService(
	s *store.Store,
	cfg *config.Config,
	provider *token.Provider,
	ds *DeviceService,
	authenticators []core.ResourceOwnerAuthenticator,
	publisher *events.Publisher,
	m core.Recorder,
) *TokenService {
	return &TokenService{
		store:          s,
		config:         cfg,
		provider:       provider,
		deviceService:  ds,
		authenticators: authenticators,
		events:         publisher,
		metrics:        m,
	}
}

// IssuePasswordToken runs the resource-owner-password grant. The registered
// credential verifiers are tried in order; the first success wins.
func (s *TokenService) IssuePasswordToken(
	ctx context.Context,
	client *models.Client,
	username, password, requestedScopes string,
) (*models.GrantedToken, error) {
	// 1. Grant and parameter checks
	if !client.HasGrantType(GrantTypePassword) {
		return nil, fmt.Errorf("%w: password grant not enabled for client", ErrInvalidGrant)
	}
	if username == "" || password == "" || requestedScopes == "" {
		return nil, fmt.Errorf("%w: username, password and scope are required", ErrInvalidRequest)
	}
	if !client.AllowsScopes(requestedScopes) {
		return nil, ErrInvalidScope
	}

	// 2. Resource owner authentication via pluggable verifiers
	var owner *core.ResourceOwnerResult
	for _, authenticator := range s.authenticators {
		result, err := authenticator.Authenticate(ctx, username, password)
		if err != nil {
			log.Printf("[Token] authenticator %s errored for %s: %v", authenticator.Name(), username, err)
			continue
		}
		if result != nil && result.Success {
			owner = result
			break
		}
	}
	if owner == nil {
		return nil, fmt.Errorf("%w: resource owner authentication failed", ErrInvalidGrant)
	}

	// 3. Reuse a still-valid token for the same (scope, client, payload)
	payload, err := deriveClaims(s.store, owner.Subject, requestedScopes)
	if err != nil {
		log.Printf("[Token] claim derivation failed for %s: %v", owner.Subject, err)
		payload = models.JSONMap{"sub": owner.Subject}
	}
	if reused := s.findReusableToken(requestedScopes, client.ClientID, payload); reused != nil {
		s.metrics.RecordTokenReused(GrantTypePassword)
		return reused, nil
	}

	// 4. Mint and persist
	return s.issueTokenPair(ctx, issueParams{
		Client:      client,
		Subject:     owner.Subject,
		Scopes:      requestedScopes,
		GrantType:   GrantTypePassword,
		Payload:     payload,
		WithRefresh: true,
		WithIDToken: token.ScopeSet(requestedScopes)["openid"],
		AuthTime:    time.Now(),
	})
}

// IssueClientCredentialsToken runs the client_credentials grant
// (RFC 6749 §4.4). Back-to-back requests for the same (scope, client) reuse
// the still-valid token instead of minting a new one. No refresh token is
// issued (§4.4.3).
func (s *TokenService) IssueClientCredentialsToken(
	ctx context.Context,
	client *models.Client,
	requestedScopes string,
) (*models.GrantedToken, error) {
	if !client.HasGrantType(GrantTypeClientCredentials) {
		return nil, fmt.Errorf("%w: client_credentials grant not enabled for client", ErrInvalidGrant)
	}
	if !client.HasResponseType("token") {
		return nil, fmt.Errorf("%w: client does not support token response type", ErrInvalidGrant)
	}
	if requestedScopes == "" {
		return nil, fmt.Errorf("%w: scope is required", ErrInvalidRequest)
	}
	if !client.AllowsScopes(requestedScopes) {
		return nil, ErrInvalidScope
	}

	machineID := machineIdentityPrefix + client.ClientID
	payload := models.JSONMap{"sub": machineID}

	if reused := s.findReusableToken(requestedScopes, client.ClientID, payload); reused != nil {
		s.metrics.RecordTokenReused(GrantTypeClientCredentials)
		return reused, nil
	}

	return s.issueTokenPair(ctx, issueParams{
		Client:      client,
		Subject:     machineID,
		Scopes:      requestedScopes,
		GrantType:   GrantTypeClientCredentials,
		Payload:     payload,
		WithRefresh: false,
	})
}

// ExchangeAuthorizationCode runs the authorization_code grant: single-use
// code consumption, redirect URI match, and PKCE verification.
func (s *TokenService) ExchangeAuthorizationCode(
	ctx context.Context,
	client *models.Client,
	plainCode, redirectURI, codeVerifier string,
) (*models.GrantedToken, error) {
	if !client.HasGrantType(GrantTypeAuthorizationCode) {
		return nil, fmt.Errorf("%w: authorization_code grant not enabled for client", ErrInvalidGrant)
	}
	if plainCode == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidRequest)
	}

	record, err := s.store.GetAuthorizationCodeByHash(util.SHA256Hex(plainCode))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGrant, ErrAuthCodeNotFound)
	}

	if record.IsUsed() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGrant, ErrAuthCodeAlreadyUsed)
	}
	if record.IsExpired() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGrant, ErrAuthCodeExpired)
	}
	if record.ClientID != client.ClientID {
		// Don't reveal the code exists for another client.
		return nil, fmt.Errorf("%w: %v", ErrInvalidGrant, ErrAuthCodeNotFound)
	}
	if record.RedirectURI != redirectURI {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGrant, ErrInvalidRedirectURI)
	}

	// PKCE verification (RFC 7636). Required whenever the client demands it
	// or a challenge was bound at authorization time.
	if client.RequirePKCE && record.CodeChallenge == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGrant, ErrPKCERequired)
	}
	if record.CodeChallenge != "" {
		if !verifyPKCE(record.CodeChallenge, record.CodeChallengeMethod, codeVerifier) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGrant, ErrInvalidCodeVerifier)
		}
	}

	// Consume atomically. The conditional update ensures only one concurrent
	// exchange wins; the loser gets ErrAuthCodeAlreadyUsed from the store.
	if err := s.store.MarkAuthorizationCodeUsed(record.CodeHash); err != nil {
		if errors.Is(err, store.ErrAuthCodeAlreadyUsed) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGrant, ErrAuthCodeAlreadyUsed)
		}
		return nil, fmt.Errorf("failed to mark code as used: %w", err)
	}

	s.events.Publish(ctx, events.Event{
		Type:     models.EventAuthorizationCodeExchanged,
		Severity: models.SeverityInfo,
		ActorID:  record.UserID,
		ClientID: client.ClientID,
		TargetID: record.UUID,
		Details: models.EventDetails{
			"scopes": record.Scopes,
		},
	})

	granted, err := s.issueTokenPair(ctx, issueParams{
		Client:      client,
		Subject:     record.UserID,
		Scopes:      record.Scopes,
		GrantType:   GrantTypeAuthorizationCode,
		Payload:     record.IDTokenPayload,
		WithRefresh: true,
		WithIDToken: token.ScopeSet(record.Scopes)["openid"],
		Nonce:       record.Nonce,
		CodeForHash: plainCode,
		AuthTime:    record.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	return granted, nil
}

// RefreshAccessToken runs the refresh_token grant. The owning client must
// match the authenticating client exactly; claims are re-derived fresh so
// revoked or changed attributes propagate into the new token.
func (s *TokenService) RefreshAccessToken(
	ctx context.Context,
	client *models.Client,
	refreshTokenString, requestedScopes string,
) (*models.GrantedToken, error) {
	if !client.HasGrantType(GrantTypeRefreshToken) {
		return nil, fmt.Errorf("%w: refresh_token grant not enabled for client", ErrInvalidGrant)
	}
	if refreshTokenString == "" {
		return nil, fmt.Errorf("%w: refresh_token is required", ErrInvalidRequest)
	}

	// 1. The JWT itself must verify and carry type=refresh.
	if _, err := s.provider.ValidateRefreshToken(ctx, refreshTokenString); err != nil {
		s.metrics.RecordTokenRefresh(false)
		return nil, fmt.Errorf("%w: %v", ErrInvalidGrant, err)
	}

	// 2. The owning granted-token row must exist and be redeemable.
	parent, err := s.store.GetRefreshToken(refreshTokenString)
	if err != nil {
		s.metrics.RecordTokenRefresh(false)
		return nil, fmt.Errorf("%w: refresh token unknown", ErrInvalidGrant)
	}
	if !parent.IsActive() {
		s.metrics.RecordTokenRefresh(false)
		return nil, fmt.Errorf("%w: refresh token revoked or disabled", ErrInvalidGrant)
	}

	// 3. Owner check: a refresh token issued to client A must never be
	// redeemable by client B, even with a valid token value.
	if parent.ClientID != client.ClientID {
		s.metrics.RecordTokenRefresh(false)
		return nil, fmt.Errorf("%w: refresh token was issued to a different client", ErrInvalidGrant)
	}

	// 4. Scope narrowing only; no upgrades.
	effectiveScopes := parent.Scopes
	if requestedScopes != "" {
		if !scopesSubset(parent.Scopes, requestedScopes) {
			s.metrics.RecordTokenRefresh(false)
			return nil, ErrInvalidScope
		}
		effectiveScopes = requestedScopes
	}

	// 5. Fresh claim derivation. Machine identities keep their synthetic
	// payload; there is no user record to consult.
	payload, err := deriveClaims(s.store, parent.UserID, effectiveScopes)
	if err != nil {
		s.metrics.RecordTokenRefresh(false)
		return nil, fmt.Errorf("%w: subject no longer resolvable", ErrInvalidGrant)
	}

	granted, err := s.issueTokenPair(ctx, issueParams{
		Client:        client,
		Subject:       parent.UserID,
		Scopes:        effectiveScopes,
		GrantType:     GrantTypeRefreshToken,
		Payload:       payload,
		WithRefresh:   true,
		WithIDToken:   token.ScopeSet(effectiveScopes)["openid"] && !IsMachineIdentity(parent.UserID),
		ParentTokenID: parent.ID,
		ConsentID:     parent.ConsentID,
		AuthTime:      time.Now(),
	})
	if err != nil {
		s.metrics.RecordTokenRefresh(false)
		return nil, err
	}

	// 6. Rotation mode retires the redeemed refresh token.
	if s.config.EnableTokenRotation {
		if err := s.store.RevokeToken(parent.ID); err != nil {
			log.Printf("[Token] failed to revoke rotated refresh token %s: %v", parent.ID, err)
		}
	} else {
		_ = s.store.TouchToken(parent.ID)
	}

	s.metrics.RecordTokenRefresh(true)
	s.events.Publish(ctx, events.Event{
		Type:     models.EventTokenRefreshed,
		Severity: models.SeverityInfo,
		ActorID:  granted.UserID,
		ClientID: client.ClientID,
		TargetID: granted.ID,
		Details: models.EventDetails{
			"parent_token_id":  parent.ID,
			"scopes":           effectiveScopes,
			"rotation_enabled": s.config.EnableTokenRotation,
		},
	})

	return granted, nil
}

// ExchangeDeviceCode runs the device_code grant (RFC 8628) once the user has
// approved the request out of band.
func (s *TokenService) ExchangeDeviceCode(
	ctx context.Context,
	client *models.Client,
	deviceCode string,
) (*models.GrantedToken, error) {
	if !client.HasGrantType(GrantTypeDeviceCode) {
		return nil, fmt.Errorf("%w: device_code grant not enabled for client", ErrInvalidGrant)
	}

	dc, err := s.deviceService.GetDeviceCode(deviceCode)
	if err != nil {
		if errors.Is(err, ErrDeviceCodeExpired) {
			s.metrics.RecordDeviceCodeValidation("expired")
			return nil, fmt.Errorf("%w: device code expired", ErrInvalidGrant)
		}
		s.metrics.RecordDeviceCodeValidation("invalid")
		return nil, fmt.Errorf("%w: device code unknown", ErrInvalidGrant)
	}

	if dc.ClientID != client.ClientID {
		s.metrics.RecordDeviceCodeValidation("invalid")
		return nil, ErrAccessDenied
	}
	if !dc.Authorized {
		s.metrics.RecordDeviceCodeValidation("pending")
		return nil, ErrAuthorizationPending
	}
	s.metrics.RecordDeviceCodeValidation("success")

	payload, err := deriveClaims(s.store, dc.UserID, dc.Scopes)
	if err != nil {
		payload = models.JSONMap{"sub": dc.UserID}
	}

	granted, err := s.issueTokenPair(ctx, issueParams{
		Client:      client,
		Subject:     dc.UserID,
		Scopes:      dc.Scopes,
		GrantType:   GrantTypeDeviceCode,
		Payload:     payload,
		WithRefresh: true,
		WithIDToken: token.ScopeSet(dc.Scopes)["openid"],
		AuthTime:    dc.AuthorizedAt,
	})
	if err != nil {
		return nil, err
	}

	_ = s.store.DeleteDeviceCode(dc.ID)
	return granted, nil
}

// ValidateToken verifies a presented access token or RPT: signature first,
// then revocation and expiry state in the store.
func (s *TokenService) ValidateToken(
	ctx context.Context,
	tokenString string,
) (*token.ValidationResult, error) {
	start := time.Now()

	result, err := s.provider.ValidateToken(ctx, tokenString)
	if err != nil {
		s.metrics.RecordTokenValidation("invalid", time.Since(start))
		return nil, err
	}

	granted, err := s.store.GetToken(tokenString)
	if err != nil {
		s.metrics.RecordTokenValidation("unknown", time.Since(start))
		return nil, errors.New("token not found or revoked")
	}
	if !granted.IsActive() {
		s.metrics.RecordTokenValidation("revoked", time.Since(start))
		return nil, errors.New("token not found or revoked")
	}
	if granted.IsExpired() {
		s.metrics.RecordTokenValidation("expired", time.Since(start))
		return nil, errors.New("token has expired")
	}

	s.metrics.RecordTokenValidation("success", time.Since(start))
	return result, nil
}

// RevokeToken revokes a presented token value (RFC 7009). The token may be
// an access token value or a refresh token value; revoking either kills the
// whole row. Unknown tokens are not an error per the RFC.
func (s *TokenService) RevokeToken(ctx context.Context, client *models.Client, tokenString string) error {
	granted, err := s.store.GetToken(tokenString)
	if err != nil {
		granted, err = s.store.GetRefreshToken(tokenString)
		if err != nil {
			return nil
		}
	}

	// Clients may only revoke their own tokens.
	if granted.ClientID != client.ClientID {
		return nil
	}

	if err := s.store.RevokeToken(granted.ID); err != nil {
		return err
	}

	s.metrics.RecordTokenRevoked(granted.TokenCategory, "client_request")
	s.events.Publish(ctx, events.Event{
		Type:     models.EventTokenRevoked,
		Severity: models.SeverityInfo,
		ActorID:  granted.UserID,
		ClientID: granted.ClientID,
		TargetID: granted.ID,
		Details: models.EventDetails{
			"token_category": granted.TokenCategory,
		},
	})
	return nil
}

// issueParams collects everything issueTokenPair needs to mint one granted
// token row (access token, optional refresh token, optional ID token).
type issueParams struct {
	Client      *models.Client
	Subject     string
	Scopes      string
	GrantType   string
	Payload     models.JSONMap
	WithRefresh bool
	WithIDToken bool

	Nonce        string
	CodeForHash  string // plaintext authorization code, for c_hash
	SessionState string
	AuthTime     time.Time

	ParentTokenID string
	ConsentID     *uint
}

// issueTokenPair mints the requested artifacts, persists the granted-token
// row, and publishes one event per artifact created.
func (s *TokenService) issueTokenPair(
	ctx context.Context,
	p issueParams,
) (*models.GrantedToken, error) {
	start := time.Now()

	accessResult, err := s.provider.GenerateToken(
		ctx, p.Subject, p.Client.ClientID, p.Scopes,
		p.Client.TokenLifetime(s.config.JWTExpiration),
	)
	if err != nil {
		log.Printf("[Token] access token generation failed: %v", err)
		return nil, fmt.Errorf("token generation failed: %w", err)
	}

	granted := &models.GrantedToken{
		ID:             uuid.New().String(),
		Token:          accessResult.TokenString,
		TokenType:      accessResult.TokenType,
		TokenCategory:  models.TokenCategoryAccess,
		Status:         models.TokenStatusActive,
		UserID:         p.Subject,
		ClientID:       p.Client.ClientID,
		Scopes:         p.Scopes,
		GrantType:      p.GrantType,
		IDTokenPayload: p.Payload,
		ExpiresAt:      accessResult.ExpiresAt,
		ParentTokenID:  p.ParentTokenID,
		ConsentID:      p.ConsentID,
	}

	if p.WithRefresh {
		refreshResult, err := s.provider.GenerateRefreshToken(ctx, p.Subject, p.Client.ClientID, p.Scopes)
		if err != nil {
			log.Printf("[Token] refresh token generation failed: %v", err)
			return nil, fmt.Errorf("refresh token generation failed: %w", err)
		}
		granted.RefreshToken = refreshResult.TokenString
	}

	if p.WithIDToken {
		idToken, err := s.generateIDToken(p, accessResult.TokenString)
		if err != nil {
			log.Printf("[Token] ID token generation failed: %v", err)
		} else {
			granted.IDToken = idToken
		}
	}

	if err := s.store.AddToken(granted); err != nil {
		return nil, fmt.Errorf("failed to save granted token: %w", err)
	}

	duration := time.Since(start)
	s.metrics.RecordTokenIssued(models.TokenCategoryAccess, p.GrantType, duration)
	s.events.Publish(ctx, events.Event{
		Type:     models.EventAccessTokenGranted,
		Severity: models.SeverityInfo,
		ActorID:  p.Subject,
		ClientID: p.Client.ClientID,
		TargetID: granted.ID,
		Details: models.EventDetails{
			"grant_type": p.GrantType,
			"scopes":     p.Scopes,
		},
	})
	if p.WithRefresh {
		s.metrics.RecordTokenIssued(models.TokenCategoryRefresh, p.GrantType, duration)
		s.events.Publish(ctx, events.Event{
			Type:     models.EventRefreshTokenGranted,
			Severity: models.SeverityInfo,
			ActorID:  p.Subject,
			ClientID: p.Client.ClientID,
			TargetID: granted.ID,
			Details: models.EventDetails{
				"grant_type": p.GrantType,
			},
		})
	}
	if granted.IDToken != "" {
		s.events.Publish(ctx, events.Event{
			Type:     models.EventIDTokenGranted,
			Severity: models.SeverityInfo,
			ActorID:  p.Subject,
			ClientID: p.Client.ClientID,
			TargetID: granted.ID,
		})
	}

	return granted, nil
}

// generateIDToken builds the OIDC ID token for an issuance, encrypting it
// when the client registered an encryption algorithm.
func (s *TokenService) generateIDToken(p issueParams, accessToken string) (string, error) {
	authTime := p.AuthTime
	if authTime.IsZero() {
		authTime = time.Now()
	}

	params := token.IDTokenParams{
		Issuer:       strings.TrimRight(s.config.BaseURL, "/"),
		Subject:      p.Subject,
		Audience:     p.Client.ClientID,
		AuthTime:     authTime,
		Expiry:       p.Client.TokenLifetime(s.config.JWTExpiration),
		Nonce:        p.Nonce,
		AtHash:       token.ComputeAtHash(accessToken),
		SessionState: p.SessionState,
		Claims:       p.Payload,
	}
	if p.CodeForHash != "" {
		params.CHash = token.ComputeCHash(p.CodeForHash)
	}

	signed, err := s.provider.GenerateIDToken(params)
	if err != nil {
		return "", err
	}

	if p.Client.IDTokenEncryptedAlg != "" {
		return token.EncryptIDToken(signed, p.Client.JWKS, p.Client.IDTokenEncryptedAlg)
	}
	return signed, nil
}

// findReusableToken returns a still-valid active token for the same
// (scope, client) whose claim snapshot matches, or nil.
func (s *TokenService) findReusableToken(
	scopes, clientID string,
	payload models.JSONMap,
) *models.GrantedToken {
	candidates, err := s.store.GetValidGrantedTokens(scopes, clientID)
	if err != nil {
		log.Printf("[Token] reuse lookup failed: %v", err)
		return nil
	}
	for i := range candidates {
		if candidates[i].TokenCategory != models.TokenCategoryAccess {
			continue
		}
		if candidates[i].IDTokenPayload.Equal(payload) {
			return &candidates[i]
		}
	}
	return nil
}

// scopesSubset checks if requested scopes are a subset of original scopes.
func scopesSubset(originalScopes, requestedScopes string) bool {
	originalSet := make(map[string]bool)
	for _, scope := range strings.Fields(originalScopes) {
		originalSet[scope] = true
	}
	for _, scope := range strings.Fields(requestedScopes) {
		if !originalSet[scope] {
			return false
		}
	}
	return true
}
