package services

import (
	"context"
	"encoding/hex"
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

// Authorization endpoint flows, selected by the requested response types.
const (
	FlowAuthorizationCode = "authorization_code"
	FlowImplicit          = "implicit"
	FlowHybrid            = "hybrid"
)

// AuthError is a typed authorization-endpoint failure: an OAuth error code,
// a human-readable detail, and the request's state so the HTTP layer can
// redirect with the error echoed. Returned as a value, never panicked.
type AuthError struct {
	Code        string
	Description string
	State       string

	// RedirectSafe is set once the client and redirect URI have been
	// validated; only then may the HTTP layer echo the error to the
	// redirect URI instead of answering directly.
	RedirectSafe bool
}

func (e *AuthError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return e.Code + ": " + e.Description
}

func authErr(code, description, state string) *AuthError {
	return &AuthError{Code: code, Description: description, State: state}
}

func authErrRedirect(code, description, state string) *AuthError {
	return &AuthError{Code: code, Description: description, State: state, RedirectSafe: true}
}

// AuthorizeRequest is a parsed authorization-endpoint request for an
// already-authenticated resource owner.
type AuthorizeRequest struct {
	ClientID     string
	RedirectURI  string
	ResponseType string
	Scope        string
	State        string
	Nonce        string

	CodeChallenge       string
	CodeChallengeMethod string

	// Authenticated resource owner and browser session
	Subject   string
	SessionID string
	OriginURL string
}

// AuthorizeResponse carries the artifacts a flow produced. Fields are empty
// when the flow did not issue the corresponding artifact.
type AuthorizeResponse struct {
	Flow        string
	RedirectURI string
	State       string

	Code         string
	AccessToken  string
	TokenType    string
	ExpiresIn    int64
	IDToken      string
	SessionState string

	// ConsentRequired is set when a code was requested but no confirmed
	// consent covers the subject+client+scope; the HTTP layer prompts and
	// calls GrantConsent before retrying.
	ConsentRequired bool
}

// AuthorizationService orchestrates the authorization endpoint: request
// validation, flow selection, and the shared response generator.
type AuthorizationService struct {
	store        *store.Store
	config       *config.Config
	tokenService *TokenService
	events       *events.Publisher
	metrics      core.Recorder
}

func NewAuthorizationService(
	s *store.Store,
	cfg *config.Config,
	ts *TokenService,
	publisher *events.Publisher,
	m core.Recorder,
) *AuthorizationService {
	return &AuthorizationService{
		store:        s,
		config:       cfg,
		tokenService: ts,
		events:       publisher,
		metrics:      m,
	}
}

// Authorize validates the request, selects the flow, and generates the
// response artifacts.
func (s *AuthorizationService) Authorize(
	ctx context.Context,
	req AuthorizeRequest,
) (*AuthorizeResponse, *AuthError) {
	client, flow, authErr := s.validate(req)
	if authErr != nil {
		s.metrics.RecordAuthorizationRequest(flow, "rejected")
		return nil, authErr
	}

	resp, authErr := s.generateResponse(ctx, client, flow, req)
	if authErr != nil {
		s.metrics.RecordAuthorizationRequest(flow, "error")
		return nil, authErr
	}

	result := "success"
	if resp.ConsentRequired {
		result = "consent_required"
	}
	s.metrics.RecordAuthorizationRequest(flow, result)
	return resp, nil
}

// validate runs every check that must precede artifact issuance. Returns the
// resolved client and selected flow.
func (s *AuthorizationService) validate(req AuthorizeRequest) (*models.Client, string, *AuthError) {
	responseTypes := token.ScopeSet(req.ResponseType)
	flow, err := selectFlow(responseTypes)
	if err != nil {
		return nil, "", authErr("unsupported_response_type", err.Error(), req.State)
	}

	client, getErr := s.store.GetClient(req.ClientID)
	if getErr != nil || !client.IsActive {
		return nil, flow, authErr("unauthorized_client", "unknown or inactive client", req.State)
	}

	if !client.HasRedirectURI(req.RedirectURI) {
		return nil, flow, authErr("invalid_request", "redirect_uri is not registered for this client", req.State)
	}

	for rt := range responseTypes {
		if !client.HasResponseType(rt) {
			return nil, flow, authErrRedirect("unsupported_response_type",
				fmt.Sprintf("client does not support response type %q", rt), req.State)
		}
	}

	// Grant-type entitlement per flow. Hybrid implicitly needs both.
	switch flow {
	case FlowAuthorizationCode:
		if !client.HasGrantType(GrantTypeAuthorizationCode) {
			return nil, flow, authErrRedirect("invalid_request",
				"client does not support the authorization_code grant type", req.State)
		}
	case FlowImplicit:
		if !client.HasGrantType(GrantTypeImplicit) {
			return nil, flow, authErrRedirect("invalid_request",
				"client does not support the implicit grant type", req.State)
		}
	case FlowHybrid:
		if !client.HasGrantType(GrantTypeImplicit) || !client.HasGrantType(GrantTypeAuthorizationCode) {
			return nil, flow, authErrRedirect("invalid_request",
				"hybrid flow requires the implicit and authorization_code grant types", req.State)
		}
	}

	if req.Scope != "" && !client.AllowsScopes(req.Scope) {
		return nil, flow, authErrRedirect("invalid_scope", "requested scope exceeds client registration", req.State)
	}

	// PKCE must be bound before any code is issued.
	if responseTypes["code"] && (client.RequirePKCE || s.config.PKCERequired) && req.CodeChallenge == "" {
		return nil, flow, authErrRedirect("invalid_request", "code_challenge is required for this client", req.State)
	}
	if req.CodeChallengeMethod != "" && req.CodeChallengeMethod != "S256" && req.CodeChallengeMethod != "plain" {
		return nil, flow, authErrRedirect("invalid_request", "unsupported code_challenge_method", req.State)
	}

	// Flows minting an ID token directly need a nonce for replay binding.
	if responseTypes["id_token"] && req.Nonce == "" {
		return nil, flow, authErrRedirect("invalid_request", "nonce is required when requesting an id_token", req.State)
	}

	return client, flow, nil
}

// generateResponse is the shared response generator: conditionally an access
// token, then an authorization code, then an ID token, in that order so the
// at_hash and c_hash claims can be filled from the artifacts that exist.
func (s *AuthorizationService) generateResponse(
	ctx context.Context,
	client *models.Client,
	flow string,
	req AuthorizeRequest,
) (*AuthorizeResponse, *AuthError) {
	responseTypes := token.ScopeSet(req.ResponseType)
	scope := req.Scope
	if scope == "" {
		scope = client.Scopes
	}

	payload, err := deriveClaims(s.store, req.Subject, scope)
	if err != nil {
		return nil, authErrRedirect("invalid_request", "resource owner not resolvable", req.State)
	}

	sessionState, err := util.ComputeSessionState(
		client.ClientID, req.OriginURL, req.SessionID, s.config.SessionSaltLen)
	if err != nil {
		log.Printf("[Authorize] session state computation failed: %v", err)
	}

	resp := &AuthorizeResponse{
		Flow:         flow,
		RedirectURI:  req.RedirectURI,
		State:        req.State,
		SessionState: sessionState,
	}

	var accessTokenValue string

	// 1. Access token, when response types include "token".
	if responseTypes["token"] {
		granted, issueErr := s.tokenService.issueTokenPair(ctx, issueParams{
			Client:       client,
			Subject:      req.Subject,
			Scopes:       scope,
			GrantType:    GrantTypeImplicit,
			Payload:      payload,
			WithRefresh:  false,
			SessionState: sessionState,
			AuthTime:     time.Now(),
		})
		if issueErr != nil {
			return nil, authErrRedirect("server_error", "token issuance failed", req.State)
		}
		accessTokenValue = granted.Token
		resp.AccessToken = granted.Token
		resp.TokenType = granted.TokenType
		resp.ExpiresIn = int64(time.Until(granted.ExpiresAt).Seconds())
	}

	// 2. Authorization code, when requested and a confirmed consent covers
	// the subject+client+scope. Without consent nothing is issued for this
	// component and the caller must prompt.
	var plainCode string
	if responseTypes["code"] {
		consent, consentErr := s.store.GetConsent(req.Subject, client.ClientID)
		if consentErr != nil || !scopesSubset(consent.Scopes, scope) {
			resp.ConsentRequired = true
		} else {
			plainCode, err = s.createAuthorizationCode(ctx, client, req, scope, payload)
			if err != nil {
				return nil, authErrRedirect("server_error", "authorization code issuance failed", req.State)
			}
			resp.Code = plainCode
		}
	}

	// 3. ID token last, so at_hash and c_hash reflect the minted artifacts.
	if responseTypes["id_token"] {
		params := token.IDTokenParams{
			Issuer:       strings.TrimRight(s.config.BaseURL, "/"),
			Subject:      req.Subject,
			Audience:     client.ClientID,
			AuthTime:     time.Now(),
			Expiry:       client.TokenLifetime(s.config.JWTExpiration),
			Nonce:        req.Nonce,
			SessionState: sessionState,
			Claims:       payload,
		}
		if accessTokenValue != "" {
			params.AtHash = token.ComputeAtHash(accessTokenValue)
		}
		if plainCode != "" {
			params.CHash = token.ComputeCHash(plainCode)
		}

		idToken, genErr := s.tokenService.provider.GenerateIDToken(params)
		if genErr != nil {
			return nil, authErrRedirect("server_error", "id_token issuance failed", req.State)
		}
		if client.IDTokenEncryptedAlg != "" {
			idToken, genErr = token.EncryptIDToken(idToken, client.JWKS, client.IDTokenEncryptedAlg)
			if genErr != nil {
				return nil, authErrRedirect("server_error", "id_token encryption failed", req.State)
			}
		}
		resp.IDToken = idToken

		s.events.Publish(ctx, events.Event{
			Type:     models.EventIDTokenGranted,
			Severity: models.SeverityInfo,
			ActorID:  req.Subject,
			ClientID: client.ClientID,
		})
	}

	return resp, nil
}

// createAuthorizationCode mints a single-use code bound to the request and
// the identity snapshot approved by the owner.
func (s *AuthorizationService) createAuthorizationCode(
	ctx context.Context,
	client *models.Client,
	req AuthorizeRequest,
	scope string,
	payload models.JSONMap,
) (string, error) {
	// 32 cryptographically random bytes (256-bit entropy)
	rawBytes, err := util.RandomBytes(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate authorization code: %w", err)
	}
	plainCode := hex.EncodeToString(rawBytes)

	method := req.CodeChallengeMethod
	if req.CodeChallenge != "" && method == "" {
		method = "S256"
	}

	record := &models.AuthorizationCode{
		UUID:                uuid.New().String(),
		CodeHash:            util.SHA256Hex(plainCode),
		CodePrefix:          plainCode[:8],
		ClientID:            client.ClientID,
		UserID:              req.Subject,
		RedirectURI:         req.RedirectURI,
		Scopes:              scope,
		Nonce:               req.Nonce,
		IDTokenPayload:      payload,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: method,
		ExpiresAt:           time.Now().Add(s.config.AuthCodeExpiration),
	}

	if err := s.store.CreateAuthorizationCode(record); err != nil {
		return "", fmt.Errorf("failed to save authorization code: %w", err)
	}

	s.events.Publish(ctx, events.Event{
		Type:     models.EventAuthorizationCodeGenerated,
		Severity: models.SeverityInfo,
		ActorID:  req.Subject,
		ClientID: client.ClientID,
		TargetID: record.UUID,
		Details: models.EventDetails{
			"scopes":       scope,
			"pkce":         req.CodeChallenge != "",
			"redirect_uri": req.RedirectURI,
		},
	})

	return plainCode, nil
}

// GrantConsent records the resource owner's approval of a client's scopes.
// The consent-confirmation path calls this, then re-runs Authorize.
func (s *AuthorizationService) GrantConsent(
	ctx context.Context,
	subject, clientID, scopes string,
) (*models.Consent, error) {
	consent := &models.Consent{
		UUID:      uuid.New().String(),
		UserID:    subject,
		ClientID:  clientID,
		Scopes:    scopes,
		GrantedAt: time.Now(),
		IsActive:  true,
	}
	if err := s.store.UpsertConsent(consent); err != nil {
		return nil, fmt.Errorf("failed to save consent: %w", err)
	}

	s.metrics.RecordConsentGranted()
	s.events.Publish(ctx, events.Event{
		Type:     models.EventConsentGranted,
		Severity: models.SeverityInfo,
		ActorID:  subject,
		ClientID: clientID,
		TargetID: consent.UUID,
		Details: models.EventDetails{
			"scopes": scopes,
		},
	})

	return consent, nil
}

// RevokeConsent withdraws a consent and revokes the tokens issued under it.
func (s *AuthorizationService) RevokeConsent(ctx context.Context, subject, clientID string) error {
	if err := s.store.RevokeConsent(subject, clientID); err != nil {
		return err
	}

	s.events.Publish(ctx, events.Event{
		Type:     models.EventConsentRevoked,
		Severity: models.SeverityInfo,
		ActorID:  subject,
		ClientID: clientID,
	})
	return nil
}

// selectFlow maps a response-type set onto one of the three flows.
func selectFlow(responseTypes map[string]bool) (string, error) {
	if len(responseTypes) == 0 {
		return "", fmt.Errorf("response_type is required")
	}
	for rt := range responseTypes {
		if rt != "code" && rt != "token" && rt != "id_token" {
			return "", fmt.Errorf("unknown response type %q", rt)
		}
	}

	hasCode := responseTypes["code"]
	hasToken := responseTypes["token"] || responseTypes["id_token"]

	switch {
	case hasCode && !hasToken:
		return FlowAuthorizationCode, nil
	case !hasCode && hasToken:
		return FlowImplicit, nil
	default:
		return FlowHybrid, nil
	}
}
