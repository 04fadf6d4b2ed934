package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/permgate/permgate/internal/services"

	"github.com/gin-gonic/gin"
)

// AuthorizeHandler serves the authorization endpoint and consent management.
// The resource owner arrives already authenticated: the fronting gateway
// forwards their access token as a bearer credential.
type AuthorizeHandler struct {
	authService  *services.AuthorizationService
	tokenService *services.TokenService
}

func NewAuthorizeHandler(as *services.AuthorizationService, ts *services.TokenService) *AuthorizeHandler {
	return &AuthorizeHandler{authService: as, tokenService: ts}
}

// Authorize handles GET /oauth/authorize (RFC 6749 §4.1.1, §4.2.1 and the
// OIDC hybrid flow). Successful flows redirect to the registered redirect
// URI; validation failures redirect with the error echoed once the client
// and redirect URI themselves have been verified, and answer directly
// otherwise.
//
//	@Summary		Authorization endpoint
//	@Description	Run the code, implicit, or hybrid flow for a pre-authenticated resource owner (RFC 6749 §4.1, §4.2; OIDC Core 1.0)
//	@Tags			OAuth
//	@Produce		json
//	@Security		BearerAuth
//	@Param			response_type			query		string	true	"Space-separated set of code, token, id_token"
//	@Param			client_id				query		string	true	"OAuth client ID"
//	@Param			redirect_uri			query		string	true	"Registered redirect URI"
//	@Param			scope					query		string	false	"Requested scopes, space separated"
//	@Param			state					query		string	false	"Opaque client state, echoed on the redirect"
//	@Param			nonce					query		string	false	"OIDC nonce, required when an id_token is issued directly"
//	@Param			code_challenge			query		string	false	"PKCE code challenge"
//	@Param			code_challenge_method	query		string	false	"PKCE method: S256 or plain"
//	@Success		200						{object}	object{consent_required=bool}					"Owner consent still required"
//	@Success		302						{string}	string											"Redirect carrying the authorization artifacts"
//	@Failure		400						{object}	object{error=string,error_description=string}	"Invalid request (before client/redirect validation)"
//	@Failure		401						{object}	object{error=string,error_description=string}	"Resource owner not authenticated"
//	@Failure		403						{object}	object{error=string,error_description=string}	"Machine identity rejected"
//	@Router			/oauth/authorize [get]
func (h *AuthorizeHandler) Authorize(c *gin.Context) {
	subject, ok := resourceOwnerSubject(c, h.tokenService)
	if !ok {
		return
	}

	sessionID, _ := c.Cookie("session_id")
	req := services.AuthorizeRequest{
		ClientID:            c.Query("client_id"),
		RedirectURI:         c.Query("redirect_uri"),
		ResponseType:        c.Query("response_type"),
		Scope:               c.Query("scope"),
		State:               c.Query("state"),
		Nonce:               c.Query("nonce"),
		CodeChallenge:       c.Query("code_challenge"),
		CodeChallengeMethod: c.Query("code_challenge_method"),
		Subject:             subject,
		SessionID:           sessionID,
		OriginURL:           c.GetHeader("Origin"),
	}

	resp, authErr := h.authService.Authorize(c.Request.Context(), req)
	if authErr != nil {
		if authErr.RedirectSafe && req.RedirectURI != "" {
			c.Redirect(http.StatusFound, errorRedirect(req.RedirectURI, authErr))
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             authErr.Code,
			"error_description": authErr.Description,
			"state":             authErr.State,
		})
		return
	}

	// No confirmed consent covers the requested scope: the caller prompts
	// the owner, posts to the consent endpoint, and retries.
	if resp.ConsentRequired {
		c.JSON(http.StatusOK, gin.H{
			"consent_required": true,
			"client_id":        req.ClientID,
			"scope":            req.Scope,
			"state":            req.State,
		})
		return
	}

	c.Redirect(http.StatusFound, successRedirect(resp))
}

// GrantConsent handles POST /oauth/consent: the resource owner approves a
// client's scopes, unblocking subsequent code issuance.
//
//	@Summary		Grant consent
//	@Description	Record the resource owner's approval of a client's scopes
//	@Tags			OAuth
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Security		BearerAuth
//	@Param			client_id	formData	string										true	"OAuth client ID"
//	@Param			scope		formData	string										true	"Approved scopes, space separated"
//	@Success		201			{object}	object{consent_id=string}						"Consent recorded"
//	@Failure		400			{object}	object{error=string,error_description=string}	"Invalid request"
//	@Failure		401			{object}	object{error=string,error_description=string}	"Resource owner not authenticated"
//	@Router			/oauth/consent [post]
func (h *AuthorizeHandler) GrantConsent(c *gin.Context) {
	subject, ok := resourceOwnerSubject(c, h.tokenService)
	if !ok {
		return
	}

	clientID := c.PostForm("client_id")
	scope := c.PostForm("scope")
	if clientID == "" || scope == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "client_id and scope are required",
		})
		return
	}

	consent, err := h.authService.GrantConsent(c.Request.Context(), subject, clientID, scope)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "failed to record consent",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"consent_id": consent.UUID,
		"client_id":  consent.ClientID,
		"scope":      consent.Scopes,
		"granted_at": consent.GrantedAt,
	})
}

// RevokeConsent handles POST /oauth/consent/revoke: withdraws the owner's
// approval and revokes tokens issued under it.
//
//	@Summary		Revoke consent
//	@Description	Withdraw the resource owner's approval for a client
//	@Tags			OAuth
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Security		BearerAuth
//	@Param			client_id	formData	string										true	"OAuth client ID"
//	@Success		200			{string}	string											"Consent revoked (or none existed)"
//	@Failure		400			{object}	object{error=string,error_description=string}	"Missing client_id"
//	@Failure		401			{object}	object{error=string,error_description=string}	"Resource owner not authenticated"
//	@Router			/oauth/consent/revoke [post]
func (h *AuthorizeHandler) RevokeConsent(c *gin.Context) {
	subject, ok := resourceOwnerSubject(c, h.tokenService)
	if !ok {
		return
	}

	clientID := c.PostForm("client_id")
	if clientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "client_id is required",
		})
		return
	}

	if err := h.authService.RevokeConsent(c.Request.Context(), subject, clientID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "failed to revoke consent",
		})
		return
	}
	c.Status(http.StatusOK)
}

// resourceOwnerSubject resolves the authenticated resource owner from the
// bearer credential. Machine tokens are rejected: a client credential is
// not a person.
func resourceOwnerSubject(c *gin.Context, ts *services.TokenService) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "login_required",
			"error_description": "resource owner authentication required",
		})
		return "", false
	}

	result, err := ts.ValidateToken(c.Request.Context(), strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "invalid_token",
			"error_description": err.Error(),
		})
		return "", false
	}
	if services.IsMachineIdentity(result.Subject) {
		c.JSON(http.StatusForbidden, gin.H{
			"error":             "access_denied",
			"error_description": "a resource owner token is required",
		})
		return "", false
	}
	return result.Subject, true
}

// errorRedirect echoes a validation failure to the verified redirect URI
// (RFC 6749 §4.1.2.1).
func errorRedirect(redirectURI string, authErr *services.AuthError) string {
	values := url.Values{}
	values.Set("error", authErr.Code)
	if authErr.Description != "" {
		values.Set("error_description", authErr.Description)
	}
	if authErr.State != "" {
		values.Set("state", authErr.State)
	}
	return redirectURI + joiner(redirectURI) + values.Encode()
}

// successRedirect builds the redirect carrying the issued artifacts. Code
// flow responses travel in the query string; anything carrying a token goes
// in the fragment (RFC 6749 §4.2.2).
func successRedirect(resp *services.AuthorizeResponse) string {
	values := url.Values{}
	if resp.Code != "" {
		values.Set("code", resp.Code)
	}
	if resp.AccessToken != "" {
		values.Set("access_token", resp.AccessToken)
		values.Set("token_type", resp.TokenType)
		values.Set("expires_in", strconv.FormatInt(resp.ExpiresIn, 10))
	}
	if resp.IDToken != "" {
		values.Set("id_token", resp.IDToken)
	}
	if resp.State != "" {
		values.Set("state", resp.State)
	}
	if resp.SessionState != "" {
		values.Set("session_state", resp.SessionState)
	}

	if resp.Flow == services.FlowAuthorizationCode {
		return resp.RedirectURI + joiner(resp.RedirectURI) + values.Encode()
	}
	return resp.RedirectURI + "#" + values.Encode()
}

func joiner(redirectURI string) string {
	if strings.Contains(redirectURI, "?") {
		return "&"
	}
	return "?"
}
