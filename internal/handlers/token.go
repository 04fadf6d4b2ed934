package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/permgate/permgate/internal/config"
	"github.com/permgate/permgate/internal/models"
	"github.com/permgate/permgate/internal/services"

	"github.com/gin-gonic/gin"
)

// TokenHandler serves the token endpoint: one POST route dispatching on
// grant_type, plus RFC 7009 revocation and token introspection.
type TokenHandler struct {
	authenticator clientAuthenticator
	tokenService  *services.TokenService
	umaService    *services.UMAService
	config        *config.Config
}

func NewTokenHandler(
	auth clientAuthenticator,
	ts *services.TokenService,
	us *services.UMAService,
	cfg *config.Config,
) *TokenHandler {
	return &TokenHandler{
		authenticator: auth,
		tokenService:  ts,
		umaService:    us,
		config:        cfg,
	}
}

// Token handles POST /oauth/token. Client authentication runs once up
// front; the grant handlers receive the resolved client.
//
//	@Summary		Request access token
//	@Description	Exchange credentials, an authorization code, a refresh token, a device code, or a UMA permission ticket for tokens (RFC 6749, RFC 8628, UMA 2.0)
//	@Tags			OAuth
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type		formData	string											true	"Grant type"
//	@Param			client_id		formData	string											false	"OAuth client ID"
//	@Param			client_secret	formData	string											false	"OAuth client secret"
//	@Param			code			formData	string											false	"Authorization code (grant_type=authorization_code)"
//	@Param			redirect_uri	formData	string											false	"Redirect URI the code was issued for"
//	@Param			code_verifier	formData	string											false	"PKCE code verifier"
//	@Param			refresh_token	formData	string											false	"Refresh token (grant_type=refresh_token)"
//	@Param			device_code		formData	string											false	"Device code (RFC 8628 grant)"
//	@Param			ticket			formData	string											false	"UMA permission ticket"
//	@Param			claim_token		formData	string											false	"Pushed claim token for policy evaluation"
//	@Param			username		formData	string											false	"Resource owner username (grant_type=password)"
//	@Param			password		formData	string											false	"Resource owner password (grant_type=password)"
//	@Param			scope			formData	string											false	"Requested scopes, space separated"
//	@Success		200				{object}	object{access_token=string,token_type=string,expires_in=int,scope=string}	"Token issued"
//	@Failure		400				{object}	object{error=string,error_description=string}	"Invalid request, grant, scope, or ticket"
//	@Failure		401				{object}	object{error=string,error_description=string}	"Client authentication failed"
//	@Failure		403				{object}	object{error=string,error_description=string}	"Policy denied (request_denied) or claims required (need_info)"
//	@Router			/oauth/token [post]
func (h *TokenHandler) Token(c *gin.Context) {
	client, err := h.authenticator.Authenticate(c.Request.Context(), clientInstruction(c))
	if err != nil {
		writeTokenError(c, err)
		return
	}

	switch c.PostForm("grant_type") {
	case services.GrantTypePassword:
		h.handlePasswordGrant(c, client)
	case services.GrantTypeClientCredentials:
		h.handleClientCredentialsGrant(c, client)
	case services.GrantTypeAuthorizationCode:
		h.handleAuthorizationCodeGrant(c, client)
	case services.GrantTypeRefreshToken:
		h.handleRefreshTokenGrant(c, client)
	case services.GrantTypeDeviceCode:
		h.handleDeviceCodeGrant(c, client)
	case services.GrantTypeUMATicket:
		h.handleUMATicketGrant(c, client)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "unsupported_grant_type",
			"error_description": "Supported grant types: password, client_credentials, authorization_code, refresh_token, device_code, uma-ticket",
		})
	}
}

// handlePasswordGrant handles the resource owner password grant (RFC 6749 §4.3).
func (h *TokenHandler) handlePasswordGrant(c *gin.Context, client *models.Client) {
	granted, err := h.tokenService.IssuePasswordToken(
		c.Request.Context(),
		client,
		c.PostForm("username"),
		c.PostForm("password"),
		c.PostForm("scope"),
	)
	if err != nil {
		writeTokenError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse(granted))
}

// handleClientCredentialsGrant handles the client_credentials grant
// (RFC 6749 §4.4). No refresh token is issued in the response (§4.4.3).
func (h *TokenHandler) handleClientCredentialsGrant(c *gin.Context, client *models.Client) {
	granted, err := h.tokenService.IssueClientCredentialsToken(
		c.Request.Context(),
		client,
		c.PostForm("scope"),
	)
	if err != nil {
		writeTokenError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse(granted))
}

// handleAuthorizationCodeGrant handles the authorization_code grant
// (RFC 6749 §4.1.3) with PKCE verification (RFC 7636).
func (h *TokenHandler) handleAuthorizationCodeGrant(c *gin.Context, client *models.Client) {
	granted, err := h.tokenService.ExchangeAuthorizationCode(
		c.Request.Context(),
		client,
		c.PostForm("code"),
		c.PostForm("redirect_uri"),
		c.PostForm("code_verifier"),
	)
	if err != nil {
		writeTokenError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse(granted))
}

// handleRefreshTokenGrant handles the refresh_token grant (RFC 6749 §6).
func (h *TokenHandler) handleRefreshTokenGrant(c *gin.Context, client *models.Client) {
	granted, err := h.tokenService.RefreshAccessToken(
		c.Request.Context(),
		client,
		c.PostForm("refresh_token"),
		c.PostForm("scope"),
	)
	if err != nil {
		writeTokenError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse(granted))
}

// handleDeviceCodeGrant handles the device_code grant (RFC 8628 §3.4).
func (h *TokenHandler) handleDeviceCodeGrant(c *gin.Context, client *models.Client) {
	deviceCode := c.PostForm("device_code")
	if deviceCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "device_code is required",
		})
		return
	}

	granted, err := h.tokenService.ExchangeDeviceCode(c.Request.Context(), client, deviceCode)
	if err != nil {
		writeTokenError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse(granted))
}

// handleUMATicketGrant handles the uma-ticket grant (UMA 2.0 Grant §3.3.1):
// redeems a permission ticket for an RPT, or answers with the claims still
// needed when the policy requires more information.
func (h *TokenHandler) handleUMATicketGrant(c *gin.Context, client *models.Client) {
	ticket := c.PostForm("ticket")
	claimToken := c.PostForm("claim_token")

	result, err := h.umaService.ExchangeTicket(c.Request.Context(), client, ticket, claimToken)
	if err != nil {
		writeTokenError(c, err)
		return
	}

	// NeedInfo keeps the ticket alive; the client retries with a claim token.
	if result.RPT == nil {
		c.JSON(http.StatusForbidden, gin.H{
			"error":           "need_info",
			"ticket":          ticket,
			"required_claims": result.RequiredClaims,
		})
		return
	}

	resp := tokenResponse(result.RPT)
	resp["upgraded"] = false
	c.JSON(http.StatusOK, resp)
}

// Introspect handles GET /oauth/tokeninfo: verifies a presented bearer token
// and reports its grant state.
//
//	@Summary		Token introspection
//	@Description	Verify a bearer token and report its grant state
//	@Tags			OAuth
//	@Produce		json
//	@Security		BearerAuth
//	@Param			Authorization	header		string										true	"Bearer token (format: 'Bearer <token>')"
//	@Success		200				{object}	object{active=bool,client_id=string,scope=string,exp=int}	"Token is active"
//	@Failure		401				{object}	object{error=string,error_description=string}				"Token is missing, invalid, or expired"
//	@Router			/oauth/tokeninfo [get]
func (h *TokenHandler) Introspect(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "missing_token",
		})
		return
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	result, err := h.tokenService.ValidateToken(c.Request.Context(), tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "invalid_token",
			"error_description": err.Error(),
		})
		return
	}

	subjectType := "user"
	if services.IsMachineIdentity(result.Subject) {
		subjectType = "client"
	}

	c.JSON(http.StatusOK, gin.H{
		"active":       result.Valid,
		"sub":          result.Subject,
		"client_id":    result.ClientID,
		"scope":        result.Scopes,
		"exp":          result.ExpiresAt.Unix(),
		"iss":          h.config.BaseURL,
		"subject_type": subjectType,
	})
}

// Revoke handles POST /oauth/revoke (RFC 7009). Unknown and foreign tokens
// still answer 200 to prevent token scanning.
//
//	@Summary		Revoke token
//	@Description	Revoke an access or refresh token (RFC 7009). Unknown tokens still answer 200 to prevent token scanning.
//	@Tags			OAuth
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			token			formData	string											true	"Token to revoke"
//	@Param			token_type_hint	formData	string											false	"Hint: 'access_token' or 'refresh_token'"
//	@Success		200				{string}	string											"Token revoked (or unknown)"
//	@Failure		400				{object}	object{error=string,error_description=string}	"Token parameter missing"
//	@Router			/oauth/revoke [post]
func (h *TokenHandler) Revoke(c *gin.Context) {
	client, err := h.authenticator.Authenticate(c.Request.Context(), clientInstruction(c))
	if err != nil {
		writeTokenError(c, err)
		return
	}

	tokenValue := c.PostForm("token")
	if tokenValue == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "token parameter is required",
		})
		return
	}

	// token_type_hint is accepted but not needed: the lookup tries access
	// token values first, then refresh token values.
	if err := h.tokenService.RevokeToken(c.Request.Context(), client, tokenValue); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "revocation failed",
		})
		return
	}
	c.Status(http.StatusOK)
}

// tokenResponse shapes a granted token row as an RFC 6749 §5.1 response.
func tokenResponse(granted *models.GrantedToken) gin.H {
	resp := gin.H{
		"access_token": granted.Token,
		"token_type":   granted.TokenType,
		"expires_in":   int(time.Until(granted.ExpiresAt).Seconds()),
		"scope":        granted.Scopes,
	}
	if granted.RefreshToken != "" {
		resp["refresh_token"] = granted.RefreshToken
	}
	if granted.IDToken != "" {
		resp["id_token"] = granted.IDToken
	}
	return resp
}
