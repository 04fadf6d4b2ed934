package handlers

import (
	"errors"
	"net/http"

	"github.com/permgate/permgate/internal/config"
	"github.com/permgate/permgate/internal/services"

	"github.com/gin-gonic/gin"
)

// DeviceHandler serves the device authorization endpoints (RFC 8628).
type DeviceHandler struct {
	authenticator clientAuthenticator
	deviceService *services.DeviceService
	tokenService  *services.TokenService
	config        *config.Config
}

func NewDeviceHandler(
	auth clientAuthenticator,
	ds *services.DeviceService,
	ts *services.TokenService,
	cfg *config.Config,
) *DeviceHandler {
	return &DeviceHandler{
		authenticator: auth,
		deviceService: ds,
		tokenService:  ts,
		config:        cfg,
	}
}

// DeviceCodeRequest handles POST /oauth/device/code (RFC 8628 §3.1, §3.2).
//
//	@Summary		Request device and user codes
//	@Description	Start the device authorization flow (RFC 8628 §3.1, §3.2)
//	@Tags			OAuth
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			client_id	formData	string	true	"OAuth client ID"
//	@Param			scope		formData	string	false	"Requested scopes, space separated"
//	@Success		200			{object}	object{device_code=string,user_code=string,verification_uri=string,expires_in=int,interval=int}	"Device code issued"
//	@Failure		400			{object}	object{error=string,error_description=string}	"Invalid request"
//	@Failure		401			{object}	object{error=string,error_description=string}	"Client authentication failed"
//	@Router			/oauth/device/code [post]
func (h *DeviceHandler) DeviceCodeRequest(c *gin.Context) {
	client, err := h.authenticator.Authenticate(c.Request.Context(), clientInstruction(c))
	if err != nil {
		writeTokenError(c, err)
		return
	}

	dc, err := h.deviceService.GenerateDeviceCode(c.Request.Context(), client, c.PostForm("scope"))
	if err != nil {
		writeTokenError(c, err)
		return
	}

	verificationURI := h.config.BaseURL + "/device"
	c.JSON(http.StatusOK, gin.H{
		"device_code":               dc.DeviceCode,
		"user_code":                 services.FormatUserCode(dc.UserCode),
		"verification_uri":          verificationURI,
		"verification_uri_complete": verificationURI + "?user_code=" + dc.UserCode,
		"expires_in":                int(h.config.DeviceCodeExpiration.Seconds()),
		"interval":                  dc.Interval,
	})
}

// DeviceAuthorize handles POST /oauth/device/authorize: the resource owner
// approves a pending device request by user code. The device's token poll
// succeeds on its next attempt.
//
//	@Summary		Approve device code
//	@Description	Resource owner approves a pending device request by user code
//	@Tags			OAuth
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Security		BearerAuth
//	@Param			user_code	formData	string										true	"User code shown on the device"
//	@Success		200			{string}	string											"Device authorized"
//	@Failure		400			{object}	object{error=string,error_description=string}	"Unknown or expired user code"
//	@Failure		401			{object}	object{error=string,error_description=string}	"Resource owner not authenticated"
//	@Router			/oauth/device/authorize [post]
func (h *DeviceHandler) DeviceAuthorize(c *gin.Context) {
	subject, ok := resourceOwnerSubject(c, h.tokenService)
	if !ok {
		return
	}

	userCode := c.PostForm("user_code")
	if userCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "user_code is required",
		})
		return
	}

	err := h.deviceService.AuthorizeDeviceCode(c.Request.Context(), userCode, subject)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserCodeNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":             "invalid_request",
				"error_description": "unknown or already-approved user code",
			})
		case errors.Is(err, services.ErrDeviceCodeExpired):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":             "expired_token",
				"error_description": "the device code has expired",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":             "server_error",
				"error_description": "device authorization failed",
			})
		}
		return
	}
	c.Status(http.StatusOK)
}
