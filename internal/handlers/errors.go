package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/permgate/permgate/internal/clientauth"
	"github.com/permgate/permgate/internal/services"

	"github.com/gin-gonic/gin"
)

// errorStatus maps a grant-processing sentinel onto its RFC error code and
// HTTP status. One response shape for every endpoint: {error, error_description}.
var errorStatus = []struct {
	sentinel error
	code     string
	status   int
}{
	{services.ErrInvalidRequest, "invalid_request", http.StatusBadRequest},
	{services.ErrInvalidGrant, "invalid_grant", http.StatusBadRequest},
	{services.ErrInvalidScope, "invalid_scope", http.StatusBadRequest},
	{services.ErrUnauthorizedClient, "unauthorized_client", http.StatusBadRequest},
	{services.ErrUnsupportedGrantType, "unsupported_grant_type", http.StatusBadRequest},
	{services.ErrUnsupportedResponseType, "unsupported_response_type", http.StatusBadRequest},
	{services.ErrInvalidTicket, "invalid_ticket", http.StatusBadRequest},
	{services.ErrExpiredTicket, "expired_ticket", http.StatusBadRequest},
	{services.ErrRequestDenied, "request_denied", http.StatusForbidden},
	{services.ErrAuthorizationPending, "authorization_pending", http.StatusBadRequest},
	{services.ErrSlowDown, "slow_down", http.StatusBadRequest},
	{services.ErrAccessDenied, "access_denied", http.StatusBadRequest},
}

// writeTokenError renders a grant-processing failure as an RFC 6749 §5.2
// error body with the matching HTTP status.
func writeTokenError(c *gin.Context, err error) {
	if errors.Is(err, clientauth.ErrInvalidClient) {
		// RFC 6749 §5.2: use 401 + WWW-Authenticate for invalid_client
		c.Header("WWW-Authenticate", `Basic realm="permgate"`)
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "invalid_client",
			"error_description": "Client authentication failed",
		})
		return
	}

	for _, m := range errorStatus {
		if errors.Is(err, m.sentinel) {
			c.JSON(m.status, gin.H{
				"error":             m.code,
				"error_description": errorDescription(err, m.code),
			})
			return
		}
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error":             "server_error",
		"error_description": "request processing failed",
	})
}

// errorDescription strips the duplicated error-code prefix a wrapped
// sentinel carries, leaving only the detail text.
func errorDescription(err error, code string) string {
	msg := strings.TrimPrefix(err.Error(), code+": ")
	if msg == code {
		return ""
	}
	return msg
}
