package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// JWKSHandler serves GET /.well-known/jwks.json. Access and ID tokens are
// signed with the server's symmetric key, so the published set contains
// only registered asymmetric keys; with none configured it is empty.
type JWKSHandler struct {
	keys jwk.Set
}

func NewJWKSHandler() *JWKSHandler {
	return &JWKSHandler{keys: jwk.NewSet()}
}

// KeySet serves the published JSON Web Key Set.
//
//	@Summary		JSON Web Key Set
//	@Description	Published signing keys; empty while tokens are HS256-signed with a shared secret
//	@Tags			Discovery
//	@Produce		json
//	@Success		200	{object}	object{keys=[]object}	"Key set"
//	@Router			/.well-known/jwks.json [get]
func (h *JWKSHandler) KeySet(c *gin.Context) {
	c.JSON(http.StatusOK, h.keys)
}
