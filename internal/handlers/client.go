package handlers

import (
	"context"

	"github.com/permgate/permgate/internal/clientauth"
	"github.com/permgate/permgate/internal/models"

	"github.com/gin-gonic/gin"
)

// clientAuthenticator resolves request credentials to a registered client.
type clientAuthenticator interface {
	Authenticate(ctx context.Context, instr clientauth.Instruction) (*models.Client, error)
}

// clientInstruction collects every client credential the request carries:
// the Basic header, POST body credentials, a client assertion, and the TLS
// peer certificate. The authenticator decides which method applies.
func clientInstruction(c *gin.Context) clientauth.Instruction {
	instr := clientauth.Instruction{
		PostClientID:        c.PostForm("client_id"),
		PostClientSecret:    c.PostForm("client_secret"),
		ClientAssertionType: c.PostForm("client_assertion_type"),
		ClientAssertion:     c.PostForm("client_assertion"),
	}

	if id, secret, ok := c.Request.BasicAuth(); ok {
		instr.BasicClientID = id
		instr.BasicClientSecret = secret
	}

	if tls := c.Request.TLS; tls != nil && len(tls.PeerCertificates) > 0 {
		instr.Certificate = tls.PeerCertificates[0]
	}

	return instr
}
