//	@title			PermGate API
//	@version		1.0
//	@description	OAuth 2.0 / OIDC authorization server with UMA 2.0 resource protection

//	@license.name	MIT

//	@host		localhost:8080
//	@BasePath	/

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"log"

	_ "github.com/permgate/permgate/api" // swagger docs
	"github.com/permgate/permgate/internal/bootstrap"
	"github.com/permgate/permgate/internal/config"
)

func main() {
	cfg := config.Load()
	if err := bootstrap.Run(context.Background(), cfg); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
