package bootstrap

import (
	"github.com/permgate/permgate/internal/clientauth"
	"github.com/permgate/permgate/internal/config"
	"github.com/permgate/permgate/internal/handlers"
	"github.com/permgate/permgate/internal/services"
)

// handlerSet groups the HTTP handlers handed to the router.
type handlerSet struct {
	token     *handlers.TokenHandler
	authorize *handlers.AuthorizeHandler
	device    *handlers.DeviceHandler
	jwks      *handlers.JWKSHandler
}

func initializeHandlers(
	cfg *config.Config,
	authenticator *clientauth.Authenticator,
	tokenService *services.TokenService,
	authorizationService *services.AuthorizationService,
	deviceService *services.DeviceService,
	umaService *services.UMAService,
) handlerSet {
	return handlerSet{
		token:     handlers.NewTokenHandler(authenticator, tokenService, umaService, cfg),
		authorize: handlers.NewAuthorizeHandler(authorizationService, tokenService),
		device:    handlers.NewDeviceHandler(authenticator, deviceService, tokenService, cfg),
		jwks:      handlers.NewJWKSHandler(),
	}
}
