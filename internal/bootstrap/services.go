package bootstrap

import (
	"github.com/permgate/permgate/internal/clientauth"
	"github.com/permgate/permgate/internal/config"
	"github.com/permgate/permgate/internal/core"
	"github.com/permgate/permgate/internal/events"
	"github.com/permgate/permgate/internal/jwks"
	"github.com/permgate/permgate/internal/policy"
	"github.com/permgate/permgate/internal/services"
	"github.com/permgate/permgate/internal/store"
	"github.com/permgate/permgate/internal/token"
)

// initializeServices wires the business services. The resource-owner
// authenticator chain is resolved here once; the password grant tries each
// entry in order.
func initializeServices(
	cfg *config.Config,
	db *store.Store,
	resolver *jwks.Resolver,
	publisher *events.Publisher,
	m core.Recorder,
) (
	*clientauth.Authenticator,
	*token.Provider,
	*services.DeviceService,
	*services.TokenService,
	*services.AuthorizationService,
	*services.UMAService,
) {
	provider := token.NewProvider(cfg)
	authenticator := clientauth.NewAuthenticator(db, cfg, m)

	deviceService := services.NewDeviceService(db, cfg, publisher, m)

	resourceOwnerAuthenticators := []core.ResourceOwnerAuthenticator{
		services.NewLocalResourceOwnerAuthenticator(db),
	}
	tokenService := services.NewTokenService(
		db, cfg, provider, deviceService, resourceOwnerAuthenticators, publisher, m,
	)

	authorizationService := services.NewAuthorizationService(db, cfg, tokenService, publisher, m)

	validator := policy.NewValidator(db, resolver, publisher, m)
	umaService := services.NewUMAService(db, cfg, provider, validator, publisher, m)

	return authenticator, provider, deviceService, tokenService, authorizationService, umaService
}
