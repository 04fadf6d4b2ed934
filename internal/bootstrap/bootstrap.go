package bootstrap

import (
	"context"
	"net/http"

	"github.com/permgate/permgate/internal/clientauth"
	"github.com/permgate/permgate/internal/config"
	"github.com/permgate/permgate/internal/core"
	"github.com/permgate/permgate/internal/events"
	"github.com/permgate/permgate/internal/jwks"
	"github.com/permgate/permgate/internal/metrics"
	"github.com/permgate/permgate/internal/services"
	"github.com/permgate/permgate/internal/store"
	"github.com/permgate/permgate/internal/token"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config

	// Core infrastructure
	DB              *store.Store
	MetricsRecorder core.Recorder
	DiscoveryCache  discoveryCache
	Resolver        *jwks.Resolver
	Events          *events.Publisher

	// Services
	Authenticator        *clientauth.Authenticator
	TokenProvider        *token.Provider
	DeviceService        *services.DeviceService
	TokenService         *services.TokenService
	AuthorizationService *services.AuthorizationService
	UMAService           *services.UMAService

	// HTTP
	HandlerSet handlerSet
	Router     *gin.Engine
	Server     *http.Server
}

// Run initializes and starts the application
func Run(ctx context.Context, cfg *config.Config) error {
	app := &Application{Config: cfg}

	// Phase 1: Validate configuration
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Phase 2: Initialize infrastructure
	if err := app.initializeInfrastructure(ctx); err != nil {
		return err
	}

	// Phase 3: Initialize business layer
	app.initializeBusinessLayer(ctx)

	// Phase 4: Initialize HTTP layer
	app.initializeHTTPLayer()

	// Phase 5: Start server with graceful shutdown
	app.startWithGracefulShutdown()

	return nil
}

// initializeInfrastructure sets up database, metrics, and the caches
func (app *Application) initializeInfrastructure(ctx context.Context) error {
	var err error

	app.DB, err = store.New(app.Config.DatabaseDriver, app.Config.DatabaseDSN)
	if err != nil {
		return err
	}

	app.MetricsRecorder = metrics.Init(app.Config.MetricsEnabled)

	app.DiscoveryCache, err = initializeDiscoveryCache(ctx, app.Config)
	if err != nil {
		return err
	}

	return nil
}

// initializeBusinessLayer sets up the event publisher and services
func (app *Application) initializeBusinessLayer(ctx context.Context) {
	app.Events = events.NewPublisher(
		app.DB,
		app.Config.EventsEnabled,
		app.Config.EventBufferSize,
	)

	app.Resolver = jwks.NewResolver(
		ctx,
		app.DiscoveryCache,
		app.Config.JWKSFetchTimeout,
		app.Config.JWKSRefreshInterval,
		app.MetricsRecorder,
	)

	app.Authenticator,
		app.TokenProvider,
		app.DeviceService,
		app.TokenService,
		app.AuthorizationService,
		app.UMAService = initializeServices(
		app.Config,
		app.DB,
		app.Resolver,
		app.Events,
		app.MetricsRecorder,
	)
}

// initializeHTTPLayer sets up handlers, router, and server
func (app *Application) initializeHTTPLayer() {
	app.HandlerSet = initializeHandlers(
		app.Config,
		app.Authenticator,
		app.TokenService,
		app.AuthorizationService,
		app.DeviceService,
		app.UMAService,
	)
	app.Router = setupRouter(app.Config, app.DB, app.HandlerSet, app.MetricsRecorder)
	app.Server = createHTTPServer(app.Config, app.Router)
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown() {
	m := graceful.NewManager()

	addServerRunningJob(m, app.Server)
	addServerShutdownJob(m, app.Server)
	addEventPublisherShutdownJob(m, app.Events)
	addExpiredRecordSweeperJob(m, app.DB)
	addTokenGaugeUpdateJob(m, app.DB, app.MetricsRecorder)
	addCacheShutdownJob(m, app.DiscoveryCache)

	<-m.Done()
}
