package bootstrap

import (
	"log"
	"net/http"

	"github.com/permgate/permgate/internal/config"
	"github.com/permgate/permgate/internal/core"
	"github.com/permgate/permgate/internal/metrics"
	"github.com/permgate/permgate/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(
	cfg *config.Config,
	db *store.Store,
	h handlerSet,
	recorder core.Recorder,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(metrics.HTTPMetricsMiddleware(recorder))
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/health", createHealthCheckHandler(db))
	setupMetricsEndpoint(r, cfg)

	// Swagger documentation (development only)
	if !cfg.IsProduction {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
		log.Println("Swagger UI enabled at: http://localhost:8080/swagger/index.html")
	}

	r.GET("/.well-known/jwks.json", h.jwks.KeySet)

	oauth := r.Group("/oauth")
	{
		oauth.POST("/token", h.token.Token)
		oauth.GET("/tokeninfo", h.token.Introspect)
		oauth.POST("/revoke", h.token.Revoke)
		oauth.GET("/authorize", h.authorize.Authorize)
		oauth.POST("/consent", h.authorize.GrantConsent)
		oauth.POST("/consent/revoke", h.authorize.RevokeConsent)
		oauth.POST("/device/code", h.device.DeviceCodeRequest)
		oauth.POST("/device/authorize", h.device.DeviceAuthorize)
	}

	log.Printf("[Bootstrap] authorization server starting on %s", cfg.ServerAddr)
	log.Printf("[Bootstrap] issuer: %s", cfg.BaseURL)
	return r
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config) {
	if !cfg.MetricsEnabled {
		log.Printf("Prometheus metrics disabled")
		return
	}
	log.Printf("Prometheus metrics enabled at /metrics")
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// createHealthCheckHandler creates health check endpoint handler
//
//	@Summary		Health check
//	@Description	Reports server and database health
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	object{status=string,database=string}	"Service is healthy"
//	@Failure		503	{object}	object{status=string,database=string}	"Database unreachable"
//	@Router			/health [get]
func createHealthCheckHandler(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch err := db.Health(); err {
		case nil:
			c.JSON(http.StatusOK, gin.H{
				"status":   "healthy",
				"database": "connected",
			})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "disconnected",
			})
		}
	}
}
