package bootstrap

import (
	"testing"

	"github.com/permgate/permgate/internal/config"
	"github.com/permgate/permgate/internal/handlers"
	"github.com/permgate/permgate/internal/metrics"
	"github.com/permgate/permgate/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, production bool) *gin.Engine {
	t.Helper()
	s, err := store.New("sqlite", ":memory:")
	require.NoError(t, err)

	cfg := &config.Config{
		ServerAddr:   ":0",
		BaseURL:      "http://localhost:8080",
		IsProduction: production,
	}
	h := handlerSet{
		token:     handlers.NewTokenHandler(nil, nil, nil, cfg),
		authorize: handlers.NewAuthorizeHandler(nil, nil),
		device:    handlers.NewDeviceHandler(nil, nil, nil, cfg),
		jwks:      handlers.NewJWKSHandler(),
	}
	return setupRouter(cfg, s, h, metrics.NewNoopMetrics())
}

func routePaths(r *gin.Engine) []string {
	var paths []string
	for _, route := range r.Routes() {
		paths = append(paths, route.Path)
	}
	return paths
}

func TestSetupRouter_SwaggerUIGatedByEnvironment(t *testing.T) {
	assert.Contains(t, routePaths(newTestRouter(t, false)), "/swagger/*any")
	assert.NotContains(t, routePaths(newTestRouter(t, true)), "/swagger/*any")
}

func TestSetupRouter_CoreRoutes(t *testing.T) {
	paths := routePaths(newTestRouter(t, true))
	for _, want := range []string{
		"/health",
		"/.well-known/jwks.json",
		"/oauth/token",
		"/oauth/authorize",
		"/oauth/revoke",
	} {
		assert.Contains(t, paths, want)
	}
}
