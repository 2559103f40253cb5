package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"configmarket-backend/internal/configs"
	"configmarket-backend/internal/shared/config"
	"configmarket-backend/internal/shared/metrics"
	"configmarket-backend/internal/shared/server/middleware"
	"configmarket-backend/internal/uploads"
)

// RouterDeps carries everything the router needs.
type RouterDeps struct {
	Config  config.Config
	Uploads *uploads.Handler
	Configs *configs.Handler
}

// NewRouter builds the gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "env": deps.Config.Env})
	})
	engine.GET("/metrics", metrics.Handler())

	api := engine.Group("/api/v1")
	api.Use(
		middleware.Auth(),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				"BROWSE":  {Rate: 10, Burst: 30},
				"DEFAULT": {Rate: 2, Burst: 10},
			},
			GroupFor: rateLimitGroup,
		}),
	)

	deps.Uploads.RegisterRoutes(api)
	deps.Configs.RegisterRoutes(api)

	return engine
}

// rateLimitGroup gives read-only browsing a looser bucket than mutating
// calls and uploads.
func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method == http.MethodGet &&
		(strings.HasPrefix(c.Request.URL.Path, "/api/v1/configs") ||
			c.Request.URL.Path == "/api/v1/categories") {
		return "BROWSE"
	}
	return "DEFAULT"
}

// Addr returns a normalized listen address for the given port.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
