package router

import (
	"net/http"

	"localnotify/internal/common"
	"localnotify/internal/config"
	"localnotify/internal/domain/notification"
	"localnotify/internal/middleware"

	"github.com/gin-gonic/gin"
)

// New builds the HTTP bridge: the middleware stack, the health check and
// the engine routes behind API key auth.
func New(
	cfg *config.Config,
	notificationHandler *notification.Handler,
) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()

	// Recovery first so a panic in any later middleware still answers.
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))
	r.Use(middleware.NewRateLimiter(
		cfg.RateLimit.RequestsPerSecond,
		cfg.RateLimit.Burst,
	).Middleware())

	r.NoRoute(func(c *gin.Context) {
		common.HandleError(c, common.NewNotFoundError("route", c.Request.URL.Path))
	})

	// Public
	r.GET("/health", healthCheck(cfg.Store.Driver))

	// Engine bridge (API key required)
	api := r.Group("/api/v1")
	api.Use(middleware.Auth(cfg.Auth.APIKeys))
	{
		// schedule, update, cancel, clear, click and the store view queries
		notificationHandler.RegisterRoutes(api)

		// action category registry
		notificationHandler.RegisterCategoryRoutes(api)

		// permission, badge and parse defaults
		notificationHandler.RegisterHostRoutes(api)
	}

	return r
}

// healthCheck handles GET /health and names the store driver in use.
func healthCheck(driver string) gin.HandlerFunc {
	return func(c *gin.Context) {
		common.Success(c, http.StatusOK, gin.H{
			"status":  "ok",
			"service": "localnotify",
			"store":   driver,
		})
	}
}
