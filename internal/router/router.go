package router

import (
	"log/slog"
	"net/http"

	"notifyhub/internal/common"
	"notifyhub/internal/config"
	"notifyhub/internal/domain/notification"
	"notifyhub/internal/infra/metrics"
	"notifyhub/internal/middleware"

	"github.com/gin-gonic/gin"
)

// New creates and configures the Gin router with all middleware and routes.
// rateLimiter and recorder may be nil.
func New(
	cfg *config.Config,
	notificationHandler *notification.Handler,
	rateLimiter *middleware.RateLimiter,
	recorder *metrics.Recorder,
) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()

	// Global middleware stack (order matters)
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	if recorder != nil {
		r.Use(recorder.Middleware())
	}
	r.Use(middleware.CORS(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	// Public routes
	r.GET("/health", healthCheck)
	if recorder != nil {
		r.GET("/metrics", gin.WrapH(recorder.Handler()))
	}

	api := r.Group("/api/v1")
	if rateLimiter != nil {
		api.Use(rateLimiter.Middleware())
	}
	if len(cfg.Auth.APIKeys) > 0 {
		api.Use(middleware.Auth(cfg.Auth.APIKeys))
	} else {
		slog.Warn("no API keys configured, /api/v1 is unauthenticated")
	}
	notificationHandler.RegisterRoutes(api)

	return r
}

// healthCheck handles GET /health
func healthCheck(c *gin.Context) {
	common.Success(c, http.StatusOK, gin.H{
		"status":  "ok",
		"service": "notifyhub",
	})
}
