package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/kuya-relay/kuya_relay/internal/api/handlers"
	"github.com/kuya-relay/kuya_relay/internal/api/middleware"
	"github.com/kuya-relay/kuya_relay/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Setup builds the gin engine with all routes and middleware.
func Setup(
	webhookHandler *handlers.WebhookHandler,
	healthHandler *handlers.HealthHandler,
	log *logger.Logger,
	environment string,
) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(log),
		middleware.Recovery(log),
	)

	router.POST("/webhook", webhookHandler.HandleInbound)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
