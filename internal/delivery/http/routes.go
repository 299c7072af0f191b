package http

import (
	"github.com/gin-gonic/gin"
	"github.com/sentimentscope/catalog/config"
	"go.uber.org/zap"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *zap.Logger) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		products := v1.Group("/products")
		{
			products.GET("", handler.ListProducts)
			products.GET("/:id", handler.GetProduct)
		}

		v1.GET("/brands", handler.ListBrands)
		v1.GET("/topics", handler.ListTopics)
		v1.GET("/search", handler.Search)
		v1.GET("/status", handler.GetStatus)
		v1.GET("/stats", handler.GetStats)
		v1.GET("/events", handler.Events)

		v1.POST("/source", handler.ToggleSource)
		v1.POST("/refresh", handler.Refresh)
	}

	return router
}
