package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/pagetrail/pagetrail/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authConfig middleware.AuthConfig) {
	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/v1")
	{
		v1.GET("/resolve", handler.ResolvePath)

		pages := v1.Group("/pages")
		{
			pages.GET("/:id/history", handler.GetPageHistory)
			pages.POST("/:id/history", handler.AddPageHistory)
			pages.DELETE("/:id/history", handler.DeletePageHistory)
		}

		// Destructive maintenance operations require authentication
		admin := v1.Group("", middleware.Auth(authConfig))
		{
			admin.DELETE("/history", handler.DeleteAllHistory)
			admin.POST("/history/segments/rebuild", handler.RebuildSegments)
		}
	}
}
