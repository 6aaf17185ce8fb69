package routes

import (
	"github.com/gin-gonic/gin"
	"transcribot/internal/api/middleware"
	"transcribot/internal/api/v1/handlers"
)

// RegisterRoutes registers all v1 API routes
func RegisterRoutes(router *gin.RouterGroup, container *HandlerContainer) {
	router.POST("/transcriptions", container.Transcriptions.Create)

	quota := router.Group("/quota")
	{
		quota.GET("/:user_id", container.Quota.Get)
		quota.POST("/:user_id/credits", middleware.BearerAuth(container.AdminToken), container.Quota.Credit)
	}
}

// HandlerContainer holds all handlers mounted under /api/v1
type HandlerContainer struct {
	Transcriptions *handlers.TranscriptionHandler
	Quota          *handlers.QuotaHandler
	AdminToken     string
}
