package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/insurechat/bridge/api/handlers"
	"github.com/insurechat/bridge/api/middleware"
)

// SetupRoutes registers all routes.
func SetupRoutes(r *gin.Engine, h *handlers.Handlers) {
	r.Use(middleware.CORS())

	r.GET("/healthz", h.Chat.Health)
	r.POST("/chat", h.Chat.Chat)
}
