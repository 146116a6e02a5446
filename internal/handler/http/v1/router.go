package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	// Публичные маршруты
	auth := api.Group("/auth")
	{
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
	}

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)

	// Все остальные операции требуют разрешённой личности
	protected := api.Group("")
	protected.Use(h.AuthMiddleware())
	{
		emergencies := protected.Group("/emergencies")
		{
			emergencies.POST("", h.createEmergency)
			emergencies.GET("/nearby", h.nearbyEmergencies)
			emergencies.POST("/:id/accept", h.acceptEmergency)
			emergencies.POST("/:id/complete", h.completeEmergency)
		}

		protected.GET("/inbox", h.getInbox)
		protected.POST("/inbox/:id/read", h.readNotification)

		protected.GET("/history", h.getHistory)

		users := protected.Group("/users/me")
		{
			users.POST("/location", h.updateLocation)
			users.GET("/profile", h.getProfile)
			users.PUT("/settings", h.updateSettings)
		}
	}
}
