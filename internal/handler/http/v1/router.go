package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	// Приём сообщений пассажиров
	api.POST("/reports", h.submitReport)

	// Лента и карточка инцидента
	incidents := api.Group("/incidents")
	{
		incidents.GET("", h.listIncidents)
		incidents.GET("/:id", h.getIncident)
	}

	// Консоль оператора
	operator := api.Group("/operator", APIKeyAuthMiddleware(h.cfg, h.logger), ActorMiddleware(h.logger))
	{
		operator.POST("/incidents/:id/status", h.changeIncidentStatus)
	}

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}
