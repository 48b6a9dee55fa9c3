package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mill-alert-service/internal/config"
	"mill-alert-service/internal/logging"
)

func NewRouter(logger *logging.Logger, cfg config.Config, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	api := r.Group(cfg.API.BasePath)
	{
		// Alerts
		api.POST("/alerts", h.RaiseAlert)
		api.GET("/alerts/:id", h.GetAlert)
		api.GET("/alerts/open", h.ListOpenAlerts)
		api.GET("/alerts/mill/:mill_id", h.ListAlertsByMill)
		api.POST("/alerts/:id/acknowledge", h.AcknowledgeAlert)
		api.POST("/alerts/:id/begin", h.BeginWork)
		api.POST("/alerts/:id/resolve", h.ResolveAlert)

		// Action items
		api.POST("/action-items", h.CreateActionItem)
		api.PATCH("/action-items/:id/status", h.UpdateActionItemStatus)
		api.PATCH("/action-items/:id/assignee", h.ReassignActionItem)
		api.GET("/action-items/user/:user_id", h.ListActionItemsForUser)
		api.GET("/action-items/mill/:mill_id", h.ListActionItemsForMill)
		api.GET("/action-items/overdue/count", h.CountOverdueActionItems)

		// Notifications
		api.GET("/notifications/user/:user_id", h.GetNotificationsByUser)

		// Live in-app feed
		api.GET("/ws", h.WebSocket)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
