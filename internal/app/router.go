// internal/app/router.go
package app

import (
	dataHandler "syncbridge-service/internal/handlers/data"
	webhookHandler "syncbridge-service/internal/handlers/webhook"
	wsHandler "syncbridge-service/internal/handlers/websocket"
	"syncbridge-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	LiveChatHandler    *webhookHandler.LiveChatHandler
	RingCentralHandler *webhookHandler.RingCentralHandler
	DataHandler        *dataHandler.DataHandler
	WSHandler          *wsHandler.WSHandler
	AuthMiddleware     *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.Connect)

	// ==================== Webhook Ingestion ====================
	webhooks := api.Group("/webhooks")
	{
		webhooks.POST("/livechat", h.LiveChatHandler.Handle)
		webhooks.POST("/ringcentral", h.RingCentralHandler.Handle)
	}

	// ==================== Reporting ====================
	reporting := api.Group("")
	reporting.Use(h.AuthMiddleware.Auth())
	{
		reporting.GET("/agents", h.DataHandler.ListAgents)
		reporting.GET("/agents/:id", h.DataHandler.GetAgent)
		reporting.GET("/agents/:id/history", h.DataHandler.GetAgentHistory)

		reporting.GET("/conversations", h.DataHandler.ListConversations)
		reporting.GET("/conversations/:id", h.DataHandler.GetConversation)

		reporting.GET("/sync-logs", h.DataHandler.ListSyncLogs)
		reporting.GET("/stats", h.DataHandler.GetStats)
	}
}
