package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/middleware"
)

// RegisterRoutes mounts the admin and webhook routes. Admin routes require
// the master key bearer.
func RegisterRoutes(e *echo.Echo, sync *SyncHandler, hooks *WebhookHandler, masterKey string, logger ectologger.Logger) {
	admin := e.Group("/admin", middleware.MasterKey(logger, masterKey))
	admin.POST("/sync-schema", sync.Sync)
	admin.GET("/schema", sync.Schema)
	admin.GET("/sync-status", sync.Status)

	e.POST("/webhook/rules_update", hooks.RulesUpdate)
}
