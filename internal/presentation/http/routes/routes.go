// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/AtRiskMedia/chatline-go/internal/application/container"
	"github.com/AtRiskMedia/chatline-go/internal/presentation/http/handlers"
	"github.com/AtRiskMedia/chatline-go/internal/presentation/http/middleware"
	"github.com/AtRiskMedia/chatline-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	// Static surfaces: the embeddable widget, the operator console, and
	// stored uploads.
	r.StaticFile("/widget.js", "web/widget/widget.js")
	r.Static("/admin", "web/admin")
	r.Static("/public", "web/public")
	r.Static("/uploads", config.UploadDir)

	// Initialize handlers
	wsHandlers := handlers.NewWSHandlers(container.Registry, container.ChatRouter, container.AuthService, container.Logger)
	adminHandlers := handlers.NewAdminHandlers(container.AuthService, container.ChatRouter, container.VisitorRepo, container.MessageRepo, container.Logger, container.LogBroadcaster)
	uploadHandlers := handlers.NewUploadHandlers(container.UploadProcessor, container.ChatRouter, container.TranscriptionService, container.AuthService, container.Logger)

	r.GET("/ws", wsHandlers.HandleConnection)

	// Log streaming stays at top level; EventSource cannot send headers.
	r.GET("/admin-logs/stream", adminHandlers.StreamLogs)

	api := r.Group("/api")
	{
		api.POST("/auth/login", adminHandlers.Login)

		// Widget uploads carry no credential; operator uploads authenticate
		// inside the handler via the from field.
		api.POST("/upload/image", uploadHandlers.PostImage)
		api.POST("/upload/audio", uploadHandlers.PostAudio)

		authed := api.Group("")
		authed.Use(middleware.AdminAuthMiddleware(container.AuthService))
		{
			authed.GET("/chats", adminHandlers.GetChats)
			authed.GET("/messages/:clientId", adminHandlers.GetMessages)
			authed.DELETE("/client/:clientId", adminHandlers.PurgeClient)
			authed.GET("/logs/levels", adminHandlers.GetLogLevels)
			authed.POST("/logs/levels", adminHandlers.SetLogLevel)
		}
	}

	return r
}
