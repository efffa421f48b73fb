package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/AtRiskMedia/chatline-go/internal/application/services"
	"github.com/AtRiskMedia/chatline-go/internal/domain/chat"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

// AdminHandlers contains the operator console REST handlers: login, roster,
// history, purge, and live log controls.
type AdminHandlers struct {
	authService *services.AuthService
	chatRouter  *services.ChatRouter
	visitors    chat.VisitorRepository
	messages    chat.MessageRepository
	logger      *logging.ChanneledLogger
	broadcaster *logging.LogBroadcaster
}

// NewAdminHandlers creates admin handlers with injected dependencies
func NewAdminHandlers(
	authService *services.AuthService,
	chatRouter *services.ChatRouter,
	visitors chat.VisitorRepository,
	messages chat.MessageRepository,
	logger *logging.ChanneledLogger,
	broadcaster *logging.LogBroadcaster,
) *AdminHandlers {
	return &AdminHandlers{
		authService: authService,
		chatRouter:  chatRouter,
		visitors:    visitors,
		messages:    messages,
		logger:      logger,
		broadcaster: broadcaster,
	}
}

// Login handles POST /api/auth/login - exchanges the operator password for a
// console JWT.
func (h *AdminHandlers) Login(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result := h.authService.AuthenticateOperator(req.Password)
	if !result.Success {
		c.JSON(http.StatusUnauthorized, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetChats handles GET /api/chats - the visitor roster with last message
// previews, most recently active first.
func (h *AdminHandlers) GetChats(c *gin.Context) {
	entries, err := h.visitors.ListWithLastMessage()
	if err != nil {
		h.logger.Chat().Error("Roster query failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load chats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"visitors": entries})
}

// GetMessages handles GET /api/messages/:clientId - one visitor's complete
// transcript in arrival order.
func (h *AdminHandlers) GetMessages(c *gin.Context) {
	clientID := c.Param("clientId")
	messages, err := h.messages.ListByVisitor(clientID)
	if err != nil {
		h.logger.Chat().Error("History query failed", "visitorId", clientID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clientId": clientID, "messages": messages})
}

// PurgeClient handles DELETE /api/client/:clientId - removes a visitor and
// their history, and notifies connected operator consoles.
func (h *AdminHandlers) PurgeClient(c *gin.Context) {
	clientID := c.Param("clientId")
	if err := h.chatRouter.PurgeVisitor(clientID); err != nil {
		h.logger.Chat().Error("Purge failed", "visitorId", clientID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to purge client"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "clientId": clientID})
}

// StreamLogs handles the SSE connection for live log streaming.
func (h *AdminHandlers) StreamLogs(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	channelFilter := c.DefaultQuery("channel", "all")
	level, ok := parseLogLevel(c.DefaultQuery("level", "INFO"))
	if !ok {
		level = slog.LevelInfo
	}

	client := h.broadcaster.NewClient(logging.AppliedFilters{
		Channel: logging.Channel(channelFilter),
		Level:   level,
	})
	h.broadcaster.RegisterClient(client)
	defer h.broadcaster.UnregisterClient(client)

	fmt.Fprintf(c.Writer, ": connection established\n\n")
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case message, ok := <-client.Channel:
			if !ok {
				return false
			}
			fmt.Fprintf(w, "data: %s\n\n", message)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// GetLogLevels handles GET /api/logs/levels - returns current log levels for all channels.
func (h *AdminHandlers) GetLogLevels(c *gin.Context) {
	c.JSON(http.StatusOK, h.logger.GetChannelLevels())
}

// SetLogLevel handles POST /api/logs/levels - sets the log level for a specific channel.
func (h *AdminHandlers) SetLogLevel(c *gin.Context) {
	var req struct {
		Channel string `json:"channel" binding:"required"`
		Level   string `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	level, ok := parseLogLevel(req.Level)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid log level specified"})
		return
	}

	if err := h.logger.SetChannelLevel(logging.Channel(req.Channel), level); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to set log level", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": fmt.Sprintf("Log level for channel '%s' set to '%s'", req.Channel, req.Level)})
}

func parseLogLevel(name string) (slog.Level, bool) {
	switch name {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
