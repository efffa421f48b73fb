package handlers

import (
	"net/http"
	"strings"

	"github.com/AtRiskMedia/chatline-go/internal/application/services"
	"github.com/AtRiskMedia/chatline-go/internal/domain/chat"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/media"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/chatline-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// UploadHandlers accepts media over HTTP and hands the stored reference to
// the router as a regular message. Sockets never carry file bytes.
type UploadHandlers struct {
	processor     *media.UploadProcessor
	chatRouter    *services.ChatRouter
	transcription *services.TranscriptionService // nil when disabled
	authService   *services.AuthService
	logger        *logging.ChanneledLogger
}

// NewUploadHandlers creates upload handlers with injected dependencies
func NewUploadHandlers(processor *media.UploadProcessor, chatRouter *services.ChatRouter, transcription *services.TranscriptionService, authService *services.AuthService, logger *logging.ChanneledLogger) *UploadHandlers {
	return &UploadHandlers{
		processor:     processor,
		chatRouter:    chatRouter,
		transcription: transcription,
		authService:   authService,
		logger:        logger,
	}
}

// PostImage handles POST /api/upload/image - stores the file and routes an
// image message carrying its reference path.
func (h *UploadHandlers) PostImage(c *gin.Context) {
	h.handleUpload(c, chat.KindImage)
}

// PostAudio handles POST /api/upload/audio - stores the clip, routes an audio
// message, and kicks off transcription when it is configured.
func (h *UploadHandlers) PostAudio(c *gin.Context) {
	h.handleUpload(c, chat.KindAudio)
}

func (h *UploadHandlers) handleUpload(c *gin.Context, kind chat.Kind) {
	visitorID := c.PostForm("clientId")
	if visitorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "clientId is required"})
		return
	}

	// Operator uploads must present a console credential; anything else is
	// routed as the visitor.
	sender := chat.SenderVisitor
	if c.PostForm("from") == string(chat.SenderAdmin) {
		token := bearerToken(c)
		if !h.authService.ValidOperatorCredential(token) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		sender = chat.SenderAdmin
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if fh.Size > config.MaxUploadMB*1024*1024 {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	ref, err := h.processor.SaveUpload(fh)
	if err != nil {
		h.logger.Media().Error("Upload failed", "visitorId", visitorID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload"})
		return
	}

	msg, err := h.chatRouter.Ingest(visitorID, sender, kind, ref)
	if err != nil {
		h.logger.Chat().Error("Upload message routing failed", "visitorId", visitorID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to route message"})
		return
	}

	if kind == chat.KindAudio && h.transcription != nil {
		h.transcription.TranscribeUpload(visitorID, sender, h.processor.AbsolutePath(ref))
	}

	c.JSON(http.StatusOK, gin.H{"url": ref, "id": msg.ID, "ts": msg.TS})
}

func bearerToken(c *gin.Context) string {
	return strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
}
