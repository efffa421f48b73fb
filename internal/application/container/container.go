// Package container provides dependency injection for all singleton services
package container

import (
	"fmt"

	"github.com/AtRiskMedia/chatline-go/internal/application/services"
	"github.com/AtRiskMedia/chatline-go/internal/domain/chat"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/media"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/persistence/database"
	chatrepo "github.com/AtRiskMedia/chatline-go/internal/infrastructure/persistence/chat"
	"github.com/AtRiskMedia/chatline-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Infrastructure
	Logger          *logging.ChanneledLogger
	LogBroadcaster  *logging.LogBroadcaster
	DB              *database.DB
	Registry        *messaging.Registry
	UploadProcessor *media.UploadProcessor

	// Repositories
	VisitorRepo chat.VisitorRepository
	MessageRepo chat.MessageRepository

	// Application services
	AuthService          *services.AuthService
	ChatRouter           *services.ChatRouter
	NotifyService        *services.NotifyService        // nil when alerts are not configured
	TranscriptionService *services.TranscriptionService // nil when transcription is not configured
}

// NewContainer creates and wires all singleton services
func NewContainer() (*Container, error) {
	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.Open(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.EnsureSchema(logger); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	uploadProcessor, err := media.NewUploadProcessor(config.UploadDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload processor: %w", err)
	}

	visitorRepo := chatrepo.NewSQLVisitorRepository(db, logger)
	messageRepo := chatrepo.NewSQLMessageRepository(db, logger)
	registry := messaging.NewRegistry(logger)

	notifyService := services.NewNotifyService(logger)
	chatRouter := services.NewChatRouter(registry, visitorRepo, messageRepo, notifyService, logger)

	return &Container{
		Logger:          logger,
		LogBroadcaster:  logging.GetBroadcaster(),
		DB:              db,
		Registry:        registry,
		UploadProcessor: uploadProcessor,

		VisitorRepo: visitorRepo,
		MessageRepo: messageRepo,

		AuthService:          services.NewAuthService(logger),
		ChatRouter:           chatRouter,
		NotifyService:        notifyService,
		TranscriptionService: services.NewTranscriptionService(chatRouter, logger),
	}, nil
}

// Close releases long-lived infrastructure held by the container.
func (c *Container) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
