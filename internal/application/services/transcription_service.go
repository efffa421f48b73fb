package services

import (
	"context"
	"fmt"
	"os"

	"github.com/AssemblyAI/assemblyai-go-sdk"
	"github.com/AtRiskMedia/chatline-go/internal/domain/chat"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/chatline-go/pkg/config"
)

// TranscriptionService turns an uploaded audio clip into a follow-up text
// message in the same conversation. Transcription runs in the background
// after the audio message itself has already been routed.
type TranscriptionService struct {
	client *assemblyai.Client
	router *ChatRouter
	logger *logging.ChanneledLogger
}

// NewTranscriptionService returns nil when no Assembly AI key is configured.
func NewTranscriptionService(router *ChatRouter, logger *logging.ChanneledLogger) *TranscriptionService {
	if config.AAIAPIKey == "" {
		logger.Media().Info("Audio transcription disabled, no Assembly AI key")
		return nil
	}
	return &TranscriptionService{
		client: assemblyai.NewClient(config.AAIAPIKey),
		router: router,
		logger: logger,
	}
}

// TranscribeUpload submits the stored audio file and, on success, ingests the
// transcript text as a message from the same sender. Runs asynchronously;
// failures are logged and the audio message stands on its own.
func (t *TranscriptionService) TranscribeUpload(visitorID string, sender chat.Sender, audioPath string) {
	go func() {
		if err := t.transcribe(visitorID, sender, audioPath); err != nil {
			t.logger.Media().Error("Transcription failed", "visitorId", visitorID, "path", audioPath, "error", err.Error())
		}
	}()
}

func (t *TranscriptionService) transcribe(visitorID string, sender chat.Sender, audioPath string) error {
	f, err := os.Open(audioPath)
	if err != nil {
		return fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.TranscriptionTimeout)
	defer cancel()

	transcript, err := t.client.Transcripts.TranscribeFromReader(ctx, f, nil)
	if err != nil {
		return fmt.Errorf("transcription request failed: %w", err)
	}
	if transcript.Text == nil || *transcript.Text == "" {
		t.logger.Media().Debug("Transcript came back empty", "visitorId", visitorID, "path", audioPath)
		return nil
	}

	if _, err := t.router.Ingest(visitorID, sender, chat.KindText, *transcript.Text); err != nil {
		return fmt.Errorf("failed to route transcript: %w", err)
	}

	t.logger.Media().Info("Transcript routed", "visitorId", visitorID, "chars", len(*transcript.Text))
	return nil
}
