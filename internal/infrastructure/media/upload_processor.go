// Package media provides upload storage and image normalization utilities
package media

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/security"
	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// UploadProcessor stores incoming media files under the uploads directory.
// The core router only ever sees the reference path this returns, never the
// raw bytes.
type UploadProcessor struct {
	baseDir string
	logger  *logging.ChanneledLogger
}

// NewUploadProcessor creates the processor and ensures the uploads directory
// exists.
func NewUploadProcessor(baseDir string, logger *logging.ChanneledLogger) (*UploadProcessor, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &UploadProcessor{
		baseDir: baseDir,
		logger:  logger,
	}, nil
}

// SaveUpload writes the multipart file to disk under a collision-free name
// and returns the public reference path (/uploads/<name>).
func (p *UploadProcessor) SaveUpload(fh *multipart.FileHeader) (string, error) {
	start := time.Now()

	name := storedName(fh.Filename)
	fullPath := filepath.Join(p.baseDir, name)

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, src)
	if err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}

	p.logger.Media().Info("Upload stored", "name", name, "bytes", written, "duration", time.Since(start))

	if isRasterImage(name) {
		p.makeThumbnail(fullPath)
	}

	return "/uploads/" + name, nil
}

// AbsolutePath maps a /uploads reference back to its location on disk.
func (p *UploadProcessor) AbsolutePath(ref string) string {
	return filepath.Join(p.baseDir, filepath.Base(ref))
}

// storedName builds a collision-free filename: upload time plus a ULID,
// keeping the original extension when there is one.
func storedName(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), security.GenerateULID(), ext)
}

func isRasterImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

// makeThumbnail writes a webp thumbnail next to the original. Failures are
// logged and ignored; the original upload already succeeded.
func (p *UploadProcessor) makeThumbnail(fullPath string) {
	img, err := imaging.Open(fullPath)
	if err != nil {
		p.logger.Media().Warn("Thumbnail decode failed", "path", fullPath, "error", err.Error())
		return
	}

	resized := imaging.Resize(img, 320, 0, imaging.Lanczos)

	thumbPath := strings.TrimSuffix(fullPath, filepath.Ext(fullPath)) + "_thumb.webp"
	if err := webp.Save(thumbPath, resized, &webp.Options{Quality: 85}); err != nil {
		p.logger.Media().Warn("Thumbnail encode failed", "path", thumbPath, "error", err.Error())
		return
	}

	p.logger.Media().Debug("Thumbnail written", "path", thumbPath)
}
