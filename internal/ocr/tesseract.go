package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/insurechat/bridge/pkg/logger"
)

// TesseractEngine recognizes text with a local tesseract install via
// gosseract. Clients are created per call: gosseract clients are not
// safe for concurrent use and page recognition fans out.
type TesseractEngine struct {
	languages []string
	logger    logger.Logger
}

func NewTesseractEngine(languages []string, log logger.Logger) *TesseractEngine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &TesseractEngine{
		languages: languages,
		logger:    log,
	}
}

// Recognize implements Engine.Recognize.
func (e *TesseractEngine) Recognize(ctx context.Context, imageBytes []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.languages...); err != nil {
		return "", fmt.Errorf("failed to set OCR language: %w", err)
	}
	// Single-column mode works well for block text in policy documents.
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_COLUMN); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	if err := client.SetImageFromBytes(upscaleForOCR(imageBytes)); err != nil {
		return "", fmt.Errorf("failed to load image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract recognition failed: %w", err)
	}

	return normalizeText(text), nil
}

func (e *TesseractEngine) Close() error {
	return nil
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text)
}
