package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"

	"github.com/disintegration/imaging"

	"github.com/insurechat/bridge/config"
	"github.com/insurechat/bridge/pkg/logger"
)

// Engine extracts text from a rendered page image.
type Engine interface {
	// Recognize returns the recognized text for one page image. An empty
	// string is a valid result for pages with no legible text.
	Recognize(ctx context.Context, imageBytes []byte) (string, error)
	Close() error
}

// NewEngine builds the engine selected by OCR_ENGINE.
func NewEngine(cfg *config.OCRConfig, log logger.Logger) (Engine, error) {
	switch cfg.Engine {
	case "tesseract":
		return NewTesseractEngine(cfg.Languages, log), nil
	case "textract":
		return NewTextractEngine(context.Background(), cfg, log)
	default:
		return nil, fmt.Errorf("unsupported OCR engine: %s", cfg.Engine)
	}
}

// minOCREdge is the long-edge floor below which page renders are
// upscaled before recognition. Small scans OCR poorly at native size.
const minOCREdge = 1600

// upscaleForOCR re-encodes imageBytes with the long edge at least
// minOCREdge. Returns the input unchanged when it is already large
// enough or cannot be decoded.
func upscaleForOCR(imageBytes []byte) []byte {
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return imageBytes
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	long := w
	if h > w {
		long = h
	}
	if long >= minOCREdge || long == 0 {
		return imageBytes
	}

	scale := float64(minOCREdge) / float64(long)
	resized := imaging.Resize(img, int(float64(w)*scale), int(float64(h)*scale), imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.PNG); err != nil {
		return imageBytes
	}
	return buf.Bytes()
}
