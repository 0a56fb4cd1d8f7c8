package rasterize

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/insurechat/bridge/internal/errs"
	"github.com/insurechat/bridge/internal/ocr"
	"github.com/insurechat/bridge/pkg/logger"
)

// PageArtifact is the per-page output of rasterization: a rendered PNG
// plus recognized text. Image is nil and Text empty for placeholder
// pages whose rendering failed.
type PageArtifact struct {
	Number int
	Image  []byte
	Text   string
}

// Result holds one artifact per page, 1..N in order, plus warnings for
// pages that degraded to placeholders.
type Result struct {
	Pages    []PageArtifact
	Warnings []*errs.PageError
}

// Worker turns a PDF into per-page artifacts. Text comes from the PDF
// text layer when present, otherwise from OCR of the rendered image.
type Worker struct {
	engine      ocr.Engine
	logger      logger.Logger
	maxParallel int
}

func NewWorker(engine ocr.Engine, log logger.Logger) *Worker {
	return &Worker{
		engine:      engine,
		logger:      log,
		maxParallel: 4,
	}
}

// IsPDF reports whether raw starts with the PDF magic bytes.
func IsPDF(raw []byte) bool {
	return bytes.HasPrefix(raw, []byte("%PDF-"))
}

// Process rasterizes every page of pdfBytes. The result always has one
// artifact per page: a page that fails to render or recognize becomes a
// placeholder and a warning, never a gap.
func (w *Worker) Process(ctx context.Context, pdfBytes []byte) (*Result, error) {
	if len(pdfBytes) == 0 || !IsPDF(pdfBytes) {
		return nil, fmt.Errorf("%w: missing PDF header", errs.ErrUnsupportedDocument)
	}

	doc, err := fitz.NewFromMemory(pdfBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrUnsupportedDocument, err)
	}
	defer doc.Close()

	numPages := doc.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("%w: document has no pages", errs.ErrUnsupportedDocument)
	}

	textLayer := extractTextLayer(pdfBytes, numPages)

	result := &Result{
		Pages: make([]PageArtifact, numPages),
	}
	var warnMu sync.Mutex
	warn := func(page int, err error) {
		warnMu.Lock()
		defer warnMu.Unlock()
		result.Warnings = append(result.Warnings, &errs.PageError{Page: page, Err: err})
	}

	// The fitz document is not safe for concurrent use: render pages
	// serially, then fan out OCR for pages without a text layer.
	for i := 1; i <= numPages; i++ {
		artifact := PageArtifact{Number: i}

		img, err := doc.ImagePNG(i - 1)
		if err != nil {
			w.logger.Warn("Page rendering failed, recording placeholder",
				logger.Int("page", i),
				logger.Error(err),
			)
			warn(i, fmt.Errorf("render: %w", err))
			result.Pages[i-1] = artifact
			continue
		}

		artifact.Image = img
		artifact.Text = textLayer[i]
		result.Pages[i-1] = artifact
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, w.maxParallel)

	for i := range result.Pages {
		page := &result.Pages[i]
		if page.Image == nil || page.Text != "" {
			continue
		}
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			text, err := w.engine.Recognize(gctx, page.Image)
			if err != nil {
				w.logger.Warn("OCR failed, page keeps empty text",
					logger.Int("page", page.Number),
					logger.Error(err),
				)
				warn(page.Number, fmt.Errorf("ocr: %w", err))
				return nil
			}
			page.Text = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(result.Warnings, func(a, b int) bool {
		return result.Warnings[a].Page < result.Warnings[b].Page
	})

	return result, nil
}

// extractTextLayer pulls embedded text per page. Scanned documents have
// none; any parse failure just means OCR does the work instead.
func extractTextLayer(pdfBytes []byte, numPages int) map[int]string {
	texts := make(map[int]string, numPages)

	defer func() {
		// The pdf parser panics on some malformed cross-reference
		// tables; treat that the same as an unreadable text layer.
		_ = recover()
	}()

	reader := bytes.NewReader(pdfBytes)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return texts
	}

	n := pdfReader.NumPage()
	if n > numPages {
		n = numPages
	}
	for i := 1; i <= n; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if t := strings.TrimSpace(text); t != "" {
			texts[i] = t
		}
	}

	return texts
}
