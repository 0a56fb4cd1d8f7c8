package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/insurechat/bridge/internal/errs"
	"github.com/insurechat/bridge/internal/models"
	"github.com/insurechat/bridge/internal/rasterize"
	"github.com/insurechat/bridge/internal/session"
	"github.com/insurechat/bridge/pkg/logger"
	"github.com/insurechat/bridge/pkg/storage"
)

// State tracks an upload through the pipeline.
type State string

const (
	StateReceived           State = "received"
	StatePersistingOriginal State = "persisting-original"
	StateRasterizing        State = "rasterizing"
	StatePersistingPages    State = "persisting-pages"
	StateIndexed            State = "indexed"
	StateFailed             State = "failed"
)

// Rasterizer produces per-page artifacts from PDF bytes.
type Rasterizer interface {
	Process(ctx context.Context, pdfBytes []byte) (*rasterize.Result, error)
}

// Result is the outcome of one ingested upload. Warnings list pages
// that degraded to placeholders; the page set is still complete.
type Result struct {
	State    State
	Document models.Document
	Pages    []models.Page
	Warnings []*errs.PageError
}

// Pipeline ingests an upload end to end: persist the original, render
// and OCR every page, persist page artifacts, and append the document
// to the conversation's page index.
type Pipeline struct {
	store       storage.ObjectStore
	rasterizer  Rasterizer
	sessions    session.Store
	logger      logger.Logger
	maxParallel int
}

func NewPipeline(store storage.ObjectStore, rasterizer Rasterizer, sessions session.Store, log logger.Logger) *Pipeline {
	return &Pipeline{
		store:       store,
		rasterizer:  rasterizer,
		sessions:    sessions,
		logger:      log,
		maxParallel: 4,
	}
}

// Ingest runs the upload state machine. A rejected original aborts the
// whole upload with nothing indexed; once rasterization starts, page
// level failures degrade to placeholders instead of aborting, so the
// rest of the document stays available.
func (p *Pipeline) Ingest(ctx context.Context, conversationID, filename string, data []byte) (*Result, error) {
	result := &Result{State: StateReceived}

	if err := validateUpload(filename, data); err != nil {
		result.State = StateFailed
		return result, err
	}

	docID := uuid.New().String()[:16]
	log := p.logger.With(
		logger.String("conversationId", conversationID),
		logger.String("documentId", docID),
		logger.String("filename", filename),
	)
	log.Info("Starting ingestion", logger.Int("bytes", len(data)))

	// Persist the original first: if this fails the upload is rejected
	// whole, no partial document ever reaches the index.
	result.State = StatePersistingOriginal
	pdfKey := models.PDFObjectKey(conversationID, docID)
	storagePath, err := p.store.Put(ctx, pdfKey, data, "application/pdf")
	if err != nil {
		result.State = StateFailed
		return result, err
	}

	result.State = StateRasterizing
	rendered, err := p.rasterizer.Process(ctx, data)
	if err != nil {
		result.State = StateFailed
		return result, err
	}
	result.Warnings = append(result.Warnings, rendered.Warnings...)

	result.State = StatePersistingPages
	pages, warnings := p.persistPages(ctx, conversationID, docID, filename, rendered.Pages)
	result.Warnings = append(result.Warnings, warnings...)

	doc := models.Document{
		ID:               docID,
		OriginalFilename: filename,
		StoragePath:      storagePath,
		UploadedAt:       time.Now(),
		PageCount:        len(pages),
	}

	if err := p.sessions.Append(ctx, conversationID, doc, pages); err != nil {
		result.State = StateFailed
		return result, fmt.Errorf("failed to index document: %w", err)
	}

	result.State = StateIndexed
	result.Document = doc
	result.Pages = pages

	log.Info("Ingestion complete",
		logger.Int("pages", len(pages)),
		logger.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

// persistPages stores every page's image and text. Pages whose writes
// fail become placeholders with empty paths; the page entry itself is
// always created so page numbering stays 1..N.
func (p *Pipeline) persistPages(ctx context.Context, conversationID, docID, filename string, artifacts []rasterize.PageArtifact) ([]models.Page, []*errs.PageError) {
	pages := make([]models.Page, len(artifacts))
	var mu sync.Mutex
	var warnings []*errs.PageError

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, p.maxParallel)

	for i, artifact := range artifacts {
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			page := models.Page{
				DocumentID: docID,
				PDFName:    filename,
				Number:     artifact.Number,
				Key:        models.PageKeyFor(conversationID, docID, artifact.Number),
			}

			if artifact.Image != nil {
				imgPath, err := p.store.Put(gctx, string(page.Key), artifact.Image, "image/png")
				if err != nil {
					mu.Lock()
					warnings = append(warnings, &errs.PageError{Page: artifact.Number, Err: err})
					mu.Unlock()
				} else {
					page.ImagePath = imgPath
				}
			}

			textKey := models.TextObjectKey(conversationID, docID, artifact.Number)
			textPath, err := p.store.Put(gctx, textKey, []byte(artifact.Text), "text/plain; charset=utf-8")
			if err != nil {
				mu.Lock()
				warnings = append(warnings, &errs.PageError{Page: artifact.Number, Err: err})
				mu.Unlock()
			} else {
				page.TextPath = textPath
			}

			pages[i] = page
			return nil
		})
	}

	// Group goroutines only return early on context cancellation; page
	// failures were already downgraded to warnings above.
	if err := g.Wait(); err != nil {
		p.logger.Warn("Page persistence interrupted", logger.Error(err))
		for i, artifact := range artifacts {
			if pages[i].Number == 0 {
				pages[i] = models.Page{
					DocumentID: docID,
					PDFName:    filename,
					Number:     artifact.Number,
					Key:        models.PageKeyFor(conversationID, docID, artifact.Number),
				}
			}
		}
	}

	return pages, warnings
}

// validateUpload accepts files with a .pdf extension or PDF magic bytes.
func validateUpload(filename string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: file is empty", errs.ErrInvalidUpload)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".pdf" && !rasterize.IsPDF(data) {
		return fmt.Errorf("%w: not a PDF file", errs.ErrInvalidUpload)
	}

	return nil
}
