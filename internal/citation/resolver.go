package citation

import (
	"context"
	"strings"
	"time"

	"github.com/insurechat/bridge/internal/models"
	"github.com/insurechat/bridge/pkg/logger"
	"github.com/insurechat/bridge/pkg/storage"
)

// Resolver reconciles the answer service's raw page references into
// user-facing citations with fresh signed image URLs.
type Resolver struct {
	store  storage.ObjectStore
	ttl    time.Duration
	logger logger.Logger
}

func NewResolver(store storage.ObjectStore, signedURLTTL time.Duration, log logger.Logger) *Resolver {
	return &Resolver{
		store:  store,
		ttl:    signedURLTTL,
		logger: log,
	}
}

// Resolve maps raw citations onto the conversation's page index.
// Order-preserving, deduplicated on page key (first occurrence wins).
// References that match nothing are dropped, never fabricated: one bad
// citation must not block the answer text. Signed URLs are minted per
// call because they expire.
func (r *Resolver) Resolve(ctx context.Context, raws []models.RawCitation, idx *models.PageIndex) []models.Citation {
	citations := make([]models.Citation, 0, len(raws))
	seen := make(map[models.PageKey]bool, len(raws))

	for _, raw := range raws {
		page, ok := r.match(raw, idx)
		if !ok {
			r.logger.Warn("Dropping unresolvable citation",
				logger.Any("citation", raw),
			)
			continue
		}
		if seen[page.Key] {
			continue
		}

		url, err := r.store.Sign(ctx, page.ImagePath, r.ttl)
		if err != nil {
			r.logger.Warn("Failed to sign page image, dropping citation",
				logger.String("imagePath", page.ImagePath),
				logger.Error(err),
			)
			continue
		}

		seen[page.Key] = true
		citations = append(citations, models.Citation{
			PageKey:    page.Key,
			PDFName:    page.PDFName,
			PageNumber: page.Number,
			URL:        url,
		})
	}

	return citations
}

func (r *Resolver) match(raw models.RawCitation, idx *models.PageIndex) (models.Page, bool) {
	switch ref := raw.(type) {
	case models.KeyRef:
		return idx.Lookup(ref.Key)
	case models.NameRef:
		for _, page := range idx.OrderedPages() {
			if page.Number == ref.Page && strings.EqualFold(page.PDFName, ref.PDFName) {
				return page, true
			}
		}
		return models.Page{}, false
	default:
		return models.Page{}, false
	}
}
