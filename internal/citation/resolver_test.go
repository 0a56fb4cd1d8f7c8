package citation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insurechat/bridge/internal/errs"
	"github.com/insurechat/bridge/internal/models"
	"github.com/insurechat/bridge/pkg/logger"
)

// fakeStore signs any path unless told to fail.
type fakeStore struct {
	failPaths map[string]bool
	signCalls int
}

func (f *fakeStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	return key, nil
}

func (f *fakeStore) Get(ctx context.Context, path string) ([]byte, error) {
	return nil, errs.ErrNotFound
}

func (f *fakeStore) Sign(ctx context.Context, path string, ttl time.Duration) (string, error) {
	f.signCalls++
	if f.failPaths[path] {
		return "", errs.ErrStorageUnavailable
	}
	return "https://signed.example/" + path, nil
}

func (f *fakeStore) CleanupBefore(ctx context.Context, threshold time.Time) error {
	return nil
}

func testIndex() *models.PageIndex {
	idx := &models.PageIndex{
		Pages: make(map[models.PageKey]models.Page),
	}
	for _, doc := range []struct {
		id   string
		name string
		n    int
	}{
		{"doc-a", "policy.pdf", 3},
		{"doc-b", "claims-guide.pdf", 2},
	} {
		idx.Documents = append(idx.Documents, models.Document{
			ID:               doc.id,
			OriginalFilename: doc.name,
			PageCount:        doc.n,
		})
		for i := 1; i <= doc.n; i++ {
			key := models.PageKeyFor("conv", doc.id, i)
			idx.Pages[key] = models.Page{
				DocumentID: doc.id,
				PDFName:    doc.name,
				Number:     i,
				ImagePath:  string(key),
				Key:        key,
			}
			idx.Order = append(idx.Order, key)
		}
	}
	return idx
}

func newTestResolver(store *fakeStore) *Resolver {
	return NewResolver(store, 15*time.Minute, logger.NewTestLogger())
}

func TestResolveByKey(t *testing.T) {
	idx := testIndex()
	r := newTestResolver(&fakeStore{})

	key := models.PageKeyFor("conv", "doc-a", 2)
	citations := r.Resolve(context.Background(), []models.RawCitation{
		models.KeyRef{Key: key},
	}, idx)

	require.Len(t, citations, 1)
	assert.Equal(t, key, citations[0].PageKey)
	assert.Equal(t, "policy.pdf", citations[0].PDFName)
	assert.Equal(t, 2, citations[0].PageNumber)
	assert.NotEmpty(t, citations[0].URL)
}

func TestResolveByNameIsCaseInsensitive(t *testing.T) {
	idx := testIndex()
	r := newTestResolver(&fakeStore{})

	citations := r.Resolve(context.Background(), []models.RawCitation{
		models.NameRef{PDFName: "POLICY.PDF", Page: 2},
	}, idx)

	require.Len(t, citations, 1)
	assert.Equal(t, "policy.pdf", citations[0].PDFName)
	assert.Equal(t, 2, citations[0].PageNumber)
}

func TestResolveDropsUnknownReferences(t *testing.T) {
	idx := testIndex()
	r := newTestResolver(&fakeStore{})

	citations := r.Resolve(context.Background(), []models.RawCitation{
		models.KeyRef{Key: "pages/conv/no-such-doc/page_1.png"},
		models.NameRef{PDFName: "missing.pdf", Page: 1},
		models.NameRef{PDFName: "policy.pdf", Page: 99},
		models.NameRef{PDFName: "policy.pdf", Page: 1},
	}, idx)

	// Never fabricated: only the one real page resolves.
	require.Len(t, citations, 1)
	assert.Equal(t, 1, citations[0].PageNumber)
}

func TestResolveDeduplicatesFirstWins(t *testing.T) {
	idx := testIndex()
	r := newTestResolver(&fakeStore{})

	key := models.PageKeyFor("conv", "doc-a", 1)
	citations := r.Resolve(context.Background(), []models.RawCitation{
		models.KeyRef{Key: key},
		models.NameRef{PDFName: "policy.pdf", Page: 1}, // same page, other spelling
		models.KeyRef{Key: models.PageKeyFor("conv", "doc-b", 2)},
		models.KeyRef{Key: key},
	}, idx)

	require.Len(t, citations, 2)
	assert.Equal(t, key, citations[0].PageKey)
	assert.Equal(t, "claims-guide.pdf", citations[1].PDFName)
}

func TestResolvePreservesOrder(t *testing.T) {
	idx := testIndex()
	r := newTestResolver(&fakeStore{})

	raws := []models.RawCitation{
		models.NameRef{PDFName: "claims-guide.pdf", Page: 2},
		models.KeyRef{Key: models.PageKeyFor("conv", "doc-a", 3)},
		models.KeyRef{Key: models.PageKeyFor("conv", "doc-a", 1)},
	}
	citations := r.Resolve(context.Background(), raws, idx)

	require.Len(t, citations, 3)
	assert.Equal(t, "claims-guide.pdf", citations[0].PDFName)
	assert.Equal(t, 3, citations[1].PageNumber)
	assert.Equal(t, 1, citations[2].PageNumber)
}

func TestResolveIsIdempotent(t *testing.T) {
	idx := testIndex()
	r := newTestResolver(&fakeStore{})

	raws := []models.RawCitation{
		models.KeyRef{Key: models.PageKeyFor("conv", "doc-b", 1)},
		models.NameRef{PDFName: "policy.pdf", Page: 2},
	}

	first := r.Resolve(context.Background(), raws, idx)
	second := r.Resolve(context.Background(), raws, idx)

	require.Equal(t, len(first), len(second))
	for i := range first {
		// Signed URL values may legitimately differ between calls.
		assert.Equal(t, first[i].PageKey, second[i].PageKey)
		assert.Equal(t, first[i].PDFName, second[i].PDFName)
		assert.Equal(t, first[i].PageNumber, second[i].PageNumber)
	}
}

func TestResolveDropsPagesThatFailSigning(t *testing.T) {
	idx := testIndex()
	badPath := string(models.PageKeyFor("conv", "doc-a", 1))
	r := newTestResolver(&fakeStore{failPaths: map[string]bool{badPath: true}})

	citations := r.Resolve(context.Background(), []models.RawCitation{
		models.KeyRef{Key: models.PageKey(badPath)},
		models.KeyRef{Key: models.PageKeyFor("conv", "doc-a", 2)},
	}, idx)

	require.Len(t, citations, 1)
	assert.Equal(t, 2, citations[0].PageNumber)
}

func TestSignedURLsAreMintedPerCall(t *testing.T) {
	idx := testIndex()
	store := &fakeStore{}
	r := newTestResolver(store)

	raws := []models.RawCitation{
		models.KeyRef{Key: models.PageKeyFor("conv", "doc-a", 1)},
	}
	r.Resolve(context.Background(), raws, idx)
	r.Resolve(context.Background(), raws, idx)

	assert.Equal(t, 2, store.signCalls, fmt.Sprintf("expected fresh signing per call, got %d", store.signCalls))
}
