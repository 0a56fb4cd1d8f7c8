package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insurechat/bridge/internal/models"
	"github.com/insurechat/bridge/pkg/logger"
)

func testDocument(id string, pageCount int) (models.Document, []models.Page) {
	doc := models.Document{
		ID:               id,
		OriginalFilename: id + ".pdf",
		StoragePath:      models.PDFObjectKey("conv", id),
		UploadedAt:       time.Now(),
		PageCount:        pageCount,
	}

	pages := make([]models.Page, 0, pageCount)
	for i := 1; i <= pageCount; i++ {
		pages = append(pages, models.Page{
			DocumentID: id,
			PDFName:    doc.OriginalFilename,
			Number:     i,
			ImagePath:  fmt.Sprintf("pages/conv/%s/page_%d.png", id, i),
			Key:        models.PageKeyFor("conv", id, i),
		})
	}
	return doc, pages
}

func TestMemoryStoreGetOrCreate(t *testing.T) {
	store := NewMemoryStore(logger.NewTestLogger())
	ctx := context.Background()

	first, err := store.GetOrCreate(ctx, "conv-1")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := store.GetOrCreate(ctx, "conv-1")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestMemoryStoreAppendAndSnapshot(t *testing.T) {
	store := NewMemoryStore(logger.NewTestLogger())
	ctx := context.Background()

	doc, pages := testDocument("doc-a", 3)
	require.NoError(t, store.Append(ctx, "conv-1", doc, pages))

	idx, err := store.Snapshot(ctx, "conv-1")
	require.NoError(t, err)

	require.Len(t, idx.Documents, 1)
	assert.Equal(t, "doc-a", idx.Documents[0].ID)
	assert.Len(t, idx.Pages, 3)

	ordered := idx.OrderedPages()
	require.Len(t, ordered, 3)
	for i, p := range ordered {
		assert.Equal(t, i+1, p.Number)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	store := NewMemoryStore(logger.NewTestLogger())
	ctx := context.Background()

	doc, pages := testDocument("doc-a", 1)
	require.NoError(t, store.Append(ctx, "conv-1", doc, pages))

	idx, err := store.Snapshot(ctx, "conv-1")
	require.NoError(t, err)

	doc2, pages2 := testDocument("doc-b", 1)
	require.NoError(t, store.Append(ctx, "conv-1", doc2, pages2))

	// The earlier snapshot must not see the later append.
	assert.Len(t, idx.Pages, 1)
	assert.Len(t, idx.Documents, 1)
}

func TestConcurrentAppendsDoNotInterleave(t *testing.T) {
	store := NewMemoryStore(logger.NewTestLogger())
	ctx := context.Background()

	docA, pagesA := testDocument("doc-a", 25)
	docB, pagesB := testDocument("doc-b", 25)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, store.Append(ctx, "conv-1", docA, pagesA))
	}()
	go func() {
		defer wg.Done()
		assert.NoError(t, store.Append(ctx, "conv-1", docB, pagesB))
	}()
	wg.Wait()

	idx, err := store.Snapshot(ctx, "conv-1")
	require.NoError(t, err)

	// Full union of both documents' pages, nothing lost or duplicated.
	assert.Len(t, idx.Pages, 50)
	assert.Len(t, idx.Order, 50)
	for _, p := range append(pagesA, pagesB...) {
		got, ok := idx.Lookup(p.Key)
		require.True(t, ok, "missing page %s", p.Key)
		assert.Equal(t, p, got)
	}

	// Each document's pages appear as a contiguous, ordered run.
	ordered := idx.OrderedPages()
	firstDoc := ordered[0].DocumentID
	switched := false
	prev := 0
	for _, p := range ordered {
		if p.DocumentID != firstDoc && !switched {
			switched = true
			prev = 0
		}
		assert.Equal(t, prev+1, p.Number, "interleaved page order")
		prev = p.Number
	}
}

func TestReingestSameDocumentDoesNotDuplicateKeys(t *testing.T) {
	store := NewMemoryStore(logger.NewTestLogger())
	ctx := context.Background()

	doc, pages := testDocument("doc-a", 2)
	require.NoError(t, store.Append(ctx, "conv-1", doc, pages))
	require.NoError(t, store.Append(ctx, "conv-1", doc, pages))

	idx, err := store.Snapshot(ctx, "conv-1")
	require.NoError(t, err)
	assert.Len(t, idx.Pages, 2)
	assert.Len(t, idx.Order, 2)
	assert.Len(t, idx.Documents, 2)
}

func TestNoCrossConversationSharing(t *testing.T) {
	store := NewMemoryStore(logger.NewTestLogger())
	ctx := context.Background()

	doc, pages := testDocument("doc-a", 1)
	require.NoError(t, store.Append(ctx, "conv-1", doc, pages))

	idx, err := store.Snapshot(ctx, "conv-2")
	require.NoError(t, err)
	assert.Empty(t, idx.Pages)
	assert.Empty(t, idx.Documents)
}

func TestEvictIdle(t *testing.T) {
	store := NewMemoryStore(logger.NewTestLogger())
	ctx := context.Background()

	doc, pages := testDocument("doc-a", 1)
	require.NoError(t, store.Append(ctx, "idle-conv", doc, pages))

	evicted, err := store.EvictIdle(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)

	idx, err := store.Snapshot(ctx, "idle-conv")
	require.NoError(t, err)
	assert.Empty(t, idx.Pages)
}
