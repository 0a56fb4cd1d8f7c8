package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageKeyForIsDeterministic(t *testing.T) {
	a := PageKeyFor("conv-1", "doc-a", 3)
	b := PageKeyFor("conv-1", "doc-a", 3)
	assert.Equal(t, a, b)
	assert.Equal(t, PageKey("pages/conv-1/doc-a/page_3.png"), a)
}

func TestPageKeyForIsInjective(t *testing.T) {
	seen := make(map[PageKey]bool)
	for _, conv := range []string{"conv-1", "conv-2"} {
		for _, doc := range []string{"doc-a", "doc-b"} {
			for page := 1; page <= 5; page++ {
				key := PageKeyFor(conv, doc, page)
				assert.False(t, seen[key], "collision on %s", key)
				seen[key] = true
			}
		}
	}
}

func TestObjectKeyLayout(t *testing.T) {
	assert.Equal(t, "pdfs/conv-1/doc-a.pdf", PDFObjectKey("conv-1", "doc-a"))
	assert.Equal(t, "text/conv-1/doc-a/page_2.txt", TextObjectKey("conv-1", "doc-a", 2))
}

func TestOrderedPagesFollowsInsertionOrder(t *testing.T) {
	idx := &PageIndex{Pages: make(map[PageKey]Page)}
	for _, doc := range []string{"doc-b", "doc-a"} {
		for page := 1; page <= 2; page++ {
			key := PageKeyFor("conv", doc, page)
			idx.Pages[key] = Page{DocumentID: doc, Number: page, Key: key}
			idx.Order = append(idx.Order, key)
		}
	}

	ordered := idx.OrderedPages()
	require.Len(t, ordered, 4)
	assert.Equal(t, "doc-b", ordered[0].DocumentID)
	assert.Equal(t, "doc-b", ordered[1].DocumentID)
	assert.Equal(t, "doc-a", ordered[2].DocumentID)
	assert.Equal(t, 2, ordered[3].Number)
}

func TestOrderedPagesSkipsDanglingKeys(t *testing.T) {
	key := PageKeyFor("conv", "doc-a", 1)
	idx := &PageIndex{
		Pages: map[PageKey]Page{key: {Number: 1, Key: key}},
		Order: []PageKey{key, "pages/conv/gone/page_1.png"},
	}
	assert.Len(t, idx.OrderedPages(), 1)
}

func TestLookup(t *testing.T) {
	key := PageKeyFor("conv", "doc-a", 1)
	idx := &PageIndex{Pages: map[PageKey]Page{key: {Number: 1, Key: key}}}

	page, ok := idx.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, 1, page.Number)

	_, ok = idx.Lookup("pages/conv/doc-a/page_99.png")
	assert.False(t, ok)
}
