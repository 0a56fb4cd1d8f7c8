package models

import (
	"fmt"
	"time"
)

// Document is an uploaded PDF. Immutable once the upload is indexed.
type Document struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"originalFilename"`
	StoragePath      string    `json:"storagePath"`
	UploadedAt       time.Time `json:"uploadedAt"`
	PageCount        int       `json:"pageCount"`
}

// Page is one page of an ingested document. Numbering is 1-based and
// unique within the document.
type Page struct {
	DocumentID string  `json:"documentId"`
	PDFName    string  `json:"pdfName"`
	Number     int     `json:"pageNumber"`
	TextPath   string  `json:"textPath"`
	ImagePath  string  `json:"imagePath"`
	Key        PageKey `json:"pageKey"`
}

// PageKey is the opaque join key exchanged with the answer service.
// It doubles as the page-image object key, so a key received back from
// upstream dereferences directly to a signable artifact.
type PageKey string

// PageKeyFor derives the key for (conversation, document, page).
// Deterministic and injective: two distinct pages never share a key.
func PageKeyFor(conversationID, documentID string, page int) PageKey {
	return PageKey(fmt.Sprintf("pages/%s/%s/page_%d.png", conversationID, documentID, page))
}

// PDFObjectKey is the storage key for an original upload.
func PDFObjectKey(conversationID, documentID string) string {
	return fmt.Sprintf("pdfs/%s/%s.pdf", conversationID, documentID)
}

// TextObjectKey is the storage key for a page's extracted text.
func TextObjectKey(conversationID, documentID string, page int) string {
	return fmt.Sprintf("text/%s/%s/page_%d.txt", conversationID, documentID, page)
}

// PageIndex is a point-in-time view of everything ingested into a
// conversation. Order preserves insertion so the upstream payload is
// stable across turns.
type PageIndex struct {
	Documents []Document
	Pages     map[PageKey]Page
	Order     []PageKey
}

// Lookup returns the page for key, if ever ingested in this conversation.
func (idx *PageIndex) Lookup(key PageKey) (Page, bool) {
	p, ok := idx.Pages[key]
	return p, ok
}

// OrderedPages returns pages in ingestion order.
func (idx *PageIndex) OrderedPages() []Page {
	pages := make([]Page, 0, len(idx.Order))
	for _, k := range idx.Order {
		if p, ok := idx.Pages[k]; ok {
			pages = append(pages, p)
		}
	}
	return pages
}

// RawCitation is a page reference as the answer service emits it:
// either an opaque page key or a (filename, page number) pair. Modeled
// as a closed variant so resolution handles both cases exhaustively.
type RawCitation interface {
	rawCitation()
}

// KeyRef cites a page by its opaque key.
type KeyRef struct {
	Key PageKey
}

// NameRef cites a page by original filename and 1-based page number.
type NameRef struct {
	PDFName string
	Page    int
}

func (KeyRef) rawCitation()  {}
func (NameRef) rawCitation() {}

// Citation is the resolved, user-facing form of a raw reference. URL is
// a short-lived signed link to the page image and is minted fresh on
// every resolution.
type Citation struct {
	PageKey    PageKey `json:"page_key"`
	PDFName    string  `json:"pdf_name"`
	PageNumber int     `json:"page_number"`
	URL        string  `json:"url"`
}
