package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure modes the bridge distinguishes.
// Callers classify with errors.Is and map to HTTP statuses at the edge.
var (
	// ErrInvalidUpload means the uploaded file is missing, empty, or not a PDF.
	// The user must fix the file and resubmit.
	ErrInvalidUpload = errors.New("invalid upload")

	// ErrStorageUnavailable means the object store could not be reached.
	// Transient; the client may retry the whole upload.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrNotFound means the object store path does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrUnsupportedDocument means the input bytes are not a parseable PDF.
	ErrUnsupportedDocument = errors.New("unsupported document")

	// ErrUpstreamTimeout means the answer service did not reply in time.
	// Ingestion already committed; the page index survives for the next turn.
	ErrUpstreamTimeout = errors.New("answer service timeout")

	// ErrUpstreamBadRequest means the answer service rejected the request
	// with a 4xx. Never retried.
	ErrUpstreamBadRequest = errors.New("answer service rejected request")

	// ErrUpstreamUnavailable means the answer service could not be reached
	// or kept failing after retries were exhausted.
	ErrUpstreamUnavailable = errors.New("answer service unavailable")

	// ErrMalformedUpstreamResponse means the answer service replied but the
	// body could not be decoded. Never retried: a retry could duplicate
	// side effects upstream.
	ErrMalformedUpstreamResponse = errors.New("malformed answer service response")
)

// PageError records a per-page rasterization or OCR failure. It is a
// warning, not a fatal error: the pipeline records a placeholder page
// and continues with the rest of the document.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }
