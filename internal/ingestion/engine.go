// Package ingestion turns an uploaded file into a stored, summarized and
// indexed document.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mfenderov/citedoc/internal/extract"
	"github.com/mfenderov/citedoc/internal/qa"
	"github.com/mfenderov/citedoc/pkg/models"
)

// DefaultMaxUploadBytes is the upload size ceiling (200 MiB).
const DefaultMaxUploadBytes = 200 << 20

// Config holds ingestion engine configuration.
type Config struct {
	MaxUploadBytes int64
}

// Upload is a file received from a caller.
type Upload struct {
	OwnerID  string
	FileName string
	MIMEType string // declared type, may be empty
	Data     []byte
}

// Result holds the outcome of one upload.
type Result struct {
	Document *models.Document
	Summary  *qa.Summary
	Indexed  bool
	Duration time.Duration
}

// Store persists documents.
type Store interface {
	Put(ctx context.Context, doc models.Document, data []byte, text string) (*models.Document, error)
	SetSummary(ctx context.Context, id, summary string) error
}

// Summarizer produces the executive summary of a document.
type Summarizer interface {
	Summarize(ctx context.Context, documentText string) (*qa.Summary, error)
}

// Indexer adds documents to the library search.
type Indexer interface {
	Add(ctx context.Context, doc *models.Document) error
}

// Engine validates, extracts, stores, summarizes and indexes uploads.
type Engine struct {
	store          Store
	summarizer     Summarizer
	indexer        Indexer // nil if library search disabled
	maxUploadBytes int64
}

// New creates a new ingestion engine. indexer may be nil.
func New(store Store, summarizer Summarizer, indexer Indexer, config Config) *Engine {
	maxBytes := config.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &Engine{
		store:          store,
		summarizer:     summarizer,
		indexer:        indexer,
		maxUploadBytes: maxBytes,
	}
}

// MaxUploadBytes returns the configured size ceiling.
func (e *Engine) MaxUploadBytes() int64 {
	return e.maxUploadBytes
}

// Validate checks an upload before any work is done and returns its
// effective MIME type.
func (e *Engine) Validate(upload Upload) (string, error) {
	if upload.OwnerID == "" {
		return "", fmt.Errorf("%w: owner is required", models.ErrInvalidInput)
	}
	if len(upload.Data) == 0 {
		return "", fmt.Errorf("%w: no file provided", models.ErrInvalidInput)
	}
	mimeType := extract.DetectMIME(upload.FileName, upload.MIMEType)
	if !extract.Supported(mimeType) {
		return "", fmt.Errorf("%w: %q, only PDF and Word documents are supported", models.ErrUnsupportedType, mimeType)
	}
	if int64(len(upload.Data)) > e.maxUploadBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", models.ErrPayloadTooLarge, len(upload.Data), e.maxUploadBytes)
	}
	return mimeType, nil
}

// Upload processes one file. An oracle failure while summarizing aborts the
// upload; a fallback summary does not. Indexing is best-effort.
func (e *Engine) Upload(ctx context.Context, upload Upload) (*Result, error) {
	start := time.Now()

	mimeType, err := e.Validate(upload)
	if err != nil {
		return nil, err
	}

	slog.Info("processing upload", "owner", upload.OwnerID, "file", upload.FileName, "mime", mimeType, "size", len(upload.Data))

	extracted, err := extract.Extract(upload.Data, mimeType)
	if err != nil {
		return nil, err
	}
	if extracted.Text == "" {
		return nil, fmt.Errorf("%w: no text found in %s", models.ErrExtractionFailed, upload.FileName)
	}

	doc, err := e.store.Put(ctx, models.Document{
		OwnerID:   upload.OwnerID,
		FileName:  upload.FileName,
		MIMEType:  mimeType,
		PageCount: extracted.PageCount,
	}, upload.Data, extracted.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	summary, err := e.summarizer.Summarize(ctx, doc.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize document %s: %w", doc.ID, err)
	}
	if summary.Truncated {
		slog.Warn("document truncated for summary", "id", doc.ID, "chars", len([]rune(doc.Text)))
	}

	if err := e.store.SetSummary(ctx, doc.ID, summary.Text); err != nil {
		return nil, fmt.Errorf("failed to save summary: %w", err)
	}
	doc.Summary = summary.Text

	result := &Result{Document: doc, Summary: summary}

	if e.indexer != nil {
		if err := e.indexer.Add(ctx, doc); err != nil {
			slog.Warn("failed to index document", "id", doc.ID, "error", err)
		} else {
			result.Indexed = true
		}
	}

	result.Duration = time.Since(start)
	slog.Info("upload complete",
		"id", doc.ID,
		"pages", doc.PageCount,
		"fallback", summary.Fallback,
		"indexed", result.Indexed,
		"duration", result.Duration)

	return result, nil
}
