// Package documents keeps uploaded files, their extracted text and their
// metadata together.
package documents

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/mfenderov/citedoc/internal/repository"
	"github.com/mfenderov/citedoc/pkg/models"
)

// Object names under a document's storage key.
const (
	originalObject = "original"
	textObject     = "text.txt"
)

// Blobs is the object storage the store writes to.
type Blobs interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, prefix string) error
}

// Store persists documents. Bytes and text live in object storage, rows in
// the repository. Identifiers are issued here and never derived from the
// file name.
type Store struct {
	blobs Blobs
	repo  repository.Repository
	now   func() time.Time
}

// NewStore creates a document store.
func NewStore(blobs Blobs, repo repository.Repository) *Store {
	return &Store{
		blobs: blobs,
		repo:  repo,
		now:   time.Now,
	}
}

// Put stores a new document. doc supplies owner, file name, MIME type and
// page count; the remaining fields are assigned. The returned document
// carries its text.
func (s *Store) Put(ctx context.Context, doc models.Document, data []byte, text string) (*models.Document, error) {
	doc.ID = uuid.NewString()
	doc.StorageKey = path.Join("documents", doc.ID)
	doc.SizeBytes = int64(len(data))
	doc.CreatedAt = s.now().UTC()
	doc.Summary = ""

	if err := s.blobs.Put(ctx, path.Join(doc.StorageKey, originalObject), data, doc.MIMEType); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}
	if err := s.blobs.Put(ctx, path.Join(doc.StorageKey, textObject), []byte(text), "text/plain; charset=utf-8"); err != nil {
		s.cleanup(doc.StorageKey)
		return nil, fmt.Errorf("failed to store document text: %w", err)
	}
	if err := s.repo.CreateDocument(ctx, &doc); err != nil {
		s.cleanup(doc.StorageKey)
		return nil, err
	}

	slog.Debug("document stored", "id", doc.ID, "owner", doc.OwnerID, "size", doc.SizeBytes)
	doc.Text = text
	return &doc, nil
}

func (s *Store) cleanup(key string) {
	if err := s.blobs.Delete(context.Background(), key+"/"); err != nil {
		slog.Warn("failed to remove orphaned objects", "key", key, "error", err)
	}
}

// Get returns document metadata without text.
func (s *Store) Get(ctx context.Context, ownerID, id string) (*models.Document, error) {
	return s.repo.GetDocument(ctx, ownerID, id)
}

// Load returns the document with its extracted text.
func (s *Store) Load(ctx context.Context, ownerID, id string) (*models.Document, error) {
	doc, err := s.repo.GetDocument(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	text, err := s.blobs.Get(ctx, path.Join(doc.StorageKey, textObject))
	if err != nil {
		return nil, fmt.Errorf("failed to load document text: %w", err)
	}
	doc.Text = string(text)
	return doc, nil
}

// File returns the original bytes of a document.
func (s *Store) File(ctx context.Context, ownerID, id string) ([]byte, *models.Document, error) {
	doc, err := s.repo.GetDocument(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}

	data, err := s.blobs.Get(ctx, path.Join(doc.StorageKey, originalObject))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load document file: %w", err)
	}
	return data, doc, nil
}

// List returns the owner's documents, newest first.
func (s *Store) List(ctx context.Context, ownerID string) ([]models.Document, error) {
	return s.repo.ListDocuments(ctx, ownerID)
}

// SetSummary records the summary of a document.
func (s *Store) SetSummary(ctx context.Context, id, summary string) error {
	return s.repo.UpdateSummary(ctx, id, summary)
}
