package elasticsearch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mfenderov/citedoc/pkg/models"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Library indexes documents and searches them per owner. With an embedder
// the summary is embedded and searches are hybrid.
type Library struct {
	client   *Client
	embedder Embedder // nil if embeddings disabled
}

// NewLibrary creates a library over client. embedder may be nil.
func NewLibrary(client *Client, embedder Embedder) *Library {
	return &Library{client: client, embedder: embedder}
}

// Init ensures the index exists.
func (l *Library) Init(ctx context.Context) error {
	return l.client.CreateIndex(ctx)
}

// Add indexes doc. doc.Text must be loaded. Embedding failures degrade to a
// text-only entry.
func (l *Library) Add(ctx context.Context, doc *models.Document) error {
	entry := NewEntry(doc)

	if l.embedder != nil {
		source := doc.Summary
		if source == "" {
			source = doc.Text
		}
		embedding, err := l.embedder.Embed(ctx, source)
		if err != nil {
			slog.Warn("failed to generate embedding", "id", doc.ID, "error", err)
		} else {
			entry.Embedding = embedding
		}
	}

	if err := l.client.IndexDocument(ctx, entry); err != nil {
		return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
	}
	slog.Debug("document indexed", "id", doc.ID, "embedding", entry.Embedding != nil)
	return nil
}

// Search finds the owner's documents matching query.
func (l *Library) Search(ctx context.Context, ownerID, query string, limit int) ([]Hit, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", models.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 10
	}

	var queryEmbedding []float32
	if l.embedder != nil {
		embedding, err := l.embedder.Embed(ctx, query)
		if err != nil {
			slog.Warn("failed to embed query, using text search", "error", err)
		} else {
			queryEmbedding = embedding
		}
	}

	return l.client.HybridSearch(ctx, ownerID, query, queryEmbedding, limit)
}
