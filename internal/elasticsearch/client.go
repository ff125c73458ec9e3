// Package elasticsearch indexes uploaded documents for library search.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/mfenderov/citedoc/pkg/models"
)

// Config holds Elasticsearch client configuration.
type Config struct {
	Addresses  []string
	Index      string
	Username   string
	Password   string
	Dimensions int // embedding dims, 0 disables the vector field
}

// Entry is the indexed form of a document.
type Entry struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	FileName  string    `json:"file_name"`
	MIMEType  string    `json:"mime_type"`
	Summary   string    `json:"summary"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// NewEntry builds the index entry for doc. doc.Text must be loaded.
func NewEntry(doc *models.Document) Entry {
	return Entry{
		ID:        doc.ID,
		OwnerID:   doc.OwnerID,
		FileName:  doc.FileName,
		MIMEType:  doc.MIMEType,
		Summary:   doc.Summary,
		Content:   doc.Text,
		CreatedAt: doc.CreatedAt,
	}
}

// Hit is a search result.
type Hit struct {
	DocumentID string    `json:"document_id"`
	FileName   string    `json:"file_name"`
	Summary    string    `json:"summary,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Score      float64   `json:"score"`
}

// Client wraps the Elasticsearch client with library operations.
type Client struct {
	es         *elasticsearch.Client
	index      string
	dimensions int
}

// New creates a new Elasticsearch client.
func New(config Config) (*Client, error) {
	if config.Index == "" {
		return nil, fmt.Errorf("index is required")
	}

	cfg := elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}

	return &Client{
		es:         es,
		index:      config.Index,
		dimensions: config.Dimensions,
	}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) bool {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

// indexMapping returns the index mapping. The vector field is only mapped
// when dims > 0.
func indexMapping(dims int) string {
	embedding := ""
	if dims > 0 {
		embedding = fmt.Sprintf(`,
			"embedding": {
				"type": "dense_vector",
				"dims": %d,
				"index": true,
				"similarity": "cosine"
			}`, dims)
	}
	return `{
	"mappings": {
		"properties": {
			"id": { "type": "keyword" },
			"owner_id": { "type": "keyword" },
			"file_name": { "type": "text", "fields": { "raw": { "type": "keyword" } } },
			"mime_type": { "type": "keyword" },
			"summary": { "type": "text", "analyzer": "english" },
			"content": { "type": "text", "analyzer": "english" },
			"created_at": { "type": "date" }` + embedding + `
		}
	}
}`
}

// CreateIndex creates the index with proper mapping.
func (c *Client) CreateIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader([]byte(indexMapping(c.dimensions)))),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index: %s", res.String())
	}

	return nil
}

// DeleteIndex removes the index (for testing/cleanup).
func (c *Client) DeleteIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete([]string{c.index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// IndexDocument indexes a single document entry.
func (c *Client) IndexDocument(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	res, err := c.es.Index(
		c.index,
		bytes.NewReader(data),
		c.es.Index.WithContext(ctx),
		c.es.Index.WithDocumentID(entry.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing document (status %d): %s", res.StatusCode, res.String())
	}

	return nil
}

// Refresh forces an index refresh (useful for testing).
func (c *Client) Refresh(ctx context.Context) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(c.index),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// searchResponse represents ES search response structure.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64 `json:"_score"`
			Source Entry   `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

var searchFields = []string{"content", "file_name^2", "summary^1.5"}

// ownerFilter restricts a query to one owner's documents.
func ownerFilter(ownerID string) map[string]any {
	return map[string]any{"term": map[string]any{"owner_id": ownerID}}
}

func textQuery(ownerID, query string) map[string]any {
	return map[string]any{
		"bool": map[string]any{
			"must": map[string]any{
				"multi_match": map[string]any{
					"query":  query,
					"fields": searchFields,
				},
			},
			"filter": ownerFilter(ownerID),
		},
	}
}

// buildSearchQuery returns a BM25 query, or an RRF query combining BM25 and
// kNN when queryEmbedding is set.
func buildSearchQuery(ownerID, query string, queryEmbedding []float32, limit int) map[string]any {
	if queryEmbedding == nil {
		return map[string]any{
			"query":   textQuery(ownerID, query),
			"size":    limit,
			"_source": map[string]any{"excludes": []string{"content", "embedding"}},
		}
	}

	return map[string]any{
		"retriever": map[string]any{
			"rrf": map[string]any{
				"retrievers": []map[string]any{
					{
						"standard": map[string]any{
							"query": textQuery(ownerID, query),
						},
					},
					{
						"knn": map[string]any{
							"field":          "embedding",
							"query_vector":   queryEmbedding,
							"k":              limit,
							"num_candidates": limit * 2,
							"filter":         ownerFilter(ownerID),
						},
					},
				},
			},
		},
		"size":    limit,
		"_source": map[string]any{"excludes": []string{"content", "embedding"}},
	}
}

// Search performs a BM25 text search over the owner's documents.
func (c *Client) Search(ctx context.Context, ownerID, query string, limit int) ([]Hit, error) {
	return c.HybridSearch(ctx, ownerID, query, nil, limit)
}

// HybridSearch performs a combined BM25 + vector search.
// If queryEmbedding is nil, falls back to BM25 only.
func (c *Client) HybridSearch(ctx context.Context, ownerID, query string, queryEmbedding []float32, limit int) ([]Hit, error) {
	data, err := json.Marshal(buildSearchQuery(ownerID, query, queryEmbedding, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	hits := make([]Hit, len(sr.Hits.Hits))
	for i, hit := range sr.Hits.Hits {
		hits[i] = Hit{
			DocumentID: hit.Source.ID,
			FileName:   hit.Source.FileName,
			Summary:    hit.Source.Summary,
			CreatedAt:  hit.Source.CreatedAt,
			Score:      hit.Score,
		}
	}
	return hits, nil
}
