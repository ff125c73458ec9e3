package elasticsearch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfenderov/citedoc/pkg/models"
)

// fakeES records request bodies and answers like an Elasticsearch node.
type fakeES struct {
	mu       sync.Mutex
	requests map[string][]byte // "METHOD path" -> body
	search   string
}

func newFakeES(t *testing.T) (*fakeES, *Client) {
	t.Helper()

	fake := &fakeES{
		requests: make(map[string][]byte),
		search:   `{"hits":{"hits":[]}}`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fake.mu.Lock()
		fake.requests[r.Method+" "+r.URL.Path] = body
		search := fake.search
		fake.mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case r.URL.Path == "/library/_search":
			w.Write([]byte(search))
		default:
			w.Write([]byte(`{"acknowledged":true,"result":"created"}`))
		}
	}))
	t.Cleanup(server.Close)

	client, err := New(Config{Addresses: []string{server.URL}, Index: "library", Dimensions: 3})
	require.NoError(t, err)
	return fake, client
}

func (f *fakeES) body(t *testing.T, key string) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, ok := f.requests[key]
	require.True(t, ok, "no request %q", key)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

type stubEmbedder struct {
	vector []float32
	err    error
	inputs []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.inputs = append(s.inputs, text)
	return s.vector, s.err
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Addresses: []string{"http://localhost:9200"}})
	assert.Error(t, err)

	_, err = New(Config{Addresses: []string{"http://localhost:9200"}, Index: "library"})
	assert.NoError(t, err)
}

func TestIndexMapping(t *testing.T) {
	var withVector map[string]any
	require.NoError(t, json.Unmarshal([]byte(indexMapping(768)), &withVector))
	props := withVector["mappings"].(map[string]any)["properties"].(map[string]any)
	assert.EqualValues(t, 768, props["embedding"].(map[string]any)["dims"])
	assert.Contains(t, props, "owner_id")

	var textOnly map[string]any
	require.NoError(t, json.Unmarshal([]byte(indexMapping(0)), &textOnly))
	props = textOnly["mappings"].(map[string]any)["properties"].(map[string]any)
	assert.NotContains(t, props, "embedding")
}

func TestBuildSearchQuery(t *testing.T) {
	t.Run("text only", func(t *testing.T) {
		q := buildSearchQuery("alice", "revenue", nil, 5)
		assert.Equal(t, 5, q["size"])
		assert.NotContains(t, q, "retriever")

		boolQuery := q["query"].(map[string]any)["bool"].(map[string]any)
		assert.Equal(t, ownerFilter("alice"), boolQuery["filter"])
	})

	t.Run("hybrid", func(t *testing.T) {
		q := buildSearchQuery("alice", "revenue", []float32{1, 0, 0}, 5)
		assert.NotContains(t, q, "query")

		retrievers := q["retriever"].(map[string]any)["rrf"].(map[string]any)["retrievers"].([]map[string]any)
		require.Len(t, retrievers, 2)
		knn := retrievers[1]["knn"].(map[string]any)
		assert.Equal(t, 10, knn["num_candidates"])
		assert.Equal(t, ownerFilter("alice"), knn["filter"])
	})
}

func TestLibrary_AddEmbedsSummary(t *testing.T) {
	fake, client := newFakeES(t)
	embedder := &stubEmbedder{vector: []float32{0.1, 0.2, 0.3}}
	library := NewLibrary(client, embedder)

	require.NoError(t, library.Init(context.Background()))
	fake.body(t, "PUT /library")

	doc := &models.Document{
		ID:        "doc-1",
		OwnerID:   "alice",
		FileName:  "report.pdf",
		Summary:   "Annual report.",
		Text:      "Full text",
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, library.Add(context.Background(), doc))

	assert.Equal(t, []string{"Annual report."}, embedder.inputs)
	indexed := fake.body(t, "PUT /library/_doc/doc-1")
	assert.Equal(t, "alice", indexed["owner_id"])
	assert.Equal(t, "Full text", indexed["content"])
	assert.Len(t, indexed["embedding"], 3)
}

func TestLibrary_AddWithoutEmbedding(t *testing.T) {
	fake, client := newFakeES(t)
	library := NewLibrary(client, &stubEmbedder{err: errors.New("model not loaded")})

	doc := &models.Document{ID: "doc-2", OwnerID: "alice", Text: "Body"}
	require.NoError(t, library.Add(context.Background(), doc))

	indexed := fake.body(t, "PUT /library/_doc/doc-2")
	assert.NotContains(t, indexed, "embedding")
}

func TestLibrary_Search(t *testing.T) {
	fake, client := newFakeES(t)
	fake.search = `{"hits":{"hits":[{"_score":1.5,"_source":{"id":"doc-1","owner_id":"alice","file_name":"report.pdf","summary":"Annual report.","created_at":"2025-01-02T03:04:05Z"}}]}}`

	t.Run("text search", func(t *testing.T) {
		hits, err := NewLibrary(client, nil).Search(context.Background(), "alice", "revenue", 0)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "doc-1", hits[0].DocumentID)
		assert.Equal(t, "report.pdf", hits[0].FileName)
		assert.Equal(t, 1.5, hits[0].Score)

		body := fake.body(t, "POST /library/_search")
		assert.EqualValues(t, 10, body["size"])
		assert.Contains(t, body, "query")
	})

	t.Run("hybrid search", func(t *testing.T) {
		embedder := &stubEmbedder{vector: []float32{1, 0, 0}}
		_, err := NewLibrary(client, embedder).Search(context.Background(), "alice", "revenue", 3)
		require.NoError(t, err)

		assert.Equal(t, []string{"revenue"}, embedder.inputs)
		body := fake.body(t, "POST /library/_search")
		assert.Contains(t, body, "retriever")
	})

	t.Run("embedding failure falls back to text", func(t *testing.T) {
		embedder := &stubEmbedder{err: errors.New("down")}
		_, err := NewLibrary(client, embedder).Search(context.Background(), "alice", "revenue", 3)
		require.NoError(t, err)

		body := fake.body(t, "POST /library/_search")
		assert.NotContains(t, body, "retriever")
	})

	t.Run("empty query", func(t *testing.T) {
		_, err := NewLibrary(client, nil).Search(context.Background(), "alice", "", 3)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})
}

func skipIfNoES(t *testing.T) {
	if os.Getenv("SKIP_ES_TESTS") == "1" {
		t.Skip("Skipping ES tests (SKIP_ES_TESTS=1)")
	}

	client, err := New(Config{
		Addresses: []string{"http://localhost:9200"},
		Index:     "test-skip-check",
	})
	if err != nil {
		t.Skipf("Skipping ES tests: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !client.Ping(ctx) {
		t.Skip("Skipping ES tests: Elasticsearch not available")
	}
}

func TestIntegration_IndexAndSearch(t *testing.T) {
	skipIfNoES(t)

	client, err := New(Config{
		Addresses: []string{"http://localhost:9200"},
		Index:     "citedoc-test-library",
	})
	require.NoError(t, err)

	ctx := context.Background()
	client.DeleteIndex(ctx)
	t.Cleanup(func() { client.DeleteIndex(context.Background()) })

	require.NoError(t, client.CreateIndex(ctx))
	require.NoError(t, client.CreateIndex(ctx), "CreateIndex is idempotent")

	library := NewLibrary(client, nil)
	require.NoError(t, library.Add(ctx, &models.Document{
		ID: "a1", OwnerID: "alice", FileName: "alice.pdf",
		Text: "Quarterly revenue grew in Europe.", CreatedAt: time.Now(),
	}))
	require.NoError(t, library.Add(ctx, &models.Document{
		ID: "b1", OwnerID: "bob", FileName: "bob.pdf",
		Text: "Quarterly revenue fell in Asia.", CreatedAt: time.Now(),
	}))
	require.NoError(t, client.Refresh(ctx))

	hits, err := library.Search(ctx, "alice", "revenue", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a1", hits[0].DocumentID)
}
