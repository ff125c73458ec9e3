package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfenderov/citedoc/internal/elasticsearch"
	"github.com/mfenderov/citedoc/internal/qa"
	"github.com/mfenderov/citedoc/pkg/models"
)

type fakeChat struct {
	owner    string
	question string
	askErr   error
}

func (f *fakeChat) Ask(_ context.Context, ownerID, documentID, question string) (*qa.Result, error) {
	f.owner = ownerID
	f.question = question
	if f.askErr != nil {
		return nil, f.askErr
	}
	if documentID != "doc-1" {
		return nil, models.ErrNotFound
	}
	return &qa.Result{
		Answer:    "Paris (Page 3)",
		Citations: []models.Citation{models.PageCitation(3, "Paris")},
	}, nil
}

func (f *fakeChat) Summarize(_ context.Context, _, documentID string) (*qa.Summary, error) {
	if documentID != "doc-1" {
		return nil, models.ErrNotFound
	}
	return &qa.Summary{Text: "A report."}, nil
}

func (f *fakeChat) Document(_ context.Context, _, documentID string) (*models.Document, error) {
	if documentID != "doc-1" {
		return nil, models.ErrNotFound
	}
	return &models.Document{ID: "doc-1", FileName: "report.pdf"}, nil
}

func (f *fakeChat) Documents(_ context.Context, _ string) ([]models.Document, error) {
	return nil, nil
}

type fakeSearcher struct {
	owner string
	limit int
}

func (f *fakeSearcher) Search(_ context.Context, ownerID, _ string, limit int) ([]elasticsearch.Hit, error) {
	f.owner = ownerID
	f.limit = limit
	return []elasticsearch.Hit{{DocumentID: "doc-1", FileName: "report.pdf"}}, nil
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func newTestServer(t *testing.T, chat Chat, library Searcher) *Server {
	t.Helper()
	s, err := NewServer(Config{Name: "citedoc", Version: "test", OwnerID: "alice"}, chat, library)
	require.NoError(t, err)
	return s
}

func TestServer_Creation(t *testing.T) {
	s := newTestServer(t, &fakeChat{}, nil)
	assert.NotNil(t, s.mcpServer)

	_, err := NewServer(Config{Name: "citedoc"}, &fakeChat{}, nil)
	assert.Error(t, err, "owner is required")
}

func TestServer_AskTool(t *testing.T) {
	chat := &fakeChat{}
	s := newTestServer(t, chat, nil)

	result, err := s.askHandler(context.Background(), callRequest(map[string]any{
		"document_id": "doc-1",
		"question":    "Capital?",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var answer qa.Result
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &answer))
	assert.Equal(t, "Paris (Page 3)", answer.Answer)
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, 3, *answer.Citations[0].Page)
	assert.Equal(t, "alice", chat.owner)
}

func TestServer_AskToolErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]any
		askErr  error
		message string
	}{
		{"missing question", map[string]any{"document_id": "doc-1"}, nil, "question parameter is required"},
		{"missing document", map[string]any{"question": "q"}, nil, "document_id parameter is required"},
		{"unknown document", map[string]any{"document_id": "doc-9", "question": "q"}, nil, "Document not found. Please re-upload the document."},
		{"oracle failure hidden", map[string]any{"document_id": "doc-1", "question": "q"}, errors.New("api key sk-123 rejected"), "ask failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeChat{askErr: tt.askErr}, nil)

			result, err := s.askHandler(context.Background(), callRequest(tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Equal(t, tt.message, resultText(t, result))
		})
	}
}

func TestServer_DocumentTools(t *testing.T) {
	s := newTestServer(t, &fakeChat{}, nil)
	ctx := context.Background()

	result, err := s.summarizeHandler(ctx, callRequest(map[string]any{"document_id": "doc-1"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary":"A report.","truncated":false,"fallback":false}`, resultText(t, result))

	result, err = s.listHandler(ctx, callRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", resultText(t, result))

	result, err = s.getDocumentHandler(ctx, callRequest(map[string]any{"id": "doc-1"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), `"file_name":"report.pdf"`)

	result, err = s.getDocumentHandler(ctx, callRequest(map[string]any{"id": "doc-2"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestServer_SearchTool(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s := newTestServer(t, &fakeChat{}, nil)
		result, err := s.searchHandler(context.Background(), callRequest(map[string]any{"query": "revenue"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("enabled", func(t *testing.T) {
		library := &fakeSearcher{}
		s := newTestServer(t, &fakeChat{}, library)

		result, err := s.searchHandler(context.Background(), callRequest(map[string]any{"query": "revenue", "limit": 3}))
		require.NoError(t, err)
		require.False(t, result.IsError)
		assert.Contains(t, resultText(t, result), `"document_id":"doc-1"`)
		assert.Equal(t, "alice", library.owner)
		assert.Equal(t, 3, library.limit)
	})
}
