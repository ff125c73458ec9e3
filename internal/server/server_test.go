package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfenderov/citedoc/internal/elasticsearch"
	"github.com/mfenderov/citedoc/internal/ingestion"
	"github.com/mfenderov/citedoc/internal/qa"
	"github.com/mfenderov/citedoc/pkg/models"
)

type fakeUploader struct {
	got ingestion.Upload
	err error
	max int64
}

func (f *fakeUploader) Upload(_ context.Context, upload ingestion.Upload) (*ingestion.Result, error) {
	f.got = upload
	if f.err != nil {
		return nil, f.err
	}
	return &ingestion.Result{
		Document: &models.Document{ID: "doc-1", OwnerID: upload.OwnerID, FileName: upload.FileName},
		Summary:  &qa.Summary{Text: "A report.", Truncated: true},
	}, nil
}

func (f *fakeUploader) MaxUploadBytes() int64 {
	if f.max > 0 {
		return f.max
	}
	return 1 << 20
}

type fakeChat struct {
	result *qa.Result
	err    error
	owner  string
}

func (f *fakeChat) Ask(_ context.Context, ownerID, _, _ string) (*qa.Result, error) {
	f.owner = ownerID
	return f.result, f.err
}

func (f *fakeChat) History(_ context.Context, _, documentID string) ([]models.Turn, error) {
	if documentID != "doc-1" {
		return nil, models.ErrNotFound
	}
	return []models.Turn{{ID: "t1", Question: "q", Answer: "a"}}, nil
}

func (f *fakeChat) Document(_ context.Context, _, documentID string) (*models.Document, error) {
	if documentID != "doc-1" {
		return nil, fmt.Errorf("document %s: %w", documentID, models.ErrNotFound)
	}
	return &models.Document{ID: "doc-1", FileName: "report.pdf", Summary: "A report."}, nil
}

func (f *fakeChat) Documents(_ context.Context, _ string) ([]models.Document, error) {
	return nil, nil
}

func (f *fakeChat) File(_ context.Context, _, documentID string) ([]byte, *models.Document, error) {
	if documentID != "doc-1" {
		return nil, nil, models.ErrNotFound
	}
	return []byte("%PDF-1.4"), &models.Document{ID: "doc-1", FileName: "report.pdf", MIMEType: "application/pdf"}, nil
}

type fakeSearcher struct{}

func (fakeSearcher) Search(_ context.Context, _, query string, limit int) ([]elasticsearch.Hit, error) {
	return []elasticsearch.Hit{{DocumentID: "doc-1", FileName: query, Score: float64(limit)}}, nil
}

func newTestServer(uploader *fakeUploader, chat *fakeChat, library Searcher) http.Handler {
	return New(Config{}, uploader, chat, library).Handler()
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func authed(req *http.Request) *http.Request {
	req.Header.Set("X-User-ID", "alice")
	return req
}

func multipartUpload(t *testing.T, field, fileName, contentType string, data []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, field, fileName)}
	header["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return authed(req)
}

func TestHealthz_NoIdentityRequired(t *testing.T) {
	h := newTestServer(&fakeUploader{}, &fakeChat{}, nil)

	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestMissingIdentity(t *testing.T) {
	h := newTestServer(&fakeUploader{}, &fakeChat{}, nil)

	for _, path := range []string{"/api/documents", "/api/documents/doc-1", "/api/search?q=x"} {
		t.Run(path, func(t *testing.T) {
			rec, _ := do(t, h, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestUpload(t *testing.T) {
	uploader := &fakeUploader{}
	h := newTestServer(uploader, &fakeChat{}, nil)

	rec, body := do(t, h, multipartUpload(t, "file", "report.pdf", "application/pdf", []byte("%PDF-1.4")))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, true, body["success"])
	assert.Equal(t, "A report.", body["summary"])
	assert.Equal(t, true, body["truncated"])
	assert.Equal(t, "doc-1", body["document"].(map[string]any)["id"])

	assert.Equal(t, "alice", uploader.got.OwnerID)
	assert.Equal(t, "report.pdf", uploader.got.FileName)
	assert.Equal(t, "application/pdf", uploader.got.MIMEType)
	assert.Equal(t, "%PDF-1.4", string(uploader.got.Data))
}

func TestUpload_Errors(t *testing.T) {
	tests := []struct {
		name       string
		request    func(t *testing.T) *http.Request
		uploadErr  error
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing file field",
			request:    func(t *testing.T) *http.Request { return multipartUpload(t, "other", "a.pdf", "application/pdf", []byte("x")) },
			wantStatus: http.StatusBadRequest,
			wantError:  "No file uploaded",
		},
		{
			name:       "unsupported type",
			request:    func(t *testing.T) *http.Request { return multipartUpload(t, "file", "a.txt", "text/plain", []byte("x")) },
			uploadErr:  fmt.Errorf("%w: text/plain", models.ErrUnsupportedType),
			wantStatus: http.StatusBadRequest,
			wantError:  "Unsupported file type",
		},
		{
			name:       "too large",
			request:    func(t *testing.T) *http.Request { return multipartUpload(t, "file", "a.pdf", "application/pdf", []byte("x")) },
			uploadErr:  models.ErrPayloadTooLarge,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantError:  "File too large",
		},
		{
			name:       "extraction failed",
			request:    func(t *testing.T) *http.Request { return multipartUpload(t, "file", "a.doc", "application/msword", []byte("x")) },
			uploadErr:  fmt.Errorf("%w: not an OOXML document", models.ErrExtractionFailed),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "oracle failure is generic",
			request:    func(t *testing.T) *http.Request { return multipartUpload(t, "file", "a.pdf", "application/pdf", []byte("x")) },
			uploadErr:  fmt.Errorf("%w: invalid x-api-key", models.ErrOracle),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to process document",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&fakeUploader{err: tt.uploadErr}, &fakeChat{}, nil)

			rec, body := do(t, h, tt.request(t))
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
			}
			assert.NotContains(t, rec.Body.String(), "x-api-key")
		})
	}
}

func TestUpload_BodyOverLimit(t *testing.T) {
	h := newTestServer(&fakeUploader{max: 16}, &fakeChat{}, nil)

	rec, _ := do(t, h, multipartUpload(t, "file", "a.pdf", "application/pdf", bytes.Repeat([]byte("x"), 2<<20)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func chatRequestBody(question, documentID string) io.Reader {
	data, _ := json.Marshal(map[string]string{"question": question, "document_id": documentID})
	return bytes.NewReader(data)
}

func TestChat(t *testing.T) {
	page := 3
	chat := &fakeChat{result: &qa.Result{
		Answer:    "Paris (Page 3)",
		Citations: []models.Citation{{Text: "Page 3", Page: &page, Snippet: "Paris"}},
	}}
	h := newTestServer(&fakeUploader{}, chat, nil)

	rec, body := do(t, h, authed(httptest.NewRequest(http.MethodPost, "/api/chat", chatRequestBody("Capital?", "doc-1"))))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Paris (Page 3)", body["answer"])
	citations := body["citations"].([]any)
	require.Len(t, citations, 1)
	assert.EqualValues(t, 3, citations[0].(map[string]any)["page"])
	assert.Equal(t, "alice", chat.owner)
}

func TestChat_NoCitationsOmitted(t *testing.T) {
	chat := &fakeChat{result: &qa.Result{Answer: qa.FallbackAnswer, Fallback: true}}
	h := newTestServer(&fakeUploader{}, chat, nil)

	rec, body := do(t, h, authed(httptest.NewRequest(http.MethodPost, "/api/chat", chatRequestBody("q", "doc-1"))))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.NotContains(t, body, "citations")
	assert.Equal(t, true, body["fallback"])
	assert.Equal(t, qa.FallbackAnswer, body["answer"])
}

func TestChat_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       io.Reader
		askErr     error
		wantStatus int
		wantError  string
	}{
		{"malformed body", strings.NewReader("{"), nil, http.StatusBadRequest, "Invalid request body"},
		{"missing question", chatRequestBody("", "doc-1"), nil, http.StatusBadRequest, "Missing question or document_id"},
		{"missing document", chatRequestBody("q", ""), nil, http.StatusBadRequest, "Missing question or document_id"},
		{"not found", chatRequestBody("q", "doc-9"), fmt.Errorf("document doc-9: %w", models.ErrNotFound), http.StatusNotFound, notFoundMessage},
		{"busy", chatRequestBody("q", "doc-1"), models.ErrBusy, http.StatusConflict, ""},
		{"oracle", chatRequestBody("q", "doc-1"), fmt.Errorf("%w: %w", models.ErrOracle, errors.New("rate limited")), http.StatusInternalServerError, "Failed to process question"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&fakeUploader{}, &fakeChat{err: tt.askErr}, nil)

			rec, body := do(t, h, authed(httptest.NewRequest(http.MethodPost, "/api/chat", tt.body)))
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
			}
		})
	}
}

func TestDocuments(t *testing.T) {
	h := newTestServer(&fakeUploader{}, &fakeChat{}, nil)

	rec, body := do(t, h, authed(httptest.NewRequest(http.MethodGet, "/api/documents", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["documents"])

	rec, body = do(t, h, authed(httptest.NewRequest(http.MethodGet, "/api/documents/doc-1", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A report.", body["document"].(map[string]any)["summary"])

	rec, body = do(t, h, authed(httptest.NewRequest(http.MethodGet, "/api/documents/doc-2", nil)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, notFoundMessage, body["error"])

	rec, body = do(t, h, authed(httptest.NewRequest(http.MethodGet, "/api/documents/doc-1/messages", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["messages"], 1)
}

func TestGetFile(t *testing.T) {
	h := newTestServer(&fakeUploader{}, &fakeChat{}, nil)

	rec, _ := do(t, h, authed(httptest.NewRequest(http.MethodGet, "/api/documents/doc-1/file", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename=report.pdf`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.4", rec.Body.String())

	rec, _ = do(t, h, authed(httptest.NewRequest(http.MethodGet, "/api/documents/doc-9/file", nil)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearch(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := newTestServer(&fakeUploader{}, &fakeChat{}, nil)
		rec, _ := do(t, h, authed(httptest.NewRequest(http.MethodGet, "/api/search?q=revenue", nil)))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("enabled", func(t *testing.T) {
		h := newTestServer(&fakeUploader{}, &fakeChat{}, fakeSearcher{})
		rec, body := do(t, h, authed(httptest.NewRequest(http.MethodGet, "/api/search?q=revenue&limit=5", nil)))
		require.Equal(t, http.StatusOK, rec.Code)

		results := body["results"].([]any)
		require.Len(t, results, 1)
		hit := results[0].(map[string]any)
		assert.Equal(t, "revenue", hit["file_name"])
		assert.EqualValues(t, 5, hit["score"])
	})

	t.Run("bad parameters", func(t *testing.T) {
		h := newTestServer(&fakeUploader{}, &fakeChat{}, fakeSearcher{})
		for _, query := range []string{"", "?q=x&limit=0", "?q=x&limit=abc", "?q=x&limit=1000"} {
			rec, _ := do(t, h, authed(httptest.NewRequest(http.MethodGet, "/api/search"+query, nil)))
			assert.Equal(t, http.StatusBadRequest, rec.Code, query)
		}
	})
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(Config{}, &fakeUploader{}, &fakeChat{}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, listener) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
