package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/mfenderov/citedoc/internal/elasticsearch"
	"github.com/mfenderov/citedoc/internal/ingestion"
	"github.com/mfenderov/citedoc/pkg/models"
)

// multipartOverhead is allowed on top of the file ceiling for form framing.
const multipartOverhead = 1 << 20

const notFoundMessage = "Document not found. Please re-upload the document."

type errorResponse struct {
	Error string `json:"error"`
}

type uploadResponse struct {
	Success   bool             `json:"success"`
	Document  *models.Document `json:"document"`
	Summary   string           `json:"summary"`
	Truncated bool             `json:"truncated"`
	Fallback  bool             `json:"fallback"`
}

type chatRequest struct {
	Question   string `json:"question"`
	DocumentID string `json:"document_id"`
}

type chatResponse struct {
	Success   bool              `json:"success"`
	Answer    string            `json:"answer"`
	Citations []models.Citation `json:"citations,omitempty"`
	Truncated bool              `json:"truncated"`
	Fallback  bool              `json:"fallback"`
}

type documentsResponse struct {
	Success   bool              `json:"success"`
	Documents []models.Document `json:"documents"`
}

type documentResponse struct {
	Success  bool             `json:"success"`
	Document *models.Document `json:"document"`
}

type messagesResponse struct {
	Success  bool          `json:"success"`
	Messages []models.Turn `json:"messages"`
}

type searchResponse struct {
	Success bool                `json:"success"`
	Results []elasticsearch.Hit `json:"results"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

// writeError maps err to a status. Internal causes are logged and replaced
// by generic.
func writeError(w http.ResponseWriter, err error, generic string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: notFoundMessage})
	case errors.Is(err, models.ErrPayloadTooLarge), errors.As(err, &maxBytes):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "File too large"})
	case errors.Is(err, models.ErrUnsupportedType):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Unsupported file type"})
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrExtractionFailed):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrBusy):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "A question about this document is already being answered"})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: generic})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, ownerID string) {
	const generic = "Failed to process document"
	maxBytes := s.uploader.MaxUploadBytes()

	if r.ContentLength > maxBytes+multipartOverhead {
		writeError(w, models.ErrPayloadTooLarge, generic)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, err, generic)
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No file uploaded"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		writeError(w, fmt.Errorf("failed to read upload: %w", err), generic)
		return
	}

	result, err := s.uploader.Upload(r.Context(), ingestion.Upload{
		OwnerID:  ownerID,
		FileName: header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		writeError(w, err, generic)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Success:   true,
		Document:  result.Document,
		Summary:   result.Summary.Text,
		Truncated: result.Summary.Truncated,
		Fallback:  result.Summary.Fallback,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}
	if req.Question == "" || req.DocumentID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing question or document_id"})
		return
	}

	result, err := s.chat.Ask(r.Context(), ownerID, req.DocumentID, req.Question)
	if err != nil {
		writeError(w, err, "Failed to process question")
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Success:   true,
		Answer:    result.Answer,
		Citations: result.Citations,
		Truncated: result.Truncated,
		Fallback:  result.Fallback,
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request, ownerID string) {
	docs, err := s.chat.Documents(r.Context(), ownerID)
	if err != nil {
		writeError(w, err, "Failed to list documents")
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, documentsResponse{Success: true, Documents: docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request, ownerID string) {
	doc, err := s.chat.Document(r.Context(), ownerID, r.PathValue("id"))
	if err != nil {
		writeError(w, err, "Failed to retrieve document")
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{Success: true, Document: doc})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request, ownerID string) {
	data, doc, err := s.chat.File(r.Context(), ownerID, r.PathValue("id"))
	if err != nil {
		writeError(w, err, "Failed to retrieve file")
		return
	}

	w.Header().Set("Content-Type", doc.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": doc.FileName}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write file", "id", doc.ID, "error", err)
	}
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request, ownerID string) {
	turns, err := s.chat.History(r.Context(), ownerID, r.PathValue("id"))
	if err != nil {
		writeError(w, err, "Failed to retrieve messages")
		return
	}
	if turns == nil {
		turns = []models.Turn{}
	}
	writeJSON(w, http.StatusOK, messagesResponse{Success: true, Messages: turns})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, ownerID string) {
	if s.library == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Library search is disabled"})
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing q parameter"})
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be between 1 and 100"})
			return
		}
		limit = n
	}

	hits, err := s.library.Search(r.Context(), ownerID, query, limit)
	if err != nil {
		writeError(w, err, "Search failed")
		return
	}
	if hits == nil {
		hits = []elasticsearch.Hit{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Success: true, Results: hits})
}
