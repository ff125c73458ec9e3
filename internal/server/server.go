// Package server serves the document Q&A HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/mfenderov/citedoc/internal/elasticsearch"
	"github.com/mfenderov/citedoc/internal/ingestion"
	"github.com/mfenderov/citedoc/internal/qa"
	"github.com/mfenderov/citedoc/pkg/models"
)

// Config holds HTTP server configuration.
type Config struct {
	Addr         string
	UserHeader   string // header carrying the caller identity
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Uploader ingests uploaded files.
type Uploader interface {
	Upload(ctx context.Context, upload ingestion.Upload) (*ingestion.Result, error)
	MaxUploadBytes() int64
}

// Chat answers questions and serves stored documents.
type Chat interface {
	Ask(ctx context.Context, ownerID, documentID, question string) (*qa.Result, error)
	History(ctx context.Context, ownerID, documentID string) ([]models.Turn, error)
	Document(ctx context.Context, ownerID, documentID string) (*models.Document, error)
	Documents(ctx context.Context, ownerID string) ([]models.Document, error)
	File(ctx context.Context, ownerID, documentID string) ([]byte, *models.Document, error)
}

// Searcher searches the document library.
type Searcher interface {
	Search(ctx context.Context, ownerID, query string, limit int) ([]elasticsearch.Hit, error)
}

// Server is the HTTP API.
type Server struct {
	config   Config
	uploader Uploader
	chat     Chat
	library  Searcher // nil if library search disabled
	mux      *http.ServeMux
}

// New creates the HTTP API. library may be nil.
func New(config Config, uploader Uploader, chat Chat, library Searcher) *Server {
	if config.UserHeader == "" {
		config.UserHeader = "X-User-ID"
	}

	s := &Server{
		config:   config,
		uploader: uploader,
		chat:     chat,
		library:  library,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /api/documents", s.withOwner(s.handleUpload))
	s.mux.HandleFunc("GET /api/documents", s.withOwner(s.handleListDocuments))
	s.mux.HandleFunc("GET /api/documents/{id}", s.withOwner(s.handleGetDocument))
	s.mux.HandleFunc("GET /api/documents/{id}/file", s.withOwner(s.handleGetFile))
	s.mux.HandleFunc("GET /api/documents/{id}/messages", s.withOwner(s.handleMessages))
	s.mux.HandleFunc("POST /api/chat", s.withOwner(s.handleChat))
	s.mux.HandleFunc("GET /api/search", s.withOwner(s.handleSearch))

	return s
}

// Handler returns the root handler with request logging.
func (s *Server) Handler() http.Handler {
	return logRequests(s.mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", listener.Addr().String())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

type ownerHandler func(w http.ResponseWriter, r *http.Request, ownerID string)

// withOwner rejects requests without a caller identity.
func (s *Server) withOwner(next ownerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := r.Header.Get(s.config.UserHeader)
		if ownerID == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
			return
		}
		next(w, r, ownerID)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
