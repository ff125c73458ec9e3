// Package chat answers questions about stored documents and keeps the
// conversation log.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mfenderov/citedoc/internal/qa"
	"github.com/mfenderov/citedoc/pkg/models"
)

// Documents resolves documents for an owner.
type Documents interface {
	Load(ctx context.Context, ownerID, id string) (*models.Document, error)
	Get(ctx context.Context, ownerID, id string) (*models.Document, error)
	File(ctx context.Context, ownerID, id string) ([]byte, *models.Document, error)
	List(ctx context.Context, ownerID string) ([]models.Document, error)
}

// Log records conversation turns.
type Log interface {
	AppendTurn(ctx context.Context, ownerID, documentID string, turn *models.Turn) error
	ListTurns(ctx context.Context, ownerID, documentID string) ([]models.Turn, error)
}

// Answerer is the grounded question-answering engine.
type Answerer interface {
	Answer(ctx context.Context, question, documentText string) (*qa.Result, error)
	Summarize(ctx context.Context, documentText string) (*qa.Summary, error)
}

// Service serves questions. At most one question per (owner, document) is
// in flight; a second one is rejected with models.ErrBusy.
type Service struct {
	docs   Documents
	log    Log
	engine Answerer

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New creates a chat service.
func New(docs Documents, log Log, engine Answerer) *Service {
	return &Service{
		docs:     docs,
		log:      log,
		engine:   engine,
		inflight: make(map[string]struct{}),
	}
}

func (s *Service) acquire(ownerID, documentID string) (func(), error) {
	key := ownerID + "\x00" + documentID

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return nil, fmt.Errorf("%w: a question about this document is already being answered", models.ErrBusy)
	}
	s.inflight[key] = struct{}{}

	return func() {
		s.mu.Lock()
		delete(s.inflight, key)
		s.mu.Unlock()
	}, nil
}

// Ask answers question about the owner's document and records the turn.
// Failing to record the turn is logged and does not fail the answer.
func (s *Service) Ask(ctx context.Context, ownerID, documentID, question string) (*qa.Result, error) {
	if strings.TrimSpace(question) == "" || documentID == "" {
		return nil, fmt.Errorf("%w: question and document_id are required", models.ErrInvalidInput)
	}

	release, err := s.acquire(ownerID, documentID)
	if err != nil {
		return nil, err
	}
	defer release()

	doc, err := s.docs.Load(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Answer(ctx, question, doc.Text)
	if err != nil {
		return nil, err
	}

	turn := &models.Turn{
		Question:  question,
		Answer:    result.Answer,
		Citations: result.Citations,
		Truncated: result.Truncated,
	}
	if err := s.log.AppendTurn(ctx, ownerID, documentID, turn); err != nil {
		slog.Error("failed to record conversation turn", "document", documentID, "error", err)
	}

	slog.Debug("question answered",
		"document", documentID,
		"citations", len(result.Citations),
		"truncated", result.Truncated,
		"fallback", result.Fallback)
	return result, nil
}

// Summarize regenerates the summary of a stored document without saving it.
func (s *Service) Summarize(ctx context.Context, ownerID, documentID string) (*qa.Summary, error) {
	doc, err := s.docs.Load(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}
	return s.engine.Summarize(ctx, doc.Text)
}

// History returns the conversation turns in arrival order.
func (s *Service) History(ctx context.Context, ownerID, documentID string) ([]models.Turn, error) {
	return s.log.ListTurns(ctx, ownerID, documentID)
}

// Document returns document metadata.
func (s *Service) Document(ctx context.Context, ownerID, documentID string) (*models.Document, error) {
	return s.docs.Get(ctx, ownerID, documentID)
}

// Documents lists the owner's documents.
func (s *Service) Documents(ctx context.Context, ownerID string) ([]models.Document, error) {
	return s.docs.List(ctx, ownerID)
}

// File returns the original bytes of a document for a viewer.
func (s *Service) File(ctx context.Context, ownerID, documentID string) ([]byte, *models.Document, error) {
	return s.docs.File(ctx, ownerID, documentID)
}
