// Package repository defines persistence for document metadata and
// conversation history.
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mfenderov/citedoc/pkg/models"
)

// Repository stores document rows and conversation turns. Every read is
// scoped to an owner; documents of other owners are reported as not found.
type Repository interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	UpdateSummary(ctx context.Context, id, summary string) error
	GetDocument(ctx context.Context, ownerID, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, ownerID string) ([]models.Document, error)

	// AppendTurn adds a turn to the (document, owner) conversation, creating
	// the conversation on first use. It fills turn.ID, turn.ConversationID
	// and turn.CreatedAt.
	AppendTurn(ctx context.Context, ownerID, documentID string, turn *models.Turn) error
	ListTurns(ctx context.Context, ownerID, documentID string) ([]models.Turn, error)

	Close() error
}

// EncodeCitations serializes citations for a text/JSON column. An empty list
// is stored as SQL-friendly "[]".
func EncodeCitations(citations []models.Citation) (string, error) {
	if len(citations) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(citations)
	if err != nil {
		return "", fmt.Errorf("failed to marshal citations: %w", err)
	}
	return string(data), nil
}

// DecodeCitations reverses EncodeCitations. Empty input yields nil.
func DecodeCitations(data []byte) ([]models.Citation, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var citations []models.Citation
	if err := json.Unmarshal(data, &citations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal citations: %w", err)
	}
	if len(citations) == 0 {
		return nil, nil
	}
	return citations, nil
}
