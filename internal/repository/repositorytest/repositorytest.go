// Package repositorytest holds behaviour tests shared by every Repository
// implementation.
package repositorytest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfenderov/citedoc/internal/repository"
	"github.com/mfenderov/citedoc/pkg/models"
)

// Run exercises repo. newRepo must return an empty repository.
func Run(t *testing.T, newRepo func(t *testing.T) repository.Repository) {
	t.Run("document lifecycle", func(t *testing.T) {
		testDocumentLifecycle(t, newRepo(t))
	})
	t.Run("owner scoping", func(t *testing.T) {
		testOwnerScoping(t, newRepo(t))
	})
	t.Run("conversation turns", func(t *testing.T) {
		testConversationTurns(t, newRepo(t))
	})
	t.Run("missing document", func(t *testing.T) {
		testMissingDocument(t, newRepo(t))
	})
}

// NewDocument returns a document row ready for CreateDocument.
func NewDocument(ownerID, fileName string) *models.Document {
	id := uuid.NewString()
	return &models.Document{
		ID:         id,
		OwnerID:    ownerID,
		FileName:   fileName,
		MIMEType:   "application/pdf",
		SizeBytes:  1024,
		PageCount:  3,
		StorageKey: "documents/" + id,
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
}

func testDocumentLifecycle(t *testing.T, repo repository.Repository) {
	ctx := context.Background()

	doc := NewDocument("alice", "report.pdf")
	require.NoError(t, repo.CreateDocument(ctx, doc))

	got, err := repo.GetDocument(ctx, "alice", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, "report.pdf", got.FileName)
	assert.Equal(t, "application/pdf", got.MIMEType)
	assert.Equal(t, int64(1024), got.SizeBytes)
	assert.Equal(t, 3, got.PageCount)
	assert.Equal(t, doc.StorageKey, got.StorageKey)
	assert.Empty(t, got.Summary)
	assert.WithinDuration(t, doc.CreatedAt, got.CreatedAt, time.Second)

	require.NoError(t, repo.UpdateSummary(ctx, doc.ID, "An annual report."))
	got, err = repo.GetDocument(ctx, "alice", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "An annual report.", got.Summary)

	second := NewDocument("alice", "notes.docx")
	second.CreatedAt = doc.CreatedAt.Add(time.Minute)
	require.NoError(t, repo.CreateDocument(ctx, second))

	docs, err := repo.ListDocuments(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, second.ID, docs[0].ID, "newest first")
	assert.Equal(t, doc.ID, docs[1].ID)
}

func testOwnerScoping(t *testing.T, repo repository.Repository) {
	ctx := context.Background()

	doc := NewDocument("alice", "private.pdf")
	require.NoError(t, repo.CreateDocument(ctx, doc))

	_, err := repo.GetDocument(ctx, "bob", doc.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	docs, err := repo.ListDocuments(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, docs)

	err = repo.AppendTurn(ctx, "bob", doc.ID, &models.Turn{Question: "q", Answer: "a"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = repo.ListTurns(ctx, "bob", doc.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func testConversationTurns(t *testing.T, repo repository.Repository) {
	ctx := context.Background()

	doc := NewDocument("alice", "report.pdf")
	require.NoError(t, repo.CreateDocument(ctx, doc))

	turns, err := repo.ListTurns(ctx, "alice", doc.ID)
	require.NoError(t, err)
	assert.Empty(t, turns)

	first := &models.Turn{
		Question:  "What is the capital?",
		Answer:    "Paris, see Page 3 and Section 2.1.",
		Citations: []models.Citation{models.PageCitation(3, "Paris"), {Text: "Section 2.1"}},
	}
	require.NoError(t, repo.AppendTurn(ctx, "alice", doc.ID, first))
	assert.NotEmpty(t, first.ID)
	assert.NotEmpty(t, first.ConversationID)
	assert.False(t, first.CreatedAt.IsZero())

	second := &models.Turn{Question: "Anything else?", Answer: "Not found.", Truncated: true}
	require.NoError(t, repo.AppendTurn(ctx, "alice", doc.ID, second))
	assert.Equal(t, first.ConversationID, second.ConversationID, "one conversation per document and owner")

	turns, err = repo.ListTurns(ctx, "alice", doc.ID)
	require.NoError(t, err)
	require.Len(t, turns, 2)

	assert.Equal(t, first.ID, turns[0].ID)
	assert.Equal(t, "What is the capital?", turns[0].Question)
	assert.Equal(t, first.Citations, turns[0].Citations)
	assert.False(t, turns[0].Truncated)

	assert.Equal(t, second.ID, turns[1].ID)
	assert.Nil(t, turns[1].Citations)
	assert.True(t, turns[1].Truncated)
}

func testMissingDocument(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	id := uuid.NewString()

	_, err := repo.GetDocument(ctx, "alice", id)
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.ErrorIs(t, repo.UpdateSummary(ctx, id, "x"), models.ErrNotFound)
}
