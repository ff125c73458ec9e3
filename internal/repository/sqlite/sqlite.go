// Package sqlite implements the repository on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/mfenderov/citedoc/internal/repository"
	"github.com/mfenderov/citedoc/internal/repository/sqlite/migrations"
	"github.com/mfenderov/citedoc/pkg/models"
)

var _ repository.Repository = (*Store)(nil)

// Store is a SQLite-backed repository.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path and applies pending migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var currentVersion int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_init.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", name, err)
		}
	}
	return nil
}

// CreateDocument inserts a document row.
func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, owner_id, file_name, mime_type, size_bytes, page_count, summary, storage_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.OwnerID, doc.FileName, doc.MIMEType, doc.SizeBytes, doc.PageCount,
		doc.Summary, doc.StorageKey, doc.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// UpdateSummary sets the summary of a document.
func (s *Store) UpdateSummary(ctx context.Context, id, summary string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE documents SET summary = ? WHERE id = ?`, summary, id)
	if err != nil {
		return fmt.Errorf("failed to update summary: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update summary: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	return nil
}

const documentColumns = `id, owner_id, file_name, mime_type, size_bytes, page_count, summary, storage_key, created_at`

// GetDocument returns a document owned by ownerID.
func (s *Store) GetDocument(ctx context.Context, ownerID, id string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ? AND owner_id = ?`, id, ownerID)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns the documents of ownerID, newest first.
func (s *Store) ListDocuments(ctx context.Context, ownerID string) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE owner_id = ? ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// AppendTurn stores a turn in the (document, owner) conversation.
func (s *Store) AppendTurn(ctx context.Context, ownerID, documentID string, turn *models.Turn) error {
	citations, err := repository.EncodeCitations(turn.Citations)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	conversationID, err := s.conversation(ctx, tx, ownerID, documentID, true)
	if err != nil {
		return err
	}

	turn.ID = uuid.NewString()
	turn.ConversationID = conversationID
	turn.CreatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, question, answer, citations, truncated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, turn.ID, turn.ConversationID, turn.Question, turn.Answer, citations, turn.Truncated, turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}

	return tx.Commit()
}

// ListTurns returns the turns of the (document, owner) conversation in
// arrival order.
func (s *Store) ListTurns(ctx context.Context, ownerID, documentID string) ([]models.Turn, error) {
	conversationID, err := s.conversation(ctx, s.db, ownerID, documentID, false)
	if err != nil {
		return nil, err
	}
	if conversationID == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, question, answer, citations, truncated, created_at
		FROM messages WHERE conversation_id = ? ORDER BY seq
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var turn models.Turn
		var citations string
		if err := rows.Scan(&turn.ID, &turn.ConversationID, &turn.Question, &turn.Answer,
			&citations, &turn.Truncated, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		if turn.Citations, err = repository.DecodeCitations([]byte(citations)); err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// conversation resolves the conversation id for (document, owner). The
// document must belong to the owner. With create unset a missing
// conversation yields "".
func (s *Store) conversation(ctx context.Context, q querier, ownerID, documentID string, create bool) (string, error) {
	var exists int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE id = ? AND owner_id = ?`, documentID, ownerID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("document %s: %w", documentID, models.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve document: %w", err)
	}

	var id string
	err = q.QueryRowContext(ctx,
		`SELECT id FROM conversations WHERE document_id = ? AND owner_id = ?`, documentID, ownerID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to resolve conversation: %w", err)
	}
	if !create {
		return "", nil
	}

	id = uuid.NewString()
	_, err = q.ExecContext(ctx, `
		INSERT INTO conversations (id, document_id, owner_id, created_at) VALUES (?, ?, ?, ?)
	`, id, documentID, ownerID, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}
	return id, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*models.Document, error) {
	var doc models.Document
	if err := row.Scan(&doc.ID, &doc.OwnerID, &doc.FileName, &doc.MIMEType, &doc.SizeBytes,
		&doc.PageCount, &doc.Summary, &doc.StorageKey, &doc.CreatedAt); err != nil {
		return nil, err
	}
	return &doc, nil
}
