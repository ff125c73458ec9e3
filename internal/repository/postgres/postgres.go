// Package postgres implements the repository on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mfenderov/citedoc/internal/repository"
	"github.com/mfenderov/citedoc/internal/repository/postgres/migrations"
	"github.com/mfenderov/citedoc/pkg/models"
)

var _ repository.Repository = (*DB)(nil)

// DB wraps the database connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New connects to connString and applies pending migrations.
func New(ctx context.Context, connString string) (*DB, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	config.MaxConns = 10
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{pool: pool}
	if err := db.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

func (db *DB) migrate(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var currentVersion int
	if err := db.pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	entries, err := fs.ReadDir(migrations.FS, ".")
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
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		err = pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(content)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
	}
	return nil
}

// CreateDocument inserts a document row.
func (db *DB) CreateDocument(ctx context.Context, doc *models.Document) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO documents (id, owner_id, file_name, mime_type, size_bytes, page_count, summary, storage_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, doc.ID, doc.OwnerID, doc.FileName, doc.MIMEType, doc.SizeBytes, doc.PageCount,
		doc.Summary, doc.StorageKey, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// UpdateSummary sets the summary of a document.
func (db *DB) UpdateSummary(ctx context.Context, id, summary string) error {
	if uuid.Validate(id) != nil {
		return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	tag, err := db.pool.Exec(ctx, `UPDATE documents SET summary = $1 WHERE id = $2`, summary, id)
	if err != nil {
		return fmt.Errorf("failed to update summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	return nil
}

const documentColumns = `id::text, owner_id, file_name, mime_type, size_bytes, page_count, summary, storage_key, created_at`

// GetDocument returns a document owned by ownerID.
func (db *DB) GetDocument(ctx context.Context, ownerID, id string) (*models.Document, error) {
	// Malformed ids cannot exist; skip the round trip and the cast error.
	if uuid.Validate(id) != nil {
		return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}

	row := db.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 AND owner_id = $2`, id, ownerID)

	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns the documents of ownerID, newest first.
func (db *DB) ListDocuments(ctx context.Context, ownerID string) ([]models.Document, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE owner_id = $1 ORDER BY created_at DESC, id`, ownerID)
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
func (db *DB) AppendTurn(ctx context.Context, ownerID, documentID string, turn *models.Turn) error {
	if uuid.Validate(documentID) != nil {
		return fmt.Errorf("document %s: %w", documentID, models.ErrNotFound)
	}
	citations, err := repository.EncodeCitations(turn.Citations)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		conversationID, err := conversation(ctx, tx, ownerID, documentID, true)
		if err != nil {
			return err
		}

		id := uuid.NewString()
		var createdAt time.Time
		err = tx.QueryRow(ctx, `
			INSERT INTO messages (id, conversation_id, question, answer, citations, truncated)
			VALUES ($1, $2, $3, $4, $5::jsonb, $6)
			RETURNING created_at
		`, id, conversationID, turn.Question, turn.Answer, citations, turn.Truncated).Scan(&createdAt)
		if err != nil {
			return fmt.Errorf("failed to append turn: %w", err)
		}

		turn.ID = id
		turn.ConversationID = conversationID
		turn.CreatedAt = createdAt
		return nil
	})
}

// ListTurns returns the turns of the (document, owner) conversation in
// arrival order.
func (db *DB) ListTurns(ctx context.Context, ownerID, documentID string) ([]models.Turn, error) {
	if uuid.Validate(documentID) != nil {
		return nil, fmt.Errorf("document %s: %w", documentID, models.ErrNotFound)
	}
	conversationID, err := conversation(ctx, db.pool, ownerID, documentID, false)
	if err != nil {
		return nil, err
	}
	if conversationID == "" {
		return nil, nil
	}

	rows, err := db.pool.Query(ctx, `
		SELECT id::text, conversation_id::text, question, answer, citations, truncated, created_at
		FROM messages WHERE conversation_id = $1 ORDER BY seq
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var turn models.Turn
		var citations []byte
		if err := rows.Scan(&turn.ID, &turn.ConversationID, &turn.Question, &turn.Answer,
			&citations, &turn.Truncated, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		if turn.Citations, err = repository.DecodeCitations(citations); err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func conversation(ctx context.Context, q querier, ownerID, documentID string, create bool) (string, error) {
	var exists int
	err := q.QueryRow(ctx,
		`SELECT 1 FROM documents WHERE id = $1 AND owner_id = $2`, documentID, ownerID).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("document %s: %w", documentID, models.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve document: %w", err)
	}

	if !create {
		var id string
		err = q.QueryRow(ctx,
			`SELECT id::text FROM conversations WHERE document_id = $1 AND owner_id = $2`,
			documentID, ownerID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to resolve conversation: %w", err)
		}
		return id, nil
	}

	// The no-op update makes RETURNING yield the existing row on conflict.
	var id string
	err = q.QueryRow(ctx, `
		INSERT INTO conversations (id, document_id, owner_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (document_id, owner_id) DO UPDATE SET owner_id = EXCLUDED.owner_id
		RETURNING id::text
	`, uuid.NewString(), documentID, ownerID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}
	return id, nil
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	var doc models.Document
	if err := row.Scan(&doc.ID, &doc.OwnerID, &doc.FileName, &doc.MIMEType, &doc.SizeBytes,
		&doc.PageCount, &doc.Summary, &doc.StorageKey, &doc.CreatedAt); err != nil {
		return nil, err
	}
	return &doc, nil
}
