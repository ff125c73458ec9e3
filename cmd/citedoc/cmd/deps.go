package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mfenderov/citedoc/internal/chat"
	"github.com/mfenderov/citedoc/internal/config"
	"github.com/mfenderov/citedoc/internal/documents"
	"github.com/mfenderov/citedoc/internal/elasticsearch"
	"github.com/mfenderov/citedoc/internal/ingestion"
	"github.com/mfenderov/citedoc/internal/llm"
	"github.com/mfenderov/citedoc/internal/qa"
	"github.com/mfenderov/citedoc/internal/repository"
	"github.com/mfenderov/citedoc/internal/repository/postgres"
	"github.com/mfenderov/citedoc/internal/repository/sqlite"
	"github.com/mfenderov/citedoc/internal/storage"
)

// app holds the services shared by the commands.
type app struct {
	repo      repository.Repository
	docs      *documents.Store
	engine    *qa.Engine
	chat      *chat.Service
	ingestion *ingestion.Engine
	library   *elasticsearch.Library // nil if library search disabled
}

type searcher interface {
	Search(ctx context.Context, ownerID, query string, limit int) ([]elasticsearch.Hit, error)
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	oracle, err := llm.New(llm.Config{
		Provider:   cfg.Oracle.Provider,
		Model:      cfg.Oracle.Model,
		APIKey:     cfg.Oracle.APIKey,
		BaseURL:    cfg.Oracle.BaseURL,
		SocketPath: cfg.Oracle.SocketPath,
		Timeout:    cfg.Oracle.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle client: %w", err)
	}
	slog.Debug("oracle configured", "oracle", oracle.Name())

	storageClient, err := storage.New(storage.Config{
		Endpoint:        cfg.Storage.Endpoint,
		Bucket:          cfg.Storage.Bucket,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		UseSSL:          cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	if err := storageClient.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare bucket: %w", err)
	}

	repo, err := openRepository(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	library, err := newLibrary(ctx, cfg)
	if err != nil {
		repo.Close()
		return nil, err
	}

	a := &app{
		repo:    repo,
		docs:    documents.NewStore(storageClient, repo),
		engine:  qa.New(oracle, qa.Config{MaxDocumentChars: cfg.QA.MaxDocumentChars, MaxTokens: cfg.QA.MaxTokens}),
		library: library,
	}
	a.chat = chat.New(a.docs, repo, a.engine)
	a.ingestion = ingestion.New(a.docs, a.engine, a.indexer(), ingestion.Config{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})
	return a, nil
}

// Close releases the repository.
func (a *app) Close() {
	if err := a.repo.Close(); err != nil {
		slog.Warn("failed to close repository", "error", err)
	}
}

func (a *app) indexer() ingestion.Indexer {
	if a.library == nil {
		return nil
	}
	return a.library
}

func (a *app) searcher() searcher {
	if a.library == nil {
		return nil
	}
	return a.library
}

func openRepository(ctx context.Context, cfg config.Database) (repository.Repository, error) {
	switch cfg.Driver {
	case "postgres":
		db, err := postgres.New(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		return db, nil
	default:
		db, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		return db, nil
	}
}

// newLibrary returns nil when library search is disabled.
func newLibrary(ctx context.Context, cfg config.Config) (*elasticsearch.Library, error) {
	if !cfg.Elasticsearch.Enabled {
		return nil, nil
	}

	var embedder elasticsearch.Embedder
	dims := 0
	if cfg.Embeddings.Enabled {
		dmr, err := llm.NewDMR(llm.Config{
			SocketPath: cfg.Embeddings.SocketPath,
			Model:      cfg.Embeddings.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embeddings client: %w", err)
		}
		embedder = dmr
		dims = llm.EmbeddingDimensions(cfg.Embeddings.Model)
		slog.Info("embeddings enabled", "model", cfg.Embeddings.Model)
	}

	esClient, err := elasticsearch.New(elasticsearch.Config{
		Addresses:  cfg.Elasticsearch.Addresses,
		Index:      cfg.Elasticsearch.Index,
		Username:   cfg.Elasticsearch.Username,
		Password:   cfg.Elasticsearch.Password,
		Dimensions: dims,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}

	library := elasticsearch.NewLibrary(esClient, embedder)
	if err := library.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare index: %w", err)
	}
	return library, nil
}
