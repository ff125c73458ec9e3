// Package watcher uploads documents dropped into a directory tree.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mfenderov/citedoc/internal/extract"
	"github.com/mfenderov/citedoc/internal/ingestion"
)

// Config holds watcher configuration.
type Config struct {
	Dir         string        // watched recursively
	Debounce    time.Duration // coalesce rapid write bursts
	InitialScan bool          // handle files already present at start
}

// Handler processes one settled file.
type Handler func(ctx context.Context, path string) error

// Watch blocks until ctx is cancelled, calling handle for each new or
// changed document once its events have settled. Handler errors are logged.
func Watch(ctx context.Context, cfg Config, handle Handler) error {
	if cfg.Dir == "" {
		return errors.New("watch directory is required")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	pending := make(map[string]struct{})

	err = filepath.WalkDir(cfg.Dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return w.Add(path)
		}
		if cfg.InitialScan && extract.SupportedExtension(path) {
			pending[path] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", cfg.Dir, err)
	}

	slog.Info("watching directory", "dir", cfg.Dir, "debounce", cfg.Debounce)

	timer := time.NewTimer(cfg.Debounce)
	if len(pending) == 0 {
		timer.Stop()
	}

	flush := func() {
		for path := range pending {
			delete(pending, path)
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			if err := handle(ctx, path); err != nil {
				slog.Error("failed to process file", "path", path, "error", err)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			if e.Has(fsnotify.Create) {
				if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
					if err := w.Add(e.Name); err != nil {
						slog.Warn("failed to watch new directory", "path", e.Name, "error", err)
					}
					continue
				}
			}
			if !extract.SupportedExtension(e.Name) {
				continue
			}
			if e.Has(fsnotify.Create) || e.Has(fsnotify.Write) || e.Has(fsnotify.Rename) {
				pending[e.Name] = struct{}{}
				timer.Reset(cfg.Debounce)
			}

		case <-timer.C:
			flush()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

// Uploader ingests files.
type Uploader interface {
	Upload(ctx context.Context, upload ingestion.Upload) (*ingestion.Result, error)
}

// UploadHandler returns a Handler that uploads each file for ownerID.
func UploadHandler(uploader Uploader, ownerID string) Handler {
	return func(ctx context.Context, path string) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		result, err := uploader.Upload(ctx, ingestion.Upload{
			OwnerID:  ownerID,
			FileName: filepath.Base(path),
			Data:     data,
		})
		if err != nil {
			return err
		}

		slog.Info("document uploaded", "path", path, "id", result.Document.ID)
		return nil
	}
}
