package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/tradelens/ingestor/internal/config"
	"github.com/tradelens/ingestor/internal/sink"
	"github.com/tradelens/ingestor/internal/status"
)

// FileFactory creates components backed by the local filesystem: a JSON
// file or SQLite status store and a directory of JSON datasets.
type FileFactory struct {
	config *config.Config

	mu     sync.Mutex
	sqlite *status.SQLiteStore
}

var _ Factory = (*FileFactory)(nil)

// NewFileFactory creates a new file-based storage factory
func NewFileFactory(cfg *config.Config) (*FileFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	slog.Info("Creating file-based storage factory",
		"status_store", cfg.GetStatusStoreType(),
		"status_path", cfg.GetStatusStorePath(),
		"sink_dir", cfg.GetSinkDir(),
	)

	return &FileFactory{config: cfg}, nil
}

// CreateStatusStore creates a JSON file or SQLite status store
func (f *FileFactory) CreateStatusStore(ctx context.Context) (status.Store, error) {
	path := f.config.GetStatusStorePath()

	switch f.config.GetStatusStoreType() {
	case config.StoreTypeFile:
		slog.DebugContext(ctx, "Creating file status store", "path", path)
		return status.NewFileStore(path), nil
	case config.StoreTypeSQLite:
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.sqlite != nil {
			return f.sqlite, nil
		}

		slog.DebugContext(ctx, "Creating SQLite status store", "path", path)
		store, err := status.NewSQLiteStore(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite status store: %w", err)
		}
		f.sqlite = store
		return store, nil
	default:
		return nil, fmt.Errorf("status store type %s is not file based", f.config.GetStatusStoreType())
	}
}

// CreateSink creates a file sink, ensuring its directory exists
func (f *FileFactory) CreateSink(ctx context.Context) (sink.Sink, error) {
	if f.config.GetSinkType() != config.StoreTypeFile {
		return nil, fmt.Errorf("sink type %s is not file based", f.config.GetSinkType())
	}

	dir := f.config.GetSinkDir()
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create sink directory %s: %w", dir, err)
	}

	slog.DebugContext(ctx, "Creating file sink", "dir", dir)
	return sink.NewFileSink(dir), nil
}

// Cleanup closes the SQLite status store if one was opened
func (f *FileFactory) Cleanup() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sqlite == nil {
		return
	}
	if err := f.sqlite.Close(); err != nil {
		slog.Warn("Failed to close sqlite status store", "error", err)
	}
	f.sqlite = nil
}
