// Package storage creates the storage-dependent components of the ingestor.
// A factory hands out the status store and the sink as a family, so that
// components sharing a backend also share its connection pool.
package storage

import (
	"context"
	"fmt"

	"github.com/tradelens/ingestor/internal/config"
	"github.com/tradelens/ingestor/internal/sink"
	"github.com/tradelens/ingestor/internal/status"
)

//go:generate mockgen -destination=mocks/mock_factory.go -package=mocks -source=factory.go Factory

// Factory creates storage-dependent components.
type Factory interface {
	// CreateStatusStore creates the store holding per-task last-run records
	CreateStatusStore(ctx context.Context) (status.Store, error)

	// CreateSink creates the store tasks write their records and checkpoints to
	CreateSink(ctx context.Context) (sink.Sink, error)

	// Cleanup releases any resources held by this factory, such as a
	// connection pool or an open SQLite handle.
	Cleanup()
}

// NewStorageFactory returns a DatabaseFactory when any component is configured
// for PostgreSQL and a FileFactory otherwise.
func NewStorageFactory(ctx context.Context, cfg *config.Config, opts ...DatabaseFactoryOption) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if usesPostgres(cfg) {
		return NewDatabaseFactory(ctx, cfg, opts...)
	}
	return NewFileFactory(cfg)
}

func usesPostgres(cfg *config.Config) bool {
	return cfg.GetStatusStoreType() == config.StoreTypePostgres || cfg.GetSinkType() == config.StoreTypePostgres
}
