package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradelens/ingestor/database"
	"github.com/tradelens/ingestor/internal/config"
	"github.com/tradelens/ingestor/internal/db"
	"github.com/tradelens/ingestor/internal/sink"
	"github.com/tradelens/ingestor/internal/status"
)

// DatabaseFactory creates PostgreSQL-backed components. Components configured
// for local storage are delegated to a FileFactory.
type DatabaseFactory struct {
	config  *config.Config
	pool    *pgxpool.Pool
	ownPool bool
	migrate bool
	files   *FileFactory
}

var _ Factory = (*DatabaseFactory)(nil)

// DatabaseFactoryOption is a functional option for configuring the DatabaseFactory
type DatabaseFactoryOption func(*DatabaseFactory)

// WithPool makes the factory use an existing pool instead of opening one.
// The caller keeps ownership of the pool.
func WithPool(pool *pgxpool.Pool) DatabaseFactoryOption {
	return func(f *DatabaseFactory) {
		f.pool = pool
	}
}

// WithoutMigrations skips applying pending migrations when the factory is created
func WithoutMigrations() DatabaseFactoryOption {
	return func(f *DatabaseFactory) {
		f.migrate = false
	}
}

// NewDatabaseFactory creates a database-backed storage factory. Unless
// disabled, pending schema migrations are applied before the pool is opened.
func NewDatabaseFactory(ctx context.Context, cfg *config.Config, opts ...DatabaseFactoryOption) (*DatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.Database == nil {
		return nil, fmt.Errorf("database configuration is required for postgres storage")
	}

	factory := &DatabaseFactory{
		config:  cfg,
		migrate: true,
	}
	for _, opt := range opts {
		opt(factory)
	}

	files, err := NewFileFactory(cfg)
	if err != nil {
		return nil, err
	}
	factory.files = files

	slog.InfoContext(ctx, "Creating database-backed storage factory", "migrate", factory.migrate)

	if factory.migrate {
		connStr, err := cfg.Database.GetConnectionString()
		if err != nil {
			return nil, fmt.Errorf("failed to build database connection string: %w", err)
		}
		if err := database.MigrateUp(connStr); err != nil {
			return nil, err
		}
	}

	if factory.pool == nil {
		pool, err := db.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to create database connection pool: %w", err)
		}
		factory.pool = pool
		factory.ownPool = true
	}

	return factory, nil
}

// CreateStatusStore creates a PostgreSQL status store, or a local one when
// the status store is not configured for postgres
func (d *DatabaseFactory) CreateStatusStore(ctx context.Context) (status.Store, error) {
	if d.config.GetStatusStoreType() != config.StoreTypePostgres {
		return d.files.CreateStatusStore(ctx)
	}
	slog.DebugContext(ctx, "Creating postgres status store")
	return status.NewPostgresStore(d.pool), nil
}

// CreateSink creates a PostgreSQL sink, or a file sink when the sink is not
// configured for postgres
func (d *DatabaseFactory) CreateSink(ctx context.Context) (sink.Sink, error) {
	if d.config.GetSinkType() != config.StoreTypePostgres {
		return d.files.CreateSink(ctx)
	}
	slog.DebugContext(ctx, "Creating postgres sink")
	s, err := sink.NewPostgresSink(d.pool)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres sink: %w", err)
	}
	return s, nil
}

// Cleanup closes the connection pool if the factory opened it
func (d *DatabaseFactory) Cleanup() {
	d.files.Cleanup()
	if d.pool != nil && d.ownPool {
		slog.Info("Closing database connection pool")
		d.pool.Close()
	}
}
