// Package database provides the embedded schema migrations for the Postgres
// and SQLite backends.
package database

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers the pgx5:// scheme
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql
var postgresFS embed.FS

//go:embed migrations/sqlite/*.sql
var sqliteFS embed.FS

const (
	postgresDir = "migrations/postgres"
	sqliteDir   = "migrations/sqlite"
)

// Migrator is the interface for the migration tooling.
type Migrator interface {
	Up() error
	Down() error
	Steps(int) error
	Version() (uint, bool, error)
	Close() (error, error)
}

// NewFromConnectionString returns a new Postgres migration instance for the
// given connection URL.
func NewFromConnectionString(connString string) (Migrator, error) {
	d, err := iofs.New(postgresFS, postgresDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", d, migrateURL(connString))
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// SQLiteMigrations returns the goose migration files for the SQLite status store.
func SQLiteMigrations() fs.FS {
	sub, err := fs.Sub(sqliteFS, sqliteDir)
	if err != nil {
		panic(err)
	}
	return sub
}

// PostgresMigrationCount returns the number of logical Postgres migrations.
func PostgresMigrationCount() int {
	names, err := fs.Glob(postgresFS, postgresDir+"/*.up.sql")
	if err != nil {
		return 0
	}
	return len(names)
}

// migrateURL rewrites a postgres:// URL into the pgx5:// scheme expected by the
// golang-migrate pgx driver.
func migrateURL(connString string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(connString, prefix) {
			return "pgx5://" + strings.TrimPrefix(connString, prefix)
		}
	}
	return connString
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
