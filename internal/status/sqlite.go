package status

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tradelens/ingestor/database"
)

// SQLiteStore implements Store on a local SQLite database
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database at path and applies the status schema
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := database.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := database.MigrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Load reads every row of the task_status table
func (s *SQLiteStore) Load(ctx context.Context) (map[string]*TaskStatus, error) {
	result := make(map[string]*TaskStatus)

	rows, err := s.db.QueryContext(ctx, `
		SELECT task_name, last_run, success, last_success, last_error, consecutive_failures
		FROM task_status`)
	if err != nil {
		return result, fmt.Errorf("%w: failed to query task status: %w", ErrStoreUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	loaded := make(map[string]*TaskStatus)
	for rows.Next() {
		var st TaskStatus
		var lastRun, lastSuccess sql.NullString
		if err := rows.Scan(&st.TaskName, &lastRun, &st.Success, &lastSuccess, &st.LastError, &st.ConsecutiveFailures); err != nil {
			return result, fmt.Errorf("%w: failed to scan task status: %w", ErrStoreUnavailable, err)
		}
		if st.LastRunAt, err = parseSQLiteTime(lastRun); err != nil {
			return result, fmt.Errorf("%w: invalid last_run for %s: %w", ErrStoreUnavailable, st.TaskName, err)
		}
		if st.LastSuccessAt, err = parseSQLiteTime(lastSuccess); err != nil {
			return result, fmt.Errorf("%w: invalid last_success for %s: %w", ErrStoreUnavailable, st.TaskName, err)
		}
		st.normalize(st.TaskName)
		loaded[st.TaskName] = &st
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("%w: failed to read task status: %w", ErrStoreUnavailable, err)
	}

	return loaded, nil
}

// Save replaces all rows in a single transaction
func (s *SQLiteStore) Save(ctx context.Context, statuses map[string]*TaskStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_status`); err != nil {
		return fmt.Errorf("%w: failed to clear task status: %w", ErrStoreUnavailable, err)
	}

	for _, name := range SortedNames(statuses) {
		st := statuses[name]
		if st == nil {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO task_status (task_name, last_run, success, last_success, last_error, consecutive_failures)
			VALUES (?, ?, ?, ?, ?, ?)`,
			name, formatSQLiteTime(st.LastRunAt), st.Success, formatSQLiteTime(st.LastSuccessAt),
			st.LastError, st.ConsecutiveFailures)
		if err != nil {
			return fmt.Errorf("%w: failed to write status for %s: %w", ErrStoreUnavailable, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit task status: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatSQLiteTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseSQLiteTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
