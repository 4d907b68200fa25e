package status

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on the shared Postgres database. The schema is
// owned by the migrate command.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store backed by pool
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Load reads every row of the task_status table
func (p *PostgresStore) Load(ctx context.Context) (map[string]*TaskStatus, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT task_name, last_run, success, last_success, last_error, consecutive_failures
		FROM task_status`)
	if err != nil {
		return map[string]*TaskStatus{}, fmt.Errorf("%w: failed to query task status: %w", ErrStoreUnavailable, err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*TaskStatus, error) {
		var st TaskStatus
		err := row.Scan(&st.TaskName, &st.LastRunAt, &st.Success, &st.LastSuccessAt, &st.LastError, &st.ConsecutiveFailures)
		return &st, err
	})
	if err != nil {
		return map[string]*TaskStatus{}, fmt.Errorf("%w: failed to read task status: %w", ErrStoreUnavailable, err)
	}

	result := make(map[string]*TaskStatus, len(records))
	for _, st := range records {
		st.normalize(st.TaskName)
		result[st.TaskName] = st
	}
	return result, nil
}

// Save replaces all rows in a single transaction
func (p *PostgresStore) Save(ctx context.Context, statuses map[string]*TaskStatus) error {
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM task_status`); err != nil {
			return fmt.Errorf("failed to clear task status: %w", err)
		}

		batch := &pgx.Batch{}
		now := time.Now().UTC()
		for _, name := range SortedNames(statuses) {
			st := statuses[name]
			if st == nil {
				continue
			}
			batch.Queue(`
				INSERT INTO task_status
					(task_name, last_run, success, last_success, last_error, consecutive_failures, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				name, st.LastRunAt, st.Success, st.LastSuccessAt, st.LastError, st.ConsecutiveFailures, now)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to write task status: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}
