package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink stores records and checkpoints in the shared Postgres database
type PostgresSink struct {
	pool *pgxpool.Pool
}

var _ Sink = (*PostgresSink)(nil)

// NewPostgresSink creates a PostgresSink with the given connection pool.
// The caller is responsible for closing the pool when done.
func NewPostgresSink(pool *pgxpool.Pool) (*PostgresSink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgx pool is required")
	}
	return &PostgresSink{pool: pool}, nil
}

// Upsert writes records in one transaction, replacing rows with the same key
func (p *PostgresSink) Upsert(ctx context.Context, dataset string, records []Record) (int64, error) {
	if err := validateName(dataset); err != nil {
		return 0, err
	}
	if err := validateRecords(records); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	var written int64
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range records {
			batch.Queue(`
				INSERT INTO sink_record (dataset, record_key, payload, observed_at, updated_at)
				VALUES ($1, $2, $3, $4, now())
				ON CONFLICT (dataset, record_key)
				DO UPDATE SET payload = EXCLUDED.payload,
				              observed_at = EXCLUDED.observed_at,
				              updated_at = now()`,
				dataset, r.Key, string(r.Payload), r.ObservedAt.UTC())
		}

		results := tx.SendBatch(ctx, batch)
		for range records {
			tag, err := results.Exec()
			if err != nil {
				_ = results.Close()
				return err
			}
			written += tag.RowsAffected()
		}
		return results.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upsert records into %s: %w", dataset, err)
	}
	return written, nil
}

// Checkpoint returns the stored checkpoint for key
func (p *PostgresSink) Checkpoint(ctx context.Context, key string) (string, error) {
	if err := validateName(key); err != nil {
		return "", err
	}

	var value string
	err := p.pool.QueryRow(ctx, `SELECT value FROM sink_checkpoint WHERE checkpoint_key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read checkpoint %s: %w", key, err)
	}
	return value, nil
}

// SetCheckpoint stores the checkpoint for key
func (p *PostgresSink) SetCheckpoint(ctx context.Context, key, value string) error {
	if err := validateName(key); err != nil {
		return err
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO sink_checkpoint (checkpoint_key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (checkpoint_key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to write checkpoint %s: %w", key, err)
	}
	return nil
}
