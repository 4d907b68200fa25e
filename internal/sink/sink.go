// Package sink persists the records fetched by ingestion tasks into the
// shared store.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

//go:generate mockgen -destination=mocks/mock_sink.go -package=mocks -source=sink.go Sink

// ErrInvalidDataset is returned for dataset or checkpoint names that are not safe identifiers
var ErrInvalidDataset = errors.New("invalid dataset name")

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.:-]{0,127}$`)

// Record is one keyed item of a dataset. Writing a record with an existing key
// replaces it, so re-running a task over an overlapping window is harmless.
type Record struct {
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	ObservedAt time.Time       `json:"observedAt"`
}

// Writer upserts records into a dataset
type Writer interface {
	// Upsert writes records keyed by Record.Key and returns how many were written
	Upsert(ctx context.Context, dataset string, records []Record) (int64, error)
}

// Checkpoints stores opaque cursor values for tasks that track their own progress
type Checkpoints interface {
	// Checkpoint returns the stored value for key, or "" when none is stored
	Checkpoint(ctx context.Context, key string) (string, error)

	// SetCheckpoint stores value for key
	SetCheckpoint(ctx context.Context, key, value string) error
}

// Sink is the store the ingestion tasks write to
type Sink interface {
	Writer
	Checkpoints
}

func validateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidDataset, name)
	}
	return nil
}

func validateRecords(records []Record) error {
	for i, r := range records {
		if r.Key == "" {
			return fmt.Errorf("record %d has an empty key", i)
		}
		if !json.Valid(r.Payload) {
			return fmt.Errorf("record %q has an invalid JSON payload", r.Key)
		}
	}
	return nil
}
