package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const checkpointFile = "_checkpoints.json"

// FileSink stores each dataset as one JSON document keyed by record key
type FileSink struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

var _ Sink = (*FileSink)(nil)

type storedRecord struct {
	Payload    json.RawMessage `json:"payload"`
	ObservedAt time.Time       `json:"observedAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// NewFileSink creates a sink writing into dir
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir, now: time.Now}
}

// Upsert merges records into the dataset document
func (f *FileSink) Upsert(_ context.Context, dataset string, records []Record) (int64, error) {
	if err := validateName(dataset); err != nil {
		return 0, err
	}
	if err := validateRecords(records); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.datasetPath(dataset)
	existing := make(map[string]storedRecord)
	if err := readJSON(path, &existing); err != nil {
		return 0, fmt.Errorf("failed to read dataset %s: %w", dataset, err)
	}

	now := f.now().UTC()
	for _, r := range records {
		existing[r.Key] = storedRecord{Payload: r.Payload, ObservedAt: r.ObservedAt.UTC(), UpdatedAt: now}
	}

	if err := writeJSON(path, existing); err != nil {
		return 0, fmt.Errorf("failed to write dataset %s: %w", dataset, err)
	}
	return int64(len(records)), nil
}

// Records returns every record of a dataset keyed by record key
func (f *FileSink) Records(dataset string) (map[string]Record, error) {
	if err := validateName(dataset); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	stored := make(map[string]storedRecord)
	if err := readJSON(f.datasetPath(dataset), &stored); err != nil {
		return nil, err
	}
	out := make(map[string]Record, len(stored))
	for key, r := range stored {
		out[key] = Record{Key: key, Payload: r.Payload, ObservedAt: r.ObservedAt}
	}
	return out, nil
}

// Checkpoint returns the stored checkpoint for key
func (f *FileSink) Checkpoint(_ context.Context, key string) (string, error) {
	if err := validateName(key); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	checkpoints := make(map[string]string)
	if err := readJSON(filepath.Join(f.dir, checkpointFile), &checkpoints); err != nil {
		return "", fmt.Errorf("failed to read checkpoints: %w", err)
	}
	return checkpoints[key], nil
}

// SetCheckpoint stores the checkpoint for key
func (f *FileSink) SetCheckpoint(_ context.Context, key, value string) error {
	if err := validateName(key); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	path := filepath.Join(f.dir, checkpointFile)
	checkpoints := make(map[string]string)
	if err := readJSON(path, &checkpoints); err != nil {
		return fmt.Errorf("failed to read checkpoints: %w", err)
	}
	checkpoints[key] = value
	if err := writeJSON(path, checkpoints); err != nil {
		return fmt.Errorf("failed to write checkpoints: %w", err)
	}
	return nil
}

func (f *FileSink) datasetPath(dataset string) string {
	return filepath.Join(f.dir, dataset+".json")
}

// readJSON decodes path into v. A missing file leaves v untouched.
func readJSON(path string, v any) error {
	// #nosec G304 -- path is built from validated names
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// writeJSON writes v to a temporary file and renames it over path
func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return err
	}
	return nil
}
