package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultStatusFile is the default location of the status document
	DefaultStatusFile = "./data/status.json"
)

// FileStore implements Store using a single JSON document on the local filesystem
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a new file-based status store writing to path
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultStatusFile
	}
	return &FileStore{path: path}
}

// Path returns the location of the status document
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the status document. A missing file is treated as empty state.
func (f *FileStore) Load(_ context.Context) (map[string]*TaskStatus, error) {
	result := make(map[string]*TaskStatus)

	// #nosec G304 -- path comes from trusted configuration
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result, nil
		}
		return result, fmt.Errorf("%w: failed to read status file %s: %w", ErrStoreUnavailable, f.path, err)
	}

	if len(data) == 0 {
		return result, nil
	}

	var raw map[string]*TaskStatus
	if err := json.Unmarshal(data, &raw); err != nil {
		return result, fmt.Errorf("%w: failed to parse status file %s: %w", ErrStoreUnavailable, f.path, err)
	}

	for name, st := range raw {
		if st == nil {
			continue
		}
		st.normalize(name)
		result[name] = st
	}

	return result, nil
}

// Save writes the full mapping to a temporary file and renames it over the
// status document.
func (f *FileStore) Save(_ context.Context, statuses map[string]*TaskStatus) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("%w: failed to create status directory %s: %w", ErrStoreUnavailable, dir, err)
	}

	snapshot := CloneAll(statuses)
	for name, st := range snapshot {
		st.normalize(name)
	}

	// Map keys are marshalled in sorted order, so equal state produces equal bytes
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to marshal status data: %w", ErrStoreUnavailable, err)
	}

	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("%w: failed to write temporary status file: %w", ErrStoreUnavailable, err)
	}

	if err := os.Rename(tempPath, f.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("%w: failed to rename status file: %w", ErrStoreUnavailable, err)
	}

	return nil
}
