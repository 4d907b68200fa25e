package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradelens/ingestor/internal/config"
	"github.com/tradelens/ingestor/internal/sink"
	"github.com/tradelens/ingestor/internal/status"
)

func TestNewStorageFactory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		config   *config.Config
		wantFile bool
		wantErr  string
	}{
		{
			name:    "nil config",
			wantErr: "config cannot be nil",
		},
		{
			name:     "defaults are file based",
			config:   &config.Config{},
			wantFile: true,
		},
		{
			name:     "sqlite status store",
			config:   &config.Config{StatusStore: config.StatusStoreConfig{Type: config.StoreTypeSQLite}},
			wantFile: true,
		},
		{
			name:    "postgres sink requires database",
			config:  &config.Config{Sink: config.SinkConfig{Type: config.StoreTypePostgres}},
			wantErr: "database configuration is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, err := NewStorageFactory(t.Context(), tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			t.Cleanup(f.Cleanup)

			_, isFile := f.(*FileFactory)
			assert.Equal(t, tt.wantFile, isFile)
		})
	}
}

func TestFileFactory_FileStatusStore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f, err := NewFileFactory(&config.Config{
		StatusStore: config.StatusStoreConfig{Type: config.StoreTypeFile, Path: filepath.Join(dir, "status.json")},
	})
	require.NoError(t, err)
	t.Cleanup(f.Cleanup)

	store, err := f.CreateStatusStore(t.Context())
	require.NoError(t, err)
	require.IsType(t, &status.FileStore{}, store)

	at := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(t.Context(), map[string]*status.TaskStatus{
		"ohlcv": (*status.TaskStatus)(nil).RecordSuccess("ohlcv", at, at),
	}))
	assert.FileExists(t, filepath.Join(dir, "status.json"))
}

func TestFileFactory_SQLiteStatusStoreIsShared(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "status.db")
	f, err := NewFileFactory(&config.Config{
		StatusStore: config.StatusStoreConfig{Type: config.StoreTypeSQLite, Path: path},
	})
	require.NoError(t, err)
	t.Cleanup(f.Cleanup)

	first, err := f.CreateStatusStore(t.Context())
	require.NoError(t, err)
	second, err := f.CreateStatusStore(t.Context())
	require.NoError(t, err)
	assert.Same(t, first, second)

	loaded, err := first.Load(t.Context())
	require.NoError(t, err)
	assert.Empty(t, loaded)
	assert.FileExists(t, path)

	f.Cleanup()
	// Cleanup is idempotent and the next store reopens the database
	f.Cleanup()
	third, err := f.CreateStatusStore(t.Context())
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestFileFactory_CreateSink(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "sink")
	f, err := NewFileFactory(&config.Config{Sink: config.SinkConfig{Dir: dir}})
	require.NoError(t, err)

	s, err := f.CreateSink(t.Context())
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	n, err := s.Upsert(t.Context(), "ohlcv_bars", []sink.Record{
		{Key: "AAPL:2024-03-04", Payload: json.RawMessage(`{"close":1}`), ObservedAt: time.Now()},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestFileFactory_RejectsPostgresComponents(t *testing.T) {
	t.Parallel()

	f, err := NewFileFactory(&config.Config{
		StatusStore: config.StatusStoreConfig{Type: config.StoreTypePostgres},
		Sink:        config.SinkConfig{Type: config.StoreTypePostgres},
	})
	require.NoError(t, err)

	_, err = f.CreateStatusStore(t.Context())
	assert.ErrorContains(t, err, "not file based")
	_, err = f.CreateSink(t.Context())
	assert.ErrorContains(t, err, "not file based")
}
