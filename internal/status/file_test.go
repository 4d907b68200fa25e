package status

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_LoadMissingFile(t *testing.T) {
	t.Parallel()

	store := NewFileStore(filepath.Join(t.TempDir(), "status.json"))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestFileStore_SaveAndLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "status.json")
	store := NewFileStore(path)

	run := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	success := run.Add(-time.Hour)
	statuses := map[string]*TaskStatus{
		"snaptrade": {LastRunAt: &run, LastSuccessAt: &run, Success: true},
		"discord": {
			LastRunAt:           &run,
			LastSuccessAt:       &success,
			LastError:           "connection refused",
			ConsecutiveFailures: 2,
		},
	}

	require.NoError(t, store.Save(ctx, statuses))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file must be renamed away")

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, "discord", loaded["discord"].TaskName)
	assert.False(t, loaded["discord"].Success)
	assert.Equal(t, 2, loaded["discord"].ConsecutiveFailures)
	assert.Equal(t, "connection refused", loaded["discord"].LastError)
	assert.True(t, success.Equal(*loaded["discord"].LastSuccessAt))

	assert.True(t, loaded["snaptrade"].Success)
	assert.True(t, run.Equal(*loaded["snaptrade"].LastRunAt))
}

func TestFileStore_SaveIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "status.json")
	store := NewFileStore(path)

	run := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	statuses := map[string]*TaskStatus{
		"b": {LastRunAt: &run, LastSuccessAt: &run, Success: true},
		"a": {LastRunAt: &run, LastError: "boom", ConsecutiveFailures: 1},
	}

	require.NoError(t, store.Save(ctx, statuses))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, statuses))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestFileStore_LoadLegacyShape(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "status.json")
	legacy := `{
  "snaptrade": {"last_run": "2024-03-04T10:00:00Z", "success": true, "extra": 1},
  "discord": {"last_run": "2024-03-04T11:00:00+02:00", "success": false}
}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0600))

	loaded, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	snap := loaded["snaptrade"]
	require.NotNil(t, snap.LastSuccessAt)
	assert.Equal(t, time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC), *snap.LastSuccessAt)

	disc := loaded["discord"]
	assert.Nil(t, disc.LastSuccessAt)
	require.NotNil(t, disc.LastRunAt)
	assert.Equal(t, time.UTC, disc.LastRunAt.Location())
	assert.Equal(t, 9, disc.LastRunAt.Hour())
}

func TestFileStore_LoadCorruptFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "empty file", content: "", wantErr: false},
		{name: "truncated json", content: `{"snaptrade": {"last_run": `, wantErr: true},
		{name: "wrong shape", content: `["snaptrade"]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "status.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))

			loaded, err := NewFileStore(path).Load(context.Background())
			assert.NotNil(t, loaded)
			assert.Empty(t, loaded)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrStoreUnavailable)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFileStore_SaveUnwritableDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	store := NewFileStore(filepath.Join(blocker, "status.json"))
	err := store.Save(context.Background(), map[string]*TaskStatus{})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestNewFileStore_DefaultPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, DefaultStatusFile, NewFileStore("").Path())
}
