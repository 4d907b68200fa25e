package sink

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSink_UpsertOverwritesByKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewFileSink(filepath.Join(t.TempDir(), "sink"))
	observed := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	n, err := s.Upsert(ctx, "ohlcv_bars", []Record{
		{Key: "AAPL:2024-03-04", Payload: json.RawMessage(`{"c":1}`), ObservedAt: observed},
		{Key: "MSFT:2024-03-04", Payload: json.RawMessage(`{"c":2}`), ObservedAt: observed},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Re-running over the same day replaces instead of duplicating
	n, err = s.Upsert(ctx, "ohlcv_bars", []Record{
		{Key: "AAPL:2024-03-04", Payload: json.RawMessage(`{"c":3}`), ObservedAt: observed},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	records, err := s.Records("ohlcv_bars")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.JSONEq(t, `{"c":3}`, string(records["AAPL:2024-03-04"].Payload))
	assert.JSONEq(t, `{"c":2}`, string(records["MSFT:2024-03-04"].Payload))
	assert.True(t, observed.Equal(records["MSFT:2024-03-04"].ObservedAt))
}

func TestFileSink_UpsertValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dataset string
		records []Record
		wantErr bool
	}{
		{name: "empty batch", dataset: "discord_messages", records: nil},
		{name: "path traversal", dataset: "../etc", records: []Record{{Key: "k", Payload: json.RawMessage(`1`)}}, wantErr: true},
		{name: "empty key", dataset: "discord_messages", records: []Record{{Payload: json.RawMessage(`1`)}}, wantErr: true},
		{name: "invalid payload", dataset: "discord_messages", records: []Record{{Key: "k", Payload: json.RawMessage(`{`)}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n, err := NewFileSink(t.TempDir()).Upsert(context.Background(), tt.dataset, tt.records)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestFileSink_Checkpoints(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewFileSink(t.TempDir())

	value, err := s.Checkpoint(ctx, "discord:123")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, s.SetCheckpoint(ctx, "discord:123", "1000"))
	require.NoError(t, s.SetCheckpoint(ctx, "discord:456", "2000"))
	require.NoError(t, s.SetCheckpoint(ctx, "discord:123", "1500"))

	value, err = s.Checkpoint(ctx, "discord:123")
	require.NoError(t, err)
	assert.Equal(t, "1500", value)

	value, err = s.Checkpoint(ctx, "discord:456")
	require.NoError(t, err)
	assert.Equal(t, "2000", value)

	_, err = s.Checkpoint(ctx, "Bad Key")
	assert.ErrorIs(t, err, ErrInvalidDataset)
}
