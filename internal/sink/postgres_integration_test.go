//go:build integration

package sink

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradelens/ingestor/database"
)

func TestPostgresSink(t *testing.T) {
	t.Parallel()

	pool, _, cleanup := database.SetupTestDB(t)
	t.Cleanup(cleanup)

	ctx := t.Context()
	s, err := NewPostgresSink(pool)
	require.NoError(t, err)

	observed := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	records := []Record{
		{Key: "a1", Payload: json.RawMessage(`{"amount": 10}`), ObservedAt: observed},
		{Key: "a2", Payload: json.RawMessage(`{"amount": 20}`), ObservedAt: observed},
	}

	n, err := s.Upsert(ctx, "snaptrade_activities", records)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = s.Upsert(ctx, "snaptrade_activities", records)
	require.NoError(t, err)

	var count int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sink_record WHERE dataset = 'snaptrade_activities'`).Scan(&count))
	assert.Equal(t, 2, count)

	require.NoError(t, s.SetCheckpoint(ctx, "discord:1", "99"))
	value, err := s.Checkpoint(ctx, "discord:1")
	require.NoError(t, err)
	assert.Equal(t, "99", value)

	value, err = s.Checkpoint(ctx, "discord:2")
	require.NoError(t, err)
	assert.Empty(t, value)
}
