//go:build integration

package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradelens/ingestor/database"
)

func TestPostgresStore_SaveAndLoad(t *testing.T) {
	t.Parallel()

	pool, _, cleanup := database.SetupTestDB(t)
	t.Cleanup(cleanup)

	ctx := t.Context()
	store := NewPostgresStore(pool)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	run := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	statuses := map[string]*TaskStatus{
		"snaptrade": {LastRunAt: &run, LastSuccessAt: &run, Success: true},
		"discord":   {LastRunAt: &run, LastError: "boom", ConsecutiveFailures: 4},
	}
	require.NoError(t, store.Save(ctx, statuses))
	require.NoError(t, store.Save(ctx, statuses))

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.True(t, run.Equal(*loaded["snaptrade"].LastSuccessAt))
	assert.Equal(t, 4, loaded["discord"].ConsecutiveFailures)
}
