package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradelens/ingestor/internal/sink"
)

func TestNewestSnowflake(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cursor  string
		ids     []string
		want    string
		wantErr bool
	}{
		{name: "numeric not lexical", ids: []string{"99", "1000"}, want: "1000"},
		{name: "descending page", cursor: "10", ids: []string{"15", "12", "11"}, want: "15"},
		{name: "nothing newer keeps cursor", cursor: "500", ids: []string{"400"}, want: "500"},
		{name: "large snowflakes", ids: []string{"1219334522931200000", "1219334522931200001"}, want: "1219334522931200001"},
		{name: "bad id", ids: []string{"abc"}, wantErr: true},
		{name: "bad cursor", cursor: "x", ids: []string{"1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			records := make([]sink.Record, 0, len(tt.ids))
			for _, id := range tt.ids {
				records = append(records, sink.Record{Key: id})
			}

			got, err := newestSnowflake(tt.cursor, records)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
