package sources_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tradelens/ingestor/internal/httpclient"
	httpmocks "github.com/tradelens/ingestor/internal/httpclient/mocks"
	"github.com/tradelens/ingestor/internal/sink"
	sinkmocks "github.com/tradelens/ingestor/internal/sink/mocks"
	"github.com/tradelens/ingestor/internal/sources"
	"github.com/tradelens/ingestor/internal/window"
)

func TestSnapTrade_Run(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	var (
		mu                             sync.Mutex
		gotQuery, gotClient, gotSecret string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/activities", r.URL.Path)
		mu.Lock()
		defer mu.Unlock()
		gotQuery = r.URL.RawQuery
		gotClient = r.Header.Get("X-Client-Id")
		gotSecret = r.Header.Get("X-Client-Secret")
		_, _ = w.Write([]byte(`[{"id":"a1","amount":10},{"id":"a2","amount":-4}]`))
	}))
	t.Cleanup(server.Close)

	out := sink.NewFileSink(t.TempDir())
	task := sources.NewSnapTrade(httpclient.NewDefaultClient(0), out, server.URL, "client-1", "s3cret")

	w := window.Window{Kind: window.KindRange, Start: start, End: end}
	outcome, err := task.Run(context.Background(), w)
	require.NoError(t, err)
	require.NotNil(t, outcome.Items)
	assert.Equal(t, int64(2), *outcome.Items)

	mu.Lock()
	assert.Equal(t, "client-1", gotClient)
	assert.Equal(t, "s3cret", gotSecret)
	assert.Contains(t, gotQuery, "startDate=2024-03-04T09%3A00%3A00Z")
	assert.Contains(t, gotQuery, "endDate=2024-03-05T09%3A00%3A00Z")
	mu.Unlock()

	// Re-running over the same window leaves the dataset unchanged
	_, err = task.Run(context.Background(), w)
	require.NoError(t, err)

	records, err := out.Records(sources.SnapTradeDataset)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.JSONEq(t, `{"id":"a2","amount":-4}`, string(records["a2"].Payload))
}

func TestSnapTrade_RunErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		status  int
		wantErr string
	}{
		{name: "http error", status: http.StatusUnauthorized, wantErr: "failed to fetch activities"},
		{name: "invalid json", status: http.StatusOK, body: `[{`, wantErr: "not valid JSON"},
		{name: "missing id", status: http.StatusOK, body: `{"activities":[{"amount":1}]}`, wantErr: "item 0 has no id"},
		{name: "not an array", status: http.StatusOK, body: `{"activities":"nope"}`, wantErr: "expected a JSON array"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(server.Close)

			task := sources.NewSnapTrade(httpclient.NewDefaultClient(0), sink.NewFileSink(t.TempDir()), server.URL, "c", "s")
			_, err := task.Run(context.Background(), window.Window{Kind: window.KindRange, Start: time.Now().Add(-time.Hour), End: time.Now()})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func messagesPage(from, count int) string {
	msgs := make([]string, 0, count)
	for i := from; i < from+count; i++ {
		msgs = append(msgs, fmt.Sprintf(`{"id":"%d","content":"m%d"}`, i, i))
	}
	return "[" + strings.Join(msgs, ",") + "]"
}

func TestDiscord_RunPagesUntilShortPage(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		requests []string
	)
	seen := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), requests...)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channels/42/messages", r.URL.Path)
		assert.Equal(t, "Bot tok", r.Header.Get("Authorization"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		after := r.URL.Query().Get("after")
		mu.Lock()
		requests = append(requests, after)
		mu.Unlock()

		switch after {
		case "":
			_, _ = w.Write([]byte(messagesPage(1, 100)))
		case "100":
			_, _ = w.Write([]byte(messagesPage(101, 2)))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	t.Cleanup(server.Close)

	ctx := context.Background()
	out := sink.NewFileSink(t.TempDir())
	task := sources.NewDiscord(httpclient.NewDefaultClient(0), out, server.URL, "tok", []string{"42"}, 0)

	outcome, err := task.Run(ctx, window.Window{Kind: window.KindCursor})
	require.NoError(t, err)
	assert.Equal(t, int64(102), *outcome.Items)
	assert.Equal(t, []string{"", "100"}, seen())

	cursor, err := out.Checkpoint(ctx, "discord:42")
	require.NoError(t, err)
	assert.Equal(t, "102", cursor)

	// The next run resumes after the stored cursor
	outcome, err = task.Run(ctx, window.Window{Kind: window.KindCursor})
	require.NoError(t, err)
	assert.Equal(t, int64(0), *outcome.Items)
	assert.Equal(t, []string{"", "100", "102"}, seen())
}

func TestDiscord_RunStopsAtMaxPages(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		after, _ := strconv.Atoi(r.URL.Query().Get("after"))
		_, _ = w.Write([]byte(messagesPage(after+1, 100)))
	}))
	t.Cleanup(server.Close)

	ctx := context.Background()
	out := sink.NewFileSink(t.TempDir())
	task := sources.NewDiscord(httpclient.NewDefaultClient(0), out, server.URL, "tok", []string{"7"}, 2)

	outcome, err := task.Run(ctx, window.Window{Kind: window.KindCursor})
	require.NoError(t, err)
	assert.Equal(t, int64(200), *outcome.Items)

	cursor, err := out.Checkpoint(ctx, "discord:7")
	require.NoError(t, err)
	assert.Equal(t, "200", cursor)
}

func TestDiscord_CursorNotAdvancedWhenWriteFails(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := httpmocks.NewMockClient(ctrl)
	store := sinkmocks.NewMockSink(ctrl)

	store.EXPECT().Checkpoint(gomock.Any(), "discord:9").Return("5", nil)
	client.EXPECT().
		Get(gomock.Any(), "https://discord.example/channels/9/messages?after=5&limit=100", gomock.Any()).
		Return([]byte(`[{"id":"6"},{"id":"7"}]`), nil)
	store.EXPECT().Upsert(gomock.Any(), sources.DiscordDataset, gomock.Len(2)).Return(int64(0), errors.New("disk full"))
	// SetCheckpoint must not be called

	task := sources.NewDiscord(client, store, "https://discord.example/", "tok", []string{"9"}, 0)
	_, err := task.Run(context.Background(), window.Window{Kind: window.KindCursor})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "channel 9")
}

func TestOHLCV_RunDayWindow(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2024-03-01", r.URL.Query().Get("date"))
		assert.Equal(t, "k", r.Header.Get("X-Api-Key"))
		switch r.URL.Path {
		case "/bars/AAPL":
			_, _ = w.Write([]byte(`{"o":1,"h":2,"l":0.5,"c":1.5,"v":100}`))
		case "/bars/MSFT":
			_, _ = w.Write([]byte(`{"bar":{"o":3,"h":4,"l":2,"c":3.5,"v":50}}`))
		case "/bars/HOLI":
			_, _ = w.Write([]byte(`null`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	out := sink.NewFileSink(t.TempDir())
	task := sources.NewOHLCV(httpclient.NewDefaultClient(0), out, server.URL, "k", []string{"AAPL", "MSFT", "HOLI"})

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	w := window.Window{Kind: window.KindDay, Start: day, End: day.AddDate(0, 0, 1)}
	for range 2 {
		outcome, err := task.Run(context.Background(), w)
		require.NoError(t, err)
		assert.Equal(t, int64(2), *outcome.Items)
		assert.Equal(t, "3 symbol(s) over 1 day(s)", outcome.Detail)
	}

	records, err := out.Records(sources.OHLCVDataset)
	require.NoError(t, err)
	require.Len(t, records, 2)

	var bar map[string]float64
	require.NoError(t, json.Unmarshal(records["MSFT:2024-03-01"].Payload, &bar))
	assert.InDelta(t, 3.5, bar["c"], 0.0001)
}

func TestOHLCV_RunRangeWindow(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		dates []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		dates = append(dates, r.URL.Query().Get("date"))
		mu.Unlock()
		_, _ = w.Write([]byte(`{"c":1}`))
	}))
	t.Cleanup(server.Close)

	task := sources.NewOHLCV(httpclient.NewDefaultClient(0), sink.NewFileSink(t.TempDir()), server.URL, "", []string{"AAPL"})

	start := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	outcome, err := task.Run(context.Background(), window.Window{Kind: window.KindRange, Start: start, End: start.Add(36 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), *outcome.Items)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"2024-03-01", "2024-03-02", "2024-03-03"}, dates)
}

func TestOHLCV_RunRejectsCursorWindow(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	task := sources.NewOHLCV(httpmocks.NewMockClient(ctrl), sinkmocks.NewMockWriter(ctrl), "https://bars.example", "", []string{"AAPL"})

	_, err := task.Run(context.Background(), window.Window{Kind: window.KindCursor})
	assert.ErrorIs(t, err, sources.ErrUnboundedWindow)
}
