package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tradelens/ingestor/internal/httpclient"
	"github.com/tradelens/ingestor/internal/sink"
	"github.com/tradelens/ingestor/internal/tasks"
	"github.com/tradelens/ingestor/internal/window"
)

// SnapTradeDataset is the sink dataset of brokerage activities
const SnapTradeDataset = "snaptrade_activities"

// SnapTrade syncs brokerage activities that fall inside the window
type SnapTrade struct {
	client   httpclient.Client
	writer   sink.Writer
	endpoint string
	clientID string
	secret   string
	now      func() time.Time
}

// NewSnapTrade creates a SnapTrade source
func NewSnapTrade(client httpclient.Client, writer sink.Writer, endpoint, clientID, secret string) *SnapTrade {
	return &SnapTrade{
		client:   client,
		writer:   writer,
		endpoint: endpoint,
		clientID: clientID,
		secret:   secret,
		now:      time.Now,
	}
}

// Run fetches the activities between the window bounds and upserts them by id.
// A cursor window fetches everything up to its end.
func (s *SnapTrade) Run(ctx context.Context, w window.Window) (tasks.Outcome, error) {
	query := url.Values{}
	if !w.Start.IsZero() {
		query.Set("startDate", w.Start.UTC().Format(time.RFC3339))
	}
	if !w.End.IsZero() {
		query.Set("endDate", w.End.UTC().Format(time.RFC3339))
	}

	target := joinURL(s.endpoint, "activities")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	header := http.Header{}
	header.Set("X-Client-Id", s.clientID)
	header.Set("X-Client-Secret", s.secret)

	body, err := s.client.Get(ctx, target, header)
	if err != nil {
		return tasks.Outcome{}, fmt.Errorf("failed to fetch activities: %w", err)
	}

	items, err := parseArray(body, "activities")
	if err != nil {
		return tasks.Outcome{}, fmt.Errorf("failed to parse activities: %w", err)
	}

	records, err := toRecords(items, "id", s.now().UTC())
	if err != nil {
		return tasks.Outcome{}, fmt.Errorf("failed to parse activities: %w", err)
	}

	written, err := s.writer.Upsert(ctx, SnapTradeDataset, records)
	if err != nil {
		return tasks.Outcome{}, fmt.Errorf("failed to write activities: %w", err)
	}

	slog.DebugContext(ctx, "Synced brokerage activities", "count", written, "window", w.String())
	return tasks.Items(written), nil
}
