package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tradelens/ingestor/internal/httpclient"
	"github.com/tradelens/ingestor/internal/sink"
	"github.com/tradelens/ingestor/internal/tasks"
	"github.com/tradelens/ingestor/internal/window"
)

const (
	// DiscordDataset is the sink dataset of chat messages
	DiscordDataset = "discord_messages"

	// DiscordPageSize is the number of messages requested per page
	DiscordPageSize = 100

	// DefaultDiscordMaxPages caps the pages fetched per channel and run
	DefaultDiscordMaxPages = 50
)

// Discord ingests new messages from a set of channels. Progress is tracked by a
// per-channel cursor in the sink, so the window it receives is ignored.
type Discord struct {
	client   httpclient.Client
	sink     sink.Sink
	endpoint string
	token    string
	channels []string
	maxPages int
	now      func() time.Time
}

// NewDiscord creates a Discord source. maxPages of 0 uses DefaultDiscordMaxPages.
func NewDiscord(client httpclient.Client, s sink.Sink, endpoint, token string, channels []string, maxPages int) *Discord {
	if maxPages <= 0 {
		maxPages = DefaultDiscordMaxPages
	}
	return &Discord{
		client:   client,
		sink:     s,
		endpoint: endpoint,
		token:    token,
		channels: channels,
		maxPages: maxPages,
		now:      time.Now,
	}
}

// Run pages through every channel. Channels are processed in order and the
// first failing channel fails the run; cursors already advanced stay advanced.
func (d *Discord) Run(ctx context.Context, _ window.Window) (tasks.Outcome, error) {
	var total int64
	for _, channel := range d.channels {
		n, err := d.syncChannel(ctx, channel)
		total += n
		if err != nil {
			return tasks.Outcome{}, fmt.Errorf("channel %s: %w", channel, err)
		}
	}
	return tasks.Items(total), nil
}

func checkpointKey(channel string) string {
	return "discord:" + channel
}

func (d *Discord) syncChannel(ctx context.Context, channel string) (int64, error) {
	key := checkpointKey(channel)
	cursor, err := d.sink.Checkpoint(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("failed to read cursor: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bot "+d.token)

	var written int64
	for page := 0; page < d.maxPages; page++ {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(DiscordPageSize))
		if cursor != "" {
			query.Set("after", cursor)
		}

		body, err := d.client.Get(ctx, joinURL(d.endpoint, "channels", channel, "messages")+"?"+query.Encode(), header)
		if err != nil {
			return written, fmt.Errorf("failed to fetch messages: %w", err)
		}

		items, err := parseArray(body, "messages")
		if err != nil {
			return written, fmt.Errorf("failed to parse messages: %w", err)
		}
		if len(items) == 0 {
			break
		}

		records, err := toRecords(items, "id", d.now().UTC())
		if err != nil {
			return written, fmt.Errorf("failed to parse messages: %w", err)
		}

		next, err := newestSnowflake(cursor, records)
		if err != nil {
			return written, err
		}

		n, err := d.sink.Upsert(ctx, DiscordDataset, records)
		if err != nil {
			return written, fmt.Errorf("failed to write messages: %w", err)
		}
		written += n

		// The cursor only moves once the page it covers is stored
		if err := d.sink.SetCheckpoint(ctx, key, next); err != nil {
			return written, fmt.Errorf("failed to store cursor: %w", err)
		}
		cursor = next

		if len(items) < DiscordPageSize {
			break
		}
	}

	slog.DebugContext(ctx, "Ingested channel messages", "channel", channel, "count", written, "cursor", cursor)
	return written, nil
}

// newestSnowflake returns the largest message id of the page, compared
// numerically, or cursor when no message is newer
func newestSnowflake(cursor string, records []sink.Record) (string, error) {
	var newest uint64
	if cursor != "" {
		v, err := strconv.ParseUint(cursor, 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid stored cursor %q: %w", cursor, err)
		}
		newest = v
	}

	for _, r := range records {
		id, err := strconv.ParseUint(r.Key, 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid message id %q: %w", r.Key, err)
		}
		if id > newest {
			newest = id
		}
	}

	return strconv.FormatUint(newest, 10), nil
}
