package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/tradelens/ingestor/internal/httpclient"
	"github.com/tradelens/ingestor/internal/sink"
	"github.com/tradelens/ingestor/internal/tasks"
	"github.com/tradelens/ingestor/internal/window"
)

// OHLCVDataset is the sink dataset of daily bars
const OHLCVDataset = "ohlcv_bars"

// maxOHLCVDays bounds the days fetched for a range window
const maxOHLCVDays = 366

// ErrUnboundedWindow is returned when a source that needs dates gets a cursor window
var ErrUnboundedWindow = errors.New("source requires a bounded window")

// OHLCV fetches one daily bar per symbol and day. Bars are keyed by symbol and
// date so a re-run replaces what an earlier run wrote.
type OHLCV struct {
	client   httpclient.Client
	writer   sink.Writer
	endpoint string
	apiKey   string
	symbols  []string
	now      func() time.Time
}

// NewOHLCV creates an OHLCV source
func NewOHLCV(client httpclient.Client, writer sink.Writer, endpoint, apiKey string, symbols []string) *OHLCV {
	return &OHLCV{
		client:   client,
		writer:   writer,
		endpoint: endpoint,
		apiKey:   apiKey,
		symbols:  symbols,
		now:      time.Now,
	}
}

// Run fetches the bars of every symbol for each day of the window. A day with
// no bar, such as a market holiday, is not an error.
func (o *OHLCV) Run(ctx context.Context, w window.Window) (tasks.Outcome, error) {
	days, err := windowDays(w)
	if err != nil {
		return tasks.Outcome{}, err
	}

	header := http.Header{}
	if o.apiKey != "" {
		header.Set("X-Api-Key", o.apiKey)
	}

	records := make([]sink.Record, 0, len(days)*len(o.symbols))
	for _, symbol := range o.symbols {
		for _, day := range days {
			target := joinURL(o.endpoint, "bars", url.PathEscape(symbol)) + "?" + url.Values{"date": {day}}.Encode()
			body, err := o.client.Get(ctx, target, header)
			if err != nil {
				return tasks.Outcome{}, fmt.Errorf("failed to fetch %s bar for %s: %w", symbol, day, err)
			}
			if !gjson.ValidBytes(body) {
				return tasks.Outcome{}, fmt.Errorf("%s bar for %s is not valid JSON", symbol, day)
			}

			bar := gjson.ParseBytes(body)
			if bar.IsObject() && bar.Get("bar").Exists() {
				bar = bar.Get("bar")
			}
			if !bar.IsObject() {
				slog.DebugContext(ctx, "No bar for day", "symbol", symbol, "date", day)
				continue
			}

			records = append(records, sink.Record{
				Key:        symbol + ":" + day,
				Payload:    json.RawMessage(bar.Raw),
				ObservedAt: o.now().UTC(),
			})
		}
	}

	written, err := o.writer.Upsert(ctx, OHLCVDataset, records)
	if err != nil {
		return tasks.Outcome{}, fmt.Errorf("failed to write bars: %w", err)
	}

	return tasks.Outcome{
		Items:  &written,
		Detail: fmt.Sprintf("%d symbol(s) over %d day(s)", len(o.symbols), len(days)),
	}, nil
}

// windowDays lists the dates covered by a day or range window
func windowDays(w window.Window) ([]string, error) {
	switch w.Kind {
	case window.KindDay:
		return []string{w.Day()}, nil
	case window.KindRange:
		loc := w.Start.Location()
		start := time.Date(w.Start.Year(), w.Start.Month(), w.Start.Day(), 0, 0, 0, 0, loc)
		var days []string
		for d := start; d.Before(w.End); d = d.AddDate(0, 0, 1) {
			if len(days) == maxOHLCVDays {
				return nil, fmt.Errorf("window %s spans more than %d days", w, maxOHLCVDays)
			}
			days = append(days, d.Format(time.DateOnly))
		}
		return days, nil
	default:
		return nil, fmt.Errorf("%w, got %s", ErrUnboundedWindow, w)
	}
}
