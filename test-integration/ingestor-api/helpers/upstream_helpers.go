// Package helpers provides fixtures for the ingestor integration tests.
package helpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
)

// FakeUpstream serves the SnapTrade, Discord and bar APIs from one server
type FakeUpstream struct {
	server *httptest.Server

	mu       sync.Mutex
	messages map[string][]uint64
	barDates []string

	failing  atomic.Bool
	requests atomic.Int64
}

// NewFakeUpstream starts a fake upstream. Channels start with the given
// message ids.
func NewFakeUpstream(channels map[string][]uint64) *FakeUpstream {
	f := &FakeUpstream{messages: make(map[string][]uint64, len(channels))}
	for channel, ids := range channels {
		f.messages[channel] = slices.Clone(ids)
	}

	r := chi.NewRouter()
	r.Use(f.countAndFail)
	r.Get("/activities", f.activities)
	r.Get("/channels/{channel}/messages", f.channelMessages)
	r.Get("/bars/{symbol}", f.bar)

	f.server = httptest.NewServer(r)
	return f
}

// URL is the base endpoint of every fake source
func (f *FakeUpstream) URL() string {
	return f.server.URL
}

// Close stops the server
func (f *FakeUpstream) Close() {
	f.server.Close()
}

// SetFailing makes every request fail with 503 while enabled
func (f *FakeUpstream) SetFailing(failing bool) {
	f.failing.Store(failing)
}

// Requests returns the number of requests served
func (f *FakeUpstream) Requests() int64 {
	return f.requests.Load()
}

// PostMessages appends messages to a channel
func (f *FakeUpstream) PostMessages(channel string, ids ...uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[channel] = append(f.messages[channel], ids...)
}

// BarDates returns the dates requested from the bar API
func (f *FakeUpstream) BarDates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.barDates)
}

func (f *FakeUpstream) countAndFail(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		if f.failing.Load() {
			http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (*FakeUpstream) activities(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Client-Secret") == "" {
		http.Error(w, "missing secret", http.StatusUnauthorized)
		return
	}
	writeJSON(w, map[string]any{
		"activities": []map[string]any{
			{"id": "act-1", "type": "BUY", "symbol": "AAPL", "units": 10, "tradeDate": r.URL.Query().Get("startDate")},
			{"id": "act-2", "type": "DIVIDEND", "symbol": "MSFT", "amount": 4.2},
		},
	})
}

// channelMessages returns up to limit messages newer than after, newest first
func (f *FakeUpstream) channelMessages(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bot ") {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	after, _ := strconv.ParseUint(r.URL.Query().Get("after"), 10, 64)
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	f.mu.Lock()
	var ids []uint64
	for _, id := range f.messages[chi.URLParam(r, "channel")] {
		if id > after {
			ids = append(ids, id)
		}
	}
	f.mu.Unlock()

	slices.Sort(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	slices.Reverse(ids)

	page := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		page = append(page, map[string]any{"id": strconv.FormatUint(id, 10), "content": fmt.Sprintf("message %d", id)})
	}
	writeJSON(w, page)
}

func (f *FakeUpstream) bar(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")

	f.mu.Lock()
	f.barDates = append(f.barDates, date)
	f.mu.Unlock()

	writeJSON(w, map[string]any{
		"bar": map[string]any{
			"symbol": chi.URLParam(r, "symbol"),
			"date":   date,
			"open":   100.0, "high": 101.5, "low": 99.2, "close": 100.9, "volume": 120000,
		},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
