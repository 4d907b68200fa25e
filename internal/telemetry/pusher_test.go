package telemetry

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPusher_NilIsNoOp(t *testing.T) {
	t.Parallel()

	var p *Pusher
	assert.NoError(t, p.Push(context.Background()))
}

func TestPusher_PushesRunMetrics(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		method string
		path   string
		body   []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		method = r.Method
		path = r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	ctx := context.Background()
	registry := prometheus.NewRegistry()
	mp, err := NewMeterProvider(ctx, WithPrometheusRegistry(registry))
	require.NoError(t, err)

	metrics, err := NewRunMetrics(mp)
	require.NoError(t, err)
	metrics.RecordRun(ctx, "success", false, 0)

	require.NoError(t, NewPusher(server.URL, "ingestor", registry).Push(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/ingestor", path)
	assert.True(t, bytes.Contains(body, []byte("ingestor_runs_total")))
}

func TestPusher_ReportsGatewayErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "ingestor_test_total", Help: "test"}))

	err := NewPusher(server.URL, "ingestor", registry).Push(context.Background())
	assert.ErrorContains(t, err, "failed to push metrics")
}
