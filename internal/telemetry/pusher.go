package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Pusher pushes the metrics of one CLI run to a Prometheus Pushgateway. A nil
// Pusher does nothing.
type Pusher struct {
	pusher *push.Pusher
	url    string
}

// NewPusher creates a pusher sending everything gathered from gatherer to url
// under the given job label
func NewPusher(url, job string, gatherer prometheus.Gatherer) *Pusher {
	return &Pusher{
		pusher: push.New(url, job).Gatherer(gatherer),
		url:    url,
	}
}

// Push replaces the metrics of the job on the Pushgateway
func (p *Pusher) Push(ctx context.Context) error {
	if p == nil {
		return nil
	}

	if err := p.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", p.url, err)
	}

	slog.DebugContext(ctx, "Pushed run metrics", "url", p.url)
	return nil
}
