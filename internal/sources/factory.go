package sources

import (
	"fmt"

	"github.com/tradelens/ingestor/internal/config"
	"github.com/tradelens/ingestor/internal/httpclient"
	"github.com/tradelens/ingestor/internal/sink"
	"github.com/tradelens/ingestor/internal/tasks"
	"github.com/tradelens/ingestor/internal/window"
)

// DefaultPolicy returns the window policy a source uses when none is configured
func DefaultPolicy(source string) (window.Policy, error) {
	switch source {
	case config.SourceSnapTrade:
		return window.Lookback{Default: window.DefaultLookback}, nil
	case config.SourceDiscord:
		return window.Unbounded{}, nil
	case config.SourceOHLCV:
		return window.PreviousBusinessDay(nil), nil
	default:
		return nil, fmt.Errorf("unsupported source: %s", source)
	}
}

// Build creates a descriptor for every enabled task in cfg, in file order
func Build(cfg *config.Config, s sink.Sink, client httpclient.Client) ([]tasks.Descriptor, error) {
	enabled := cfg.EnabledTasks()
	descriptors := make([]tasks.Descriptor, 0, len(enabled))
	for i := range enabled {
		d, err := buildTask(&enabled[i], s, client)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

func buildTask(tc *config.TaskConfig, s sink.Sink, client httpclient.Client) (tasks.Descriptor, error) {
	policy, err := DefaultPolicy(tc.Source)
	if err != nil {
		return tasks.Descriptor{}, fmt.Errorf("task %s: %w", tc.Name, err)
	}
	if tc.Policy != nil {
		policy, err = tc.Policy.Build()
		if err != nil {
			return tasks.Descriptor{}, fmt.Errorf("task %s: invalid policy: %w", tc.Name, err)
		}
	}

	d := tasks.Descriptor{Name: tc.Name, Policy: policy}

	switch tc.Source {
	case config.SourceSnapTrade:
		secret, err := tc.GetToken()
		if err != nil {
			return tasks.Descriptor{}, err
		}
		d.Description = "Sync brokerage activities from SnapTrade"
		d.Run = NewSnapTrade(client, s, tc.Endpoint, tc.ClientID, secret).Run
	case config.SourceDiscord:
		token, err := tc.GetToken()
		if err != nil {
			return tasks.Descriptor{}, err
		}
		d.Description = fmt.Sprintf("Ingest messages from %d Discord channel(s)", len(tc.Channels))
		d.Run = NewDiscord(client, s, tc.Endpoint, token, tc.Channels, tc.MaxPages).Run
	case config.SourceOHLCV:
		// The bar API accepts anonymous requests, so only a configured file is required
		apiKey, err := tc.GetToken()
		if err != nil && tc.TokenFile != "" {
			return tasks.Descriptor{}, err
		}
		d.Description = fmt.Sprintf("Fetch daily bars for %d symbol(s)", len(tc.Symbols))
		d.Run = NewOHLCV(client, s, tc.Endpoint, apiKey, tc.Symbols).Run
	}

	return d, nil
}
