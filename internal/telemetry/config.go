// Package telemetry provides OpenTelemetry instrumentation for the ingestor.
// It supports configurable tracing and metrics with OTLP exporters, and a
// Prometheus Pushgateway for metrics of short-lived CLI runs.
package telemetry

import (
	"errors"
	"fmt"
	"net/url"
)

const (
	// DefaultServiceName is the default service name for telemetry
	DefaultServiceName = "ingestor"

	// DefaultEndpoint is the default OTLP endpoint for telemetry
	DefaultEndpoint = "localhost:4318"

	// DefaultSampling is the default trace sampling rate.
	// Runs are infrequent, so every run is sampled.
	DefaultSampling = 1.0

	// DefaultPushJob is the Pushgateway job name used when none is configured
	DefaultPushJob = "ingestor"
)

// Config represents the root telemetry configuration
type Config struct {
	// Enabled controls whether telemetry is enabled globally.
	// When false, no telemetry providers are initialized.
	Enabled bool `yaml:"enabled"`

	// ServiceName is the name of the service for telemetry identification.
	// Defaults to "ingestor".
	ServiceName string `yaml:"serviceName,omitempty"`

	// ServiceVersion defaults to the build version
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the OTLP collector endpoint as "host:port"
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure allows HTTP connections instead of HTTPS
	Insecure bool `yaml:"insecure,omitempty"`

	Tracing     *TracingConfig     `yaml:"tracing,omitempty"`
	Metrics     *MetricsConfig     `yaml:"metrics,omitempty"`
	Pushgateway *PushgatewayConfig `yaml:"pushgateway,omitempty"`
}

// TracingConfig defines tracing-specific configuration
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Sampling controls the trace sampling rate (0.0 to 1.0)
	Sampling float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig defines OTLP metrics configuration
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// PushgatewayConfig defines where metrics are pushed after a CLI run
type PushgatewayConfig struct {
	// URL of the Pushgateway, e.g. http://pushgateway:9091
	URL string `yaml:"url"`

	// Job is the job label of pushed metrics
	Job string `yaml:"job,omitempty"`
}

// GetServiceName returns the service name, using default if not specified
func (c *Config) GetServiceName() string {
	if c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// GetServiceVersion returns the service version, using "unknown" if not specified
func (c *Config) GetServiceVersion() string {
	if c.ServiceVersion == "" {
		return "unknown"
	}
	return c.ServiceVersion
}

// GetEndpoint returns the endpoint, using default if not specified
func (c *Config) GetEndpoint() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

// GetSampling returns the sampling ratio, or DefaultSampling when unset
func (c *TracingConfig) GetSampling() float64 {
	if c.Sampling == 0.0 {
		return DefaultSampling
	}
	return c.Sampling
}

// GetJob returns the job label, using DefaultPushJob if not specified
func (c *PushgatewayConfig) GetJob() string {
	if c.Job == "" {
		return DefaultPushJob
	}
	return c.Job
}

// Validate validates the telemetry configuration. A nil or disabled
// configuration is valid.
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error

	if c.Tracing != nil && c.Tracing.Enabled {
		if s := c.Tracing.Sampling; s < 0 || s > 1.0 {
			errs = append(errs, fmt.Errorf("tracing: sampling must be between 0.0 and 1.0, got %f", s))
		}
	}

	if c.Pushgateway != nil {
		u, err := url.Parse(c.Pushgateway.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("pushgateway: url must be an absolute URL, got %q", c.Pushgateway.URL))
		}
	}

	return errors.Join(errs...)
}
