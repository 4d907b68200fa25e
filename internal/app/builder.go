package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"slices"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/tradelens/ingestor/internal/api"
	"github.com/tradelens/ingestor/internal/auth"
	"github.com/tradelens/ingestor/internal/authz"
	"github.com/tradelens/ingestor/internal/app/storage"
	"github.com/tradelens/ingestor/internal/config"
	"github.com/tradelens/ingestor/internal/httpclient"
	"github.com/tradelens/ingestor/internal/runner"
	"github.com/tradelens/ingestor/internal/scheduler"
	"github.com/tradelens/ingestor/internal/sources"
	"github.com/tradelens/ingestor/internal/tasks"
	"github.com/tradelens/ingestor/internal/telemetry"
)

const (
	defaultHTTPAddress  = ":8080"
	defaultReadTimeout  = 10 * time.Second
	defaultIdleTimeout  = 60 * time.Second
	defaultWriteTimeout = 10 * time.Minute
)

// AppOption is a function that configures the app builder
type AppOption func(*appConfig) error

// appConfig collects the inputs of the builder. Optional overrides exist
// mainly for testing.
type appConfig struct {
	config *config.Config

	storageFactory storage.Factory
	httpClient     httpclient.Client
	descriptors    []tasks.Descriptor
	concurrency    int

	summaryHandler scheduler.SummaryHandler

	address      string
	middlewares  []func(http.Handler) http.Handler
	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

func baseConfig(opts ...AppOption) (*appConfig, error) {
	cfg := &appConfig{
		address:      defaultHTTPAddress,
		readTimeout:  defaultReadTimeout,
		writeTimeout: defaultWriteTimeout,
		idleTimeout:  defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return cfg, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) AppOption {
	return func(cfg *appConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) AppOption {
	return func(cfg *appConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, err := net.SplitHostPort(addr)
		if err != nil || port == "" {
			return fmt.Errorf("address is not a valid host:port: %s", addr)
		}
		switch host {
		case "":
			host = "0.0.0.0"
		case "localhost":
			host = "127.0.0.1"
		}

		if _, err := netip.ParseAddrPort(net.JoinHostPort(host, port)); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) AppOption {
	return func(cfg *appConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory
func WithStorageFactory(f storage.Factory) AppOption {
	return func(cfg *appConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithHTTPClient sets the client the sources fetch with
func WithHTTPClient(c httpclient.Client) AppOption {
	return func(cfg *appConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithDescriptors registers the given tasks instead of building them from
// the configured sources
func WithDescriptors(d ...tasks.Descriptor) AppOption {
	return func(cfg *appConfig) error {
		cfg.descriptors = d
		return nil
	}
}

// WithConcurrency overrides the configured number of tasks run at once
func WithConcurrency(n int) AppOption {
	return func(cfg *appConfig) error {
		if n < 0 {
			return fmt.Errorf("concurrency cannot be negative: %d", n)
		}
		cfg.concurrency = n
		return nil
	}
}

// WithSummaryHandler sets a function receiving every summary produced by the scheduler
func WithSummaryHandler(fn scheduler.SummaryHandler) AppOption {
	return func(cfg *appConfig) error {
		cfg.summaryHandler = fn
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for run and HTTP metrics
func WithMeterProvider(mp metric.MeterProvider) AppOption {
	return func(cfg *appConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for run and HTTP spans
func WithTracerProvider(tp trace.TracerProvider) AppOption {
	return func(cfg *appConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// BuildComponents builds the task registry, status store, coordinator and
// scheduler shared by the run and serve commands. The caller must Close the
// returned components.
func BuildComponents(ctx context.Context, opts ...AppOption) (*AppComponents, error) {
	b, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	return buildComponents(ctx, b)
}

func buildComponents(ctx context.Context, b *appConfig) (*AppComponents, error) {
	slog.InfoContext(ctx, "Initializing run components")

	if b.storageFactory == nil {
		f, err := storage.NewStorageFactory(ctx, b.config)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
		b.storageFactory = f
	}

	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			b.storageFactory.Cleanup()
		}
	}()

	store, err := b.storageFactory.CreateStatusStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create status store: %w", err)
	}

	registry, err := buildRegistry(ctx, b)
	if err != nil {
		return nil, err
	}

	coordOpts, err := buildCoordinatorOptions(b)
	if err != nil {
		return nil, err
	}
	coord := runner.New(registry, store, coordOpts...)

	schedOpts := []scheduler.Option{
		scheduler.WithInterval(b.config.Schedule.GetInterval()),
		scheduler.WithJitter(b.config.Schedule.GetJitter()),
	}
	if b.summaryHandler != nil {
		schedOpts = append(schedOpts, scheduler.WithSummaryHandler(b.summaryHandler))
	}

	cleanupNeeded = false
	slog.InfoContext(ctx, "Run components initialized", "tasks", registry.Len())

	return &AppComponents{
		Registry:    registry,
		Coordinator: coord,
		StatusStore: store,
		Scheduler:   scheduler.New(coord, schedOpts...),
		storage:     b.storageFactory,
	}, nil
}

// buildRegistry registers the injected descriptors, or the tasks built from
// the configured sources
func buildRegistry(ctx context.Context, b *appConfig) (*tasks.Registry, error) {
	descriptors := b.descriptors
	if descriptors == nil {
		s, err := b.storageFactory.CreateSink(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create sink: %w", err)
		}

		client := b.httpClient
		if client == nil {
			client = httpclient.NewDefaultClient(b.config.GetHTTPTimeout())
		}

		descriptors, err = sources.Build(b.config, s, client)
		if err != nil {
			return nil, fmt.Errorf("failed to build tasks: %w", err)
		}
	}

	registry, err := tasks.NewRegistry(descriptors...)
	if err != nil {
		return nil, err
	}
	return registry, nil
}

func buildCoordinatorOptions(b *appConfig) ([]runner.Option, error) {
	concurrency := b.config.Schedule.GetConcurrency()
	if b.concurrency > 0 {
		concurrency = b.concurrency
	}
	opts := []runner.Option{runner.WithConcurrency(concurrency)}

	if b.meterProvider != nil {
		metrics, err := telemetry.NewRunMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create run metrics: %w", err)
		}
		opts = append(opts, runner.WithRunMetrics(metrics))
	}
	if b.tracerProvider != nil {
		opts = append(opts, runner.WithTracer(b.tracerProvider.Tracer(runner.TracerName)))
	}
	return opts, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(b *appConfig, components *AppComponents) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	middlewares := b.middlewares
	if middlewares == nil {
		middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			api.LoggingMiddleware,
		}
	}

	authMw, err := auth.NewAuthMiddleware(b.config.Auth, auth.DefaultValidatorFactory)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth middleware: %w", err)
	}
	var authzCfg *config.AuthzConfig
	if b.config.Auth != nil {
		authzCfg = b.config.Auth.Authorization
	}
	authzMw, err := authz.NewMiddleware(authzCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization middleware: %w", err)
	}
	middlewares = append(slices.Clone(middlewares), authMw, authzMw)

	// Metrics and tracing wrap everything so rejected requests are observed too
	if b.meterProvider != nil {
		httpMetrics, err := telemetry.NewHTTPMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
		}
		middlewares = append([]func(http.Handler) http.Handler{httpMetrics.Middleware}, middlewares...)
	}
	if b.tracerProvider != nil {
		middlewares = append([]func(http.Handler) http.Handler{telemetry.TracingMiddleware(b.tracerProvider)}, middlewares...)
	}

	router := api.NewServer(components.Scheduler, components.StatusStore, api.WithMiddlewares(middlewares...))

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
