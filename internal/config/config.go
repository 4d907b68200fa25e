// Package config provides configuration loading and management for the ingestor.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tradelens/ingestor/internal/telemetry"
	"github.com/tradelens/ingestor/internal/window"
)

// EnvPrefix is the prefix of every environment variable read by the ingestor
const EnvPrefix = "INGESTOR"

const (
	// StoreTypeFile keeps task status in a JSON file
	StoreTypeFile = "file"

	// StoreTypeSQLite keeps task status in a SQLite database
	StoreTypeSQLite = "sqlite"

	// StoreTypePostgres keeps task status, records and checkpoints in PostgreSQL
	StoreTypePostgres = "postgres"
)

const (
	// SourceSnapTrade syncs brokerage activities
	SourceSnapTrade = "snaptrade"

	// SourceDiscord ingests chat messages
	SourceDiscord = "discord"

	// SourceOHLCV fetches daily price bars
	SourceOHLCV = "ohlcv"
)

const (
	// PolicyLookback resolves a range ending now and starting at the last success
	PolicyLookback = "lookback"

	// PolicyCalendarDay resolves a single calendar day
	PolicyCalendarDay = "calendarDay"

	// PolicyPreviousBusinessDay resolves the previous weekday
	PolicyPreviousBusinessDay = "previousBusinessDay"

	// PolicyUnbounded leaves progress tracking to the task
	PolicyUnbounded = "unbounded"
)

const (
	// AuthModeAnonymous serves the API without authentication
	AuthModeAnonymous = "anonymous"

	// AuthModeJWT requires a bearer JWT signed with one of the configured keys
	AuthModeJWT = "jwt"
)

// DefaultScheduleInterval is how often serve runs the tasks when no interval is configured
const DefaultScheduleInterval = time.Hour

// Default locations of the local stores
const (
	DefaultStatusFile   = "./data/status.json"
	DefaultStatusSQLite = "./data/status.db"
	DefaultSinkDir      = "./data/sink"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks; this also cleans the path
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	StatusStore StatusStoreConfig `yaml:"statusStore"`
	Database    *DatabaseConfig   `yaml:"database,omitempty"`
	Sink        SinkConfig        `yaml:"sink"`
	Tasks       []TaskConfig      `yaml:"tasks"`
	Schedule    *ScheduleConfig   `yaml:"schedule,omitempty"`
	Telemetry   *telemetry.Config `yaml:"telemetry,omitempty"`
	Summary     SummaryConfig     `yaml:"summary,omitempty"`
	Auth        *AuthConfig       `yaml:"auth,omitempty"`

	// HTTPTimeout bounds each request made by the sources (e.g. "30s")
	HTTPTimeout string `yaml:"httpTimeout,omitempty"`
}

// StatusStoreConfig selects where task status is persisted
type StatusStoreConfig struct {
	// Type is file, sqlite or postgres. Defaults to file.
	Type string `yaml:"type,omitempty"`

	// Path is the status file or SQLite database path
	Path string `yaml:"path,omitempty"`
}

// SinkConfig selects where fetched records are written
type SinkConfig struct {
	// Type is file or postgres. Defaults to file.
	Type string `yaml:"type,omitempty"`

	// Dir is the directory of the file sink
	Dir string `yaml:"dir,omitempty"`
}

// TaskConfig defines one ingestion task
type TaskConfig struct {
	// Name is the unique task name used for selection and status records
	Name string `yaml:"name"`

	// Source is the kind of task: snaptrade, discord or ohlcv
	Source string `yaml:"source"`

	// Enabled defaults to true
	Enabled *bool `yaml:"enabled,omitempty"`

	// Policy overrides the source's default window policy
	Policy *PolicyConfig `yaml:"policy,omitempty"`

	// Endpoint is the base URL of the source API
	Endpoint string `yaml:"endpoint"`

	// TokenFile is the path to a file containing the source credential.
	// When unset the credential is read from INGESTOR_<NAME>_TOKEN.
	TokenFile string `yaml:"tokenFile,omitempty"`

	// ClientID identifies the SnapTrade client
	ClientID string `yaml:"clientId,omitempty"`

	// Channels lists the Discord channel ids to ingest
	Channels []string `yaml:"channels,omitempty"`

	// MaxPages caps the Discord pages fetched per channel and run
	MaxPages int `yaml:"maxPages,omitempty"`

	// Symbols lists the instruments fetched by the ohlcv source
	Symbols []string `yaml:"symbols,omitempty"`
}

// PolicyConfig is the YAML form of a window policy
type PolicyConfig struct {
	// Type is lookback, calendarDay, previousBusinessDay or unbounded
	Type string `yaml:"type"`

	// Default is the lookback used when the task has never succeeded (e.g. "24h")
	Default string `yaml:"default,omitempty"`

	// Date pins a calendar day (YYYY-MM-DD)
	Date string `yaml:"date,omitempty"`

	// Offset is the number of days before today
	Offset int `yaml:"offset,omitempty"`

	// Timezone is the IANA location days are computed in. Defaults to UTC.
	Timezone string `yaml:"timezone,omitempty"`

	// SkipWeekends steps over Saturdays and Sundays
	SkipWeekends bool `yaml:"skipWeekends,omitempty"`
}

// ScheduleConfig defines how often serve runs the tasks
type ScheduleConfig struct {
	// Interval between runs (e.g. "1h")
	Interval string `yaml:"interval"`

	// Jitter is the maximum random delay added to each interval
	Jitter string `yaml:"jitter,omitempty"`

	// Concurrency is the number of tasks run at once
	Concurrency int `yaml:"concurrency,omitempty"`
}

// SummaryConfig defines how run summaries are reported
type SummaryConfig struct {
	// Format is text, json or yaml
	Format string `yaml:"format,omitempty"`
}

// AuthConfig protects the HTTP API of serve
type AuthConfig struct {
	// Mode is anonymous or jwt. Defaults to anonymous.
	Mode string `yaml:"mode,omitempty"`

	// Realm is reported in WWW-Authenticate challenges
	Realm string `yaml:"realm,omitempty"`

	// Keys are tried in order until one validates the token
	Keys []JWTKeyConfig `yaml:"keys,omitempty"`

	// PublicPaths bypass authentication. Defaults to the health endpoints.
	PublicPaths []string `yaml:"publicPaths,omitempty"`

	// Authorization restricts what authenticated callers may do. Unset lets
	// every authenticated caller use every route.
	Authorization *AuthzConfig `yaml:"authorization,omitempty"`
}

// Authorization actions checked by the Cedar policies
const (
	// ActionRead covers the status and last run routes
	ActionRead = "read"

	// ActionTrigger covers starting a run through the API
	ActionTrigger = "trigger"
)

// AuthzConfig maps token scopes to actions evaluated by Cedar policies
type AuthzConfig struct {
	// PolicyFile replaces the built-in Cedar policies
	PolicyFile string `yaml:"policyFile,omitempty"`

	// ScopeMapping grants actions per scope. Defaults to DefaultScopeMapping.
	ScopeMapping []ScopeMappingEntry `yaml:"scopeMapping,omitempty"`
}

// ScopeMappingEntry grants Actions to tokens carrying Scope
type ScopeMappingEntry struct {
	Scope   string   `yaml:"scope"`
	Actions []string `yaml:"actions"`
}

// DefaultScopeMapping is used when no scope mapping is configured
var DefaultScopeMapping = []ScopeMappingEntry{
	{Scope: "ingestor:read", Actions: []string{ActionRead}},
	{Scope: "ingestor:trigger", Actions: []string{ActionRead, ActionTrigger}},
}

// GetScopeMapping returns the configured mapping or DefaultScopeMapping
func (a *AuthzConfig) GetScopeMapping() []ScopeMappingEntry {
	if a == nil || len(a.ScopeMapping) == 0 {
		return DefaultScopeMapping
	}
	return a.ScopeMapping
}

func (a *AuthzConfig) validate() error {
	for i, entry := range a.ScopeMapping {
		if entry.Scope == "" {
			return fmt.Errorf("scopeMapping[%d]: scope is required", i)
		}
		for _, action := range entry.Actions {
			if action != ActionRead && action != ActionTrigger {
				return fmt.Errorf("scopeMapping[%d]: action must be read or trigger, got %q", i, action)
			}
		}
	}
	return nil
}

// JWTKeyConfig is one HMAC key accepted for API tokens
type JWTKeyConfig struct {
	// Name identifies the key in logs and in INGESTOR_AUTH_<NAME>_SECRET
	Name string `yaml:"name"`

	// SecretFile is the path to a file containing the signing secret
	SecretFile string `yaml:"secretFile,omitempty"`

	// Issuer, when set, must match the iss claim
	Issuer string `yaml:"issuer,omitempty"`

	// Audience, when set, must be contained in the aud claim
	Audience string `yaml:"audience,omitempty"`
}

// GetMode returns the auth mode, anonymous when unset
func (a *AuthConfig) GetMode() string {
	if a == nil || a.Mode == "" {
		return AuthModeAnonymous
	}
	return a.Mode
}

// GetSecret returns the signing secret from SecretFile or INGESTOR_AUTH_<NAME>_SECRET
func (k *JWTKeyConfig) GetSecret() ([]byte, error) {
	secret, err := readSecret(k.SecretFile, "auth."+k.Name+".secret")
	if err != nil {
		return nil, fmt.Errorf("key %s: %w", k.Name, err)
	}
	return []byte(secret), nil
}

func (a *AuthConfig) validate() error {
	switch a.GetMode() {
	case AuthModeAnonymous:
		if a.Authorization != nil {
			return fmt.Errorf("authorization requires jwt mode")
		}
		return nil
	case AuthModeJWT:
	default:
		return fmt.Errorf("mode must be anonymous or jwt, got %q", a.Mode)
	}

	if len(a.Keys) == 0 {
		return fmt.Errorf("jwt mode requires at least one key")
	}
	seen := make(map[string]bool, len(a.Keys))
	for i, k := range a.Keys {
		if k.Name == "" {
			return fmt.Errorf("keys[%d]: name is required", i)
		}
		if seen[k.Name] {
			return fmt.Errorf("keys[%d]: duplicate key name %q", i, k.Name)
		}
		seen[k.Name] = true
	}

	if a.Authorization != nil {
		if err := a.Authorization.validate(); err != nil {
			return fmt.Errorf("authorization: %w", err)
		}
	}
	return nil
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password.
	// The file should contain only the password with optional trailing whitespace.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// env returns a viper instance reading INGESTOR_ prefixed variables
func env() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// readSecret returns the trimmed content of file, or the value of the
// INGESTOR_ prefixed environment variable for key
func readSecret(file, key string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(filepath.Clean(file))
		if err != nil {
			return "", fmt.Errorf("failed to read secret from file %s: %w", file, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if value := env().GetString(key); value != "" {
		return value, nil
	}

	envName := EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
	return "", fmt.Errorf("no secret configured: set a file or the %s environment variable", envName)
}

// GetPassword returns the database password from PasswordFile, or from the
// INGESTOR_DATABASE_PASSWORD environment variable.
func (d *DatabaseConfig) GetPassword() (string, error) {
	password, err := readSecret(d.PasswordFile, "database.password")
	if err != nil {
		return "", fmt.Errorf("no database password configured: %w", err)
	}
	return password, nil
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetStatusStoreType returns the status store type, defaulting to file
func (c *Config) GetStatusStoreType() string {
	if c.StatusStore.Type == "" {
		return StoreTypeFile
	}
	return c.StatusStore.Type
}

// GetSinkType returns the sink type, defaulting to file
func (c *Config) GetSinkType() string {
	if c.Sink.Type == "" {
		return StoreTypeFile
	}
	return c.Sink.Type
}

// GetStatusStorePath returns the status file or database path, defaulting per store type
func (c *Config) GetStatusStorePath() string {
	if c.StatusStore.Path != "" {
		return c.StatusStore.Path
	}
	if c.GetStatusStoreType() == StoreTypeSQLite {
		return DefaultStatusSQLite
	}
	return DefaultStatusFile
}

// GetSinkDir returns the directory of the file sink
func (c *Config) GetSinkDir() string {
	if c.Sink.Dir == "" {
		return DefaultSinkDir
	}
	return c.Sink.Dir
}

// GetHTTPTimeout returns the per-request timeout, or 0 for the client default
func (c *Config) GetHTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.HTTPTimeout)
	if err != nil {
		return 0
	}
	return d
}

// EnabledTasks returns the tasks that are not explicitly disabled, in file order
func (c *Config) EnabledTasks() []TaskConfig {
	enabled := make([]TaskConfig, 0, len(c.Tasks))
	for _, t := range c.Tasks {
		if t.IsEnabled() {
			enabled = append(enabled, t)
		}
	}
	return enabled
}

func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	switch c.GetStatusStoreType() {
	case StoreTypeFile, StoreTypeSQLite:
	case StoreTypePostgres:
		if c.Database == nil {
			errs = append(errs, fmt.Errorf("statusStore.type postgres requires a database section"))
		}
	default:
		errs = append(errs, fmt.Errorf("statusStore.type must be one of file, sqlite or postgres, got %q", c.StatusStore.Type))
	}

	switch c.GetSinkType() {
	case StoreTypeFile:
	case StoreTypePostgres:
		if c.Database == nil {
			errs = append(errs, fmt.Errorf("sink.type postgres requires a database section"))
		}
	default:
		errs = append(errs, fmt.Errorf("sink.type must be file or postgres, got %q", c.Sink.Type))
	}

	if len(c.Tasks) == 0 {
		errs = append(errs, fmt.Errorf("at least one task must be configured"))
	}

	seen := make(map[string]bool, len(c.Tasks))
	for i := range c.Tasks {
		task := &c.Tasks[i]
		if seen[task.Name] {
			errs = append(errs, fmt.Errorf("tasks[%d]: duplicate task name %q", i, task.Name))
		}
		seen[task.Name] = true

		if err := task.validate(); err != nil {
			errs = append(errs, fmt.Errorf("tasks[%d]: %w", i, err))
		}
	}

	if c.Schedule != nil {
		if err := c.Schedule.validate(); err != nil {
			errs = append(errs, fmt.Errorf("schedule: %w", err))
		}
	}

	switch strings.ToLower(c.Summary.Format) {
	case "", "text", "json", "yaml":
	default:
		errs = append(errs, fmt.Errorf("summary.format must be text, json or yaml, got %q", c.Summary.Format))
	}

	if c.HTTPTimeout != "" {
		if _, err := time.ParseDuration(c.HTTPTimeout); err != nil {
			errs = append(errs, fmt.Errorf("httpTimeout: %w", err))
		}
	}

	if c.Auth != nil {
		if err := c.Auth.validate(); err != nil {
			errs = append(errs, fmt.Errorf("auth: %w", err))
		}
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

// IsEnabled reports whether the task should be registered
func (t *TaskConfig) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// GetToken returns the source credential from TokenFile or INGESTOR_<NAME>_TOKEN
func (t *TaskConfig) GetToken() (string, error) {
	token, err := readSecret(t.TokenFile, t.Name+".token")
	if err != nil {
		return "", fmt.Errorf("task %s: %w", t.Name, err)
	}
	return token, nil
}

func (t *TaskConfig) validate() error {
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}

	if t.Endpoint == "" {
		return fmt.Errorf("%s: endpoint is required", t.Name)
	}
	if u, err := url.Parse(t.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s: endpoint must be an absolute URL, got %q", t.Name, t.Endpoint)
	}

	switch t.Source {
	case SourceSnapTrade:
		if t.ClientID == "" {
			return fmt.Errorf("%s: clientId is required for snaptrade", t.Name)
		}
	case SourceDiscord:
		if len(t.Channels) == 0 {
			return fmt.Errorf("%s: at least one channel is required for discord", t.Name)
		}
		if t.MaxPages < 0 {
			return fmt.Errorf("%s: maxPages cannot be negative", t.Name)
		}
	case SourceOHLCV:
		if len(t.Symbols) == 0 {
			return fmt.Errorf("%s: at least one symbol is required for ohlcv", t.Name)
		}
	default:
		return fmt.Errorf("%s: source must be one of snaptrade, discord or ohlcv, got %q", t.Name, t.Source)
	}

	if t.Policy != nil {
		if _, err := t.Policy.Build(); err != nil {
			return fmt.Errorf("%s: policy: %w", t.Name, err)
		}
	}

	return nil
}

// Build converts the YAML form into a window policy
func (p *PolicyConfig) Build() (window.Policy, error) {
	loc := time.UTC
	if p.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(p.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", p.Timezone, err)
		}
	}

	switch p.Type {
	case PolicyLookback:
		var d time.Duration
		if p.Default != "" {
			var err error
			d, err = time.ParseDuration(p.Default)
			if err != nil {
				return nil, fmt.Errorf("invalid default lookback: %w", err)
			}
			if d <= 0 {
				return nil, fmt.Errorf("default lookback must be positive, got %s", p.Default)
			}
		}
		return window.Lookback{Default: d}, nil
	case PolicyCalendarDay:
		if p.Offset < 0 {
			return nil, fmt.Errorf("offset cannot be negative, got %d", p.Offset)
		}
		policy := window.CalendarDay{Offset: p.Offset, Location: loc, SkipWeekends: p.SkipWeekends}
		if p.Date != "" {
			date, err := time.ParseInLocation(time.DateOnly, p.Date, loc)
			if err != nil {
				return nil, fmt.Errorf("invalid date %q: %w", p.Date, err)
			}
			policy.Date = date
		}
		return policy, nil
	case PolicyPreviousBusinessDay:
		return window.PreviousBusinessDay(loc), nil
	case PolicyUnbounded:
		return window.Unbounded{}, nil
	default:
		return nil, fmt.Errorf("type must be one of lookback, calendarDay, previousBusinessDay or unbounded, got %q", p.Type)
	}
}

// GetInterval returns the schedule interval, defaulting to DefaultScheduleInterval
func (s *ScheduleConfig) GetInterval() time.Duration {
	if s == nil || s.Interval == "" {
		return DefaultScheduleInterval
	}
	d, err := time.ParseDuration(s.Interval)
	if err != nil {
		return DefaultScheduleInterval
	}
	return d
}

// GetJitter returns the configured jitter, or 0
func (s *ScheduleConfig) GetJitter() time.Duration {
	if s == nil || s.Jitter == "" {
		return 0
	}
	d, err := time.ParseDuration(s.Jitter)
	if err != nil {
		return 0
	}
	return d
}

// GetConcurrency returns the configured concurrency, at least 1
func (s *ScheduleConfig) GetConcurrency() int {
	if s == nil || s.Concurrency < 1 {
		return 1
	}
	return s.Concurrency
}

func (s *ScheduleConfig) validate() error {
	if s.Interval != "" {
		d, err := time.ParseDuration(s.Interval)
		if err != nil {
			return fmt.Errorf("invalid interval: %w", err)
		}
		if d < time.Minute {
			return fmt.Errorf("interval must be at least 1m, got %s", s.Interval)
		}
	}
	if s.Jitter != "" {
		d, err := time.ParseDuration(s.Jitter)
		if err != nil {
			return fmt.Errorf("invalid jitter: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("jitter cannot be negative, got %s", s.Jitter)
		}
	}
	if s.Concurrency < 0 {
		return fmt.Errorf("concurrency cannot be negative, got %d", s.Concurrency)
	}
	return nil
}
