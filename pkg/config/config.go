package config

import "time"

// Config is the root configuration structure for the Themis admission engine.
type Config struct {
	// Server contains the HTTP admission API configuration.
	Server ServerConfig `yaml:"server"`

	// Store configures the shared action log backend.
	Store StoreConfig `yaml:"store"`

	// Limits contains the per-action rate limit tables.
	Limits LimitsConfig `yaml:"limits"`

	// Metering configures the once-per-period billing gate.
	Metering MeteringConfig `yaml:"metering"`

	// Billing configures the external billing collaborator client.
	Billing BillingConfig `yaml:"billing"`

	// Telemetry contains logging, metrics, and event capture settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Retention configures scheduled pruning of aged-out log records.
	Retention RetentionConfig `yaml:"retention"`
}

// ServerConfig contains configuration for the HTTP admission API server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8085"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 15s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 15s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout. Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown. Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig configures the action log backend.
type StoreConfig struct {
	// Backend selects the storage backend: "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// Path is the SQLite database file path (sqlite backend only).
	// Default: "data/actions.db"
	Path string `yaml:"path"`

	// BusyTimeout is how long SQLite waits for locks. Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// MaxOpenConns limits the SQLite connection pool. Default: 4
	MaxOpenConns int `yaml:"max_open_conns"`
}

// LimitRule is one action's configured ceiling.
type LimitRule struct {
	// Threshold is the inclusive limit: an action is blocked once the
	// recorded count in the window plus the attempt under evaluation
	// reaches it.
	Threshold int64 `yaml:"threshold"`

	// WindowSeconds is the trailing window length. Zero means the limit
	// applies over all recorded history and never decays.
	WindowSeconds int64 `yaml:"window_seconds"`
}

// LimitsConfig contains the per-action limit tables for both identity scopes.
// The user table is keyed by user id or source IP; the project table by
// project/job identifier. The two tables are independent and both must pass.
type LimitsConfig struct {
	// User is the user/IP-scoped limit table, keyed by action name.
	User map[string]LimitRule `yaml:"user"`

	// Project is the project-scoped limit table, keyed by action name.
	Project map[string]LimitRule `yaml:"project"`

	// Watch reloads the limit tables when the config file changes.
	// Default: false
	Watch bool `yaml:"watch"`
}

// MeteringConfig configures the billing gate.
type MeteringConfig struct {
	// Enabled turns the metering gate on. Default: false
	Enabled bool `yaml:"enabled"`

	// Threshold is the inclusive charge threshold over prior periods.
	// Zero means "charge every period". Default: 0
	Threshold int64 `yaml:"threshold"`

	// Granularity is the billing period unit: "month", "day", or "minute".
	// Default: "month"
	Granularity string `yaml:"granularity"`

	// FreeTrial exempts a source's first-ever period from charging
	// (only applies when Threshold is zero). Default: true
	FreeTrial bool `yaml:"free_trial"`

	// Cost is the charge attached to each usage summary.
	Cost float64 `yaml:"cost"`

	// Narrative is attached to each usage summary.
	Narrative string `yaml:"narrative"`
}

// BillingConfig configures the external billing collaborator client.
type BillingConfig struct {
	// Enabled turns outbound billing delivery on. Default: false
	Enabled bool `yaml:"enabled"`

	// URL is the collaborator's API root, without trailing slash.
	URL string `yaml:"url"`

	// APIKey authenticates requests. Overridable via THEMIS_BILLING_API_KEY.
	APIKey string `yaml:"api_key"`

	// ApplicationName identifies this application in usage reports.
	// Default: "Themis"
	ApplicationName string `yaml:"application_name"`

	// Timeout bounds each HTTP request. Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures Prometheus metrics exposure.
	Metrics MetricsConfig `yaml:"metrics"`

	// Events configures fire-and-forget product telemetry capture.
	Events EventsConfig `yaml:"events"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format: "json" or "text". Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled exposes the metrics endpoint. Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the metrics endpoint path. Default: "/metrics"
	Path string `yaml:"path"`
}

// EventsConfig configures the telemetry events client.
type EventsConfig struct {
	// Enabled turns event capture on. Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the capture API root.
	Endpoint string `yaml:"endpoint"`

	// APIKey authenticates capture calls. Overridable via
	// THEMIS_EVENTS_API_KEY.
	APIKey string `yaml:"api_key"`

	// BufferSize is the queued-event capacity. Default: 1000
	BufferSize int `yaml:"buffer_size"`
}

// RetentionConfig configures scheduled pruning of log records that no
// configured window can still observe.
type RetentionConfig struct {
	// Enabled turns scheduled pruning on. Default: false
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron expression for pruning runs.
	// Default: "0 4 * * *" (daily at 4 AM)
	Schedule string `yaml:"schedule"`
}
