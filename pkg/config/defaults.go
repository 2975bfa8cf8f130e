package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8085"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	// Store defaults
	DefaultStoreBackend      = "sqlite"
	DefaultStorePath         = "data/actions.db"
	DefaultStoreBusyTimeout  = 5 * time.Second
	DefaultStoreMaxOpenConns = 4

	// Metering defaults
	DefaultMeteringGranularity = "month"
	DefaultMeteringFreeTrial   = true

	// Billing defaults
	DefaultBillingApplicationName = "Themis"
	DefaultBillingTimeout         = 10 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultMetricsEnabled   = true
	DefaultMetricsPath      = "/metrics"
	DefaultEventsBufferSize = 1000

	// Retention defaults
	DefaultRetentionSchedule = "0 4 * * *"
)

// DefaultUserLimits is the built-in user/IP-scoped limit table. Values match
// the production deployment this engine was extracted from; deployments
// override them per action in the config file.
func DefaultUserLimits() map[string]LimitRule {
	const (
		minute = 60
		day    = 24 * 3600
		week   = 7 * day
		month  = 28 * day
	)
	return map[string]LimitRule{
		"user_create":          {Threshold: 1000, WindowSeconds: week},
		"stream_create":        {Threshold: 10000, WindowSeconds: month},
		"commit_create":        {Threshold: 86400, WindowSeconds: day},
		"subscription":         {Threshold: 600, WindowSeconds: minute},
		"rest_api":             {Threshold: 2400, WindowSeconds: minute},
		"webhook_create":       {Threshold: 1000, WindowSeconds: day},
		"preview":              {Threshold: 1000, WindowSeconds: day},
		"file_upload":          {Threshold: 1000, WindowSeconds: day},
		"branch_create":        {Threshold: 1000},
		"token_create":         {Threshold: 1000},
		"active_subscriptions": {Threshold: 100},
		"active_connections":   {Threshold: 100},
	}
}

// ApplyDefaults fills zero-valued fields with defaults. The limit tables are
// defaulted only when entirely absent: an explicitly empty table means "no
// limits for this scope".
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath
	}
	if cfg.Store.BusyTimeout == 0 {
		cfg.Store.BusyTimeout = DefaultStoreBusyTimeout
	}
	if cfg.Store.MaxOpenConns == 0 {
		cfg.Store.MaxOpenConns = DefaultStoreMaxOpenConns
	}

	if cfg.Limits.User == nil {
		cfg.Limits.User = DefaultUserLimits()
	}
	// The project table defaults to empty: project ceilings are
	// deployment-specific and enabling them implicitly would block traffic.

	if cfg.Metering.Granularity == "" {
		cfg.Metering.Granularity = DefaultMeteringGranularity
	}

	if cfg.Billing.ApplicationName == "" {
		cfg.Billing.ApplicationName = DefaultBillingApplicationName
	}
	if cfg.Billing.Timeout == 0 {
		cfg.Billing.Timeout = DefaultBillingTimeout
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Events.BufferSize == 0 {
		cfg.Telemetry.Events.BufferSize = DefaultEventsBufferSize
	}

	if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = DefaultRetentionSchedule
	}
}

// NewDefault returns a configuration with all defaults applied and metrics
// enabled. Used when no config file is given.
func NewDefault() *Config {
	cfg := &Config{}
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Metering.FreeTrial = DefaultMeteringFreeTrial
	ApplyDefaults(cfg)
	return cfg
}
