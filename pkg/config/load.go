package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads, defaults, and validates a YAML configuration file.
//
// Boolean fields whose default is true (metrics enabled, free trial) are
// seeded before unmarshalling, so an explicit `false` in the file survives
// defaulting. Secrets are then overridden from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := &Config{}
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Metering.FreeTrial = DefaultMeteringFreeTrial

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides lets secrets be supplied via the environment instead of
// the config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("THEMIS_BILLING_API_KEY"); v != "" {
		cfg.Billing.APIKey = v
	}
	if v := os.Getenv("THEMIS_EVENTS_API_KEY"); v != "" {
		cfg.Telemetry.Events.APIKey = v
	}
}
