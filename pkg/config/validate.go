package config

import (
	"fmt"
	"net/url"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "billing.url").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks the entire configuration and returns a ValidationError if
// any rules fail. All errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateLimitTable("limits.user", cfg.Limits.User)...)
	errs = append(errs, validateLimitTable("limits.project", cfg.Limits.Project)...)
	errs = append(errs, validateMetering(&cfg.Metering)...)
	errs = append(errs, validateBilling(cfg)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateStore(cfg *StoreConfig) []FieldError {
	var errs []FieldError
	switch cfg.Backend {
	case "memory", "sqlite":
	default:
		errs = append(errs, FieldError{
			Field:   "store.backend",
			Message: fmt.Sprintf("unknown backend %q (want memory or sqlite)", cfg.Backend),
		})
	}
	if cfg.Backend == "sqlite" && cfg.Path == "" {
		errs = append(errs, FieldError{Field: "store.path", Message: "path is required for the sqlite backend"})
	}
	return errs
}

func validateLimitTable(field string, table map[string]LimitRule) []FieldError {
	var errs []FieldError
	for action, rule := range table {
		if rule.Threshold < 0 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("%s.%s.threshold", field, action),
				Message: "threshold must not be negative",
			})
		}
		if rule.WindowSeconds < 0 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("%s.%s.window_seconds", field, action),
				Message: "window_seconds must not be negative",
			})
		}
	}
	return errs
}

func validateMetering(cfg *MeteringConfig) []FieldError {
	var errs []FieldError
	switch cfg.Granularity {
	case "month", "day", "minute":
	default:
		errs = append(errs, FieldError{
			Field:   "metering.granularity",
			Message: fmt.Sprintf("unknown granularity %q (want month, day, or minute)", cfg.Granularity),
		})
	}
	if cfg.Threshold < 0 {
		errs = append(errs, FieldError{Field: "metering.threshold", Message: "threshold must not be negative"})
	}
	if cfg.Cost < 0 {
		errs = append(errs, FieldError{Field: "metering.cost", Message: "cost must not be negative"})
	}
	return errs
}

func validateBilling(cfg *Config) []FieldError {
	var errs []FieldError
	if !cfg.Billing.Enabled {
		return nil
	}
	if cfg.Billing.URL == "" {
		errs = append(errs, FieldError{Field: "billing.url", Message: "url is required when billing is enabled"})
	} else if u, err := url.Parse(cfg.Billing.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, FieldError{
			Field:   "billing.url",
			Message: fmt.Sprintf("invalid url %q", cfg.Billing.URL),
		})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q (want json or text)", cfg.Logging.Format),
		})
	}
	if cfg.Events.Enabled && cfg.Events.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.events.endpoint",
			Message: "endpoint is required when events are enabled",
		})
	}
	return errs
}
