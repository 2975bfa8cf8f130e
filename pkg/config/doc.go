// Package config defines the YAML configuration surface for the Themis
// admission engine: the action log store, the per-action limit tables for
// user and project scopes, the metering gate, and the external billing and
// telemetry collaborators.
//
// Loading follows read, default, env-override, validate; validation errors
// carry dotted field paths and are collected rather than returned one at a
// time.
package config
