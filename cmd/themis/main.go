// Themis is the admission-control and usage-metering engine for multi-tenant
// API servers.
//
// It decides, per incoming action, whether to allow it (sliding-window rate
// limiting, user- and project-scoped) and whether to emit a billing event for
// it (once-per-calendar-period metering with a free-trial exemption), backed
// by a shared persistent action log so multiple server processes converge on
// the same decisions without shared memory.
//
// Usage:
//
//	# Start the admission API with default configuration
//	themis run
//
//	# Start with a custom configuration file
//	themis run --config /etc/themis/config.yaml
//
//	# Validate a configuration file
//	themis validate --config config.yaml
//
//	# Show version information
//	themis version
package main

func main() {
	Execute()
}
