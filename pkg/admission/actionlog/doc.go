// Package actionlog provides the append-only record of admission decisions.
//
// # Overview
//
// The action log is the single cross-process source of truth for both rate
// limiting and usage metering. Every accepted action (and every billing
// charge marker) is recorded as an (action, source, timestamp) row; counts
// over trailing windows and calendar periods are computed from these rows on
// demand. Rejected attempts are never recorded, so a window heals purely
// through the passage of time.
//
// # Backends
//
//   - Memory: fast in-process storage for tests and single-process use
//   - SQLite: durable storage shareable by multiple server processes
//
// # Consistency
//
// Writes are unconditional single-row inserts and reads are single-statement
// counts. No multi-step transactions are used, so concurrent writers across
// processes need no coordination; the trade-off is a bounded overshoot past
// configured thresholds under concurrent load.
package actionlog
