// Package metering implements the once-per-calendar-period billing gate.
//
// # Overview
//
// The gate answers "should this source be charged for the current period?"
// by inspecting charge-marker records in the shared action log, so multiple
// server processes converge on a single charge per period without
// coordination. Calendar arithmetic (month-of-year, day-of-month,
// minute-of-hour) is isolated in pure functions (PeriodOf, PeriodBounds) so
// the gate's state machine is independent of it.
//
// # Side effects
//
// A positive decision forwards a usage summary to the billing collaborator
// in the background and emits a charge-confirmed or charge-refused telemetry
// event depending on the collaborator's answer. Delivery failures are logged
// and never block or fail the user-facing action that triggered them.
package metering
