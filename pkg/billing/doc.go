// Package billing provides the HTTP client for the external usage billing
// collaborator.
//
// The collaborator exposes two endpoints: POST /UsageEvent for single usage
// ticks and POST /UsageSummary for per-period charges. A 201 response is
// success; a 409 signals the submission already exists for the period and is
// surfaced as ErrDuplicateSubmission, not as a failure.
//
// Delivery failures never propagate to the user-facing request that
// triggered them; callers log and move on.
package billing
