package actionlog

import (
	"context"
	"errors"
	"time"
)

// Action is a named category of operation subject to limiting or metering.
// The set of actions is closed; configuration tables are keyed by these names.
type Action string

const (
	// ActionUserCreate is a new account registration.
	ActionUserCreate Action = "user_create"

	// ActionStreamCreate is the creation of a new stream.
	ActionStreamCreate Action = "stream_create"

	// ActionCommitCreate is the creation of a new commit on a stream.
	ActionCommitCreate Action = "commit_create"

	// ActionSubscription is a realtime subscription registration.
	ActionSubscription Action = "subscription"

	// ActionRESTAPI is a generic REST API request.
	ActionRESTAPI Action = "rest_api"

	// ActionWebhookCreate is the creation of a webhook.
	ActionWebhookCreate Action = "webhook_create"

	// ActionPreview is a preview generation request.
	ActionPreview Action = "preview"

	// ActionFileUpload is a file upload request.
	ActionFileUpload Action = "file_upload"

	// ActionBranchCreate is the creation of a branch (static cap per stream).
	ActionBranchCreate Action = "branch_create"

	// ActionTokenCreate is the creation of an API token (static cap per user).
	ActionTokenCreate Action = "token_create"

	// ActionActiveSubscriptions caps concurrent subscriptions per user.
	ActionActiveSubscriptions Action = "active_subscriptions"

	// ActionActiveConnections caps concurrent connections per source IP.
	ActionActiveConnections Action = "active_connections"

	// ActionUsageCharge marks a billable usage decision for a job number.
	// Rows with this action drive the metering gate's once-per-period logic.
	ActionUsageCharge Action = "usage_charge"
)

// PeriodField selects the calendar sub-field extracted from a record's
// timestamp when matching records against a billing period.
type PeriodField string

const (
	// FieldMonth extracts the month of year (1-12).
	FieldMonth PeriodField = "month"

	// FieldDay extracts the day of month (1-31).
	FieldDay PeriodField = "day"

	// FieldMinute extracts the minute of hour (0-59).
	FieldMinute PeriodField = "minute"
)

// Record is a single append-only entry in the action log. Records are never
// updated or deleted outside of retention pruning.
type Record struct {
	Action    Action
	Source    string
	Timestamp time.Time
}

// ErrStorageFailure is returned (wrapped) when the backing store cannot be
// reached or a query fails. Callers must treat it as fatal for the operation
// in flight: the engine never silently falls back to allow or deny.
var ErrStorageFailure = errors.New("action log storage failure")

// Store is the persistence interface for the action log. It is the single
// cross-process source of truth: every count is computed from it on demand.
//
// Implementations must be safe for concurrent use. Writes are unconditional
// single-row inserts; no read-modify-write transactions are used, so
// concurrent writers need no coordination.
type Store interface {
	// Insert appends a record. The row is permanent even if the action it
	// represents later fails downstream.
	Insert(ctx context.Context, action Action, source string, ts time.Time) error

	// CountSince returns the number of records for (action, source) with
	// Timestamp strictly after since. A zero since counts all records.
	CountSince(ctx context.Context, action Action, source string, since time.Time) (int64, error)

	// CountInPeriod returns the number of records for (action, source) with
	// Timestamp strictly after since whose calendar sub-field (selected by
	// field) equals period when match is true, or differs from it when match
	// is false. Sub-fields are extracted in UTC.
	CountInPeriod(ctx context.Context, action Action, source string, since time.Time, field PeriodField, period int, match bool) (int64, error)

	// DeleteBefore removes records for action older than cutoff and reports
	// how many were deleted. Used only by retention pruning.
	DeleteBefore(ctx context.Context, action Action, cutoff time.Time) (int64, error)

	// Close releases resources held by the store.
	Close() error
}
