package billing

import "errors"

// UsageEvent is a single metered tick reported to the billing collaborator.
// Field names follow the collaborator's wire contract.
type UsageEvent struct {
	// EventDateTime is the event time, RFC 3339 UTC truncated to the minute.
	EventDateTime string `json:"eventDateTime"`

	// ApplicationName identifies the reporting application.
	ApplicationName string `json:"applicationName"`

	// ProcessName identifies the reporting process.
	ProcessName string `json:"processName"`

	// Ticks is the number of usage units reported.
	Ticks int `json:"ticks"`

	// JobNumber is the job/project identifier the usage is attributed to.
	JobNumber string `json:"jobNumber"`

	// UserName identifies the acting user.
	UserName string `json:"userName"`
}

// UsageSummary is a chargeable usage report for one elapsed billing period.
type UsageSummary struct {
	// UsageStartDateTime is the inclusive start of the billed period.
	UsageStartDateTime string `json:"usageStartDateTime"`

	// UsageEndDateTime is the exclusive end of the billed period.
	UsageEndDateTime string `json:"usageEndDateTime"`

	// ApplicationName identifies the reporting application.
	ApplicationName string `json:"applicationName"`

	// Cost is the charge for the period.
	Cost float64 `json:"cost"`

	// JobNumber is the job/project identifier being charged.
	JobNumber string `json:"jobNumber"`

	// UserName identifies the acting user.
	UserName string `json:"userName"`

	// Narrative is a free-text description attached to the charge.
	Narrative string `json:"narrative"`
}

// ErrDuplicateSubmission is returned when the collaborator answers 409: the
// event or summary was already submitted for this period. This is an
// expected outcome, not a failure; callers log it at debug severity.
var ErrDuplicateSubmission = errors.New("duplicate submission refused by billing collaborator")
