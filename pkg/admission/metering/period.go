package metering

import (
	"fmt"
	"time"

	"mercator-hq/themis/pkg/admission/actionlog"
)

// Granularity is the calendar unit used to decide "one charge per period".
type Granularity string

const (
	// GranularityMonth charges at most once per calendar month.
	GranularityMonth Granularity = "month"

	// GranularityDay charges at most once per calendar day.
	GranularityDay Granularity = "day"

	// GranularityMinute charges at most once per minute. Intended for
	// integration testing against a live billing collaborator.
	GranularityMinute Granularity = "minute"
)

// Valid reports whether g is a recognized granularity.
func (g Granularity) Valid() bool {
	switch g {
	case GranularityMonth, GranularityDay, GranularityMinute:
		return true
	}
	return false
}

// Lookback returns the trailing interval scanned for prior charge records.
// It is sized to cover one full period: 28 days for month, one day for day,
// one minute for minute.
func (g Granularity) Lookback() time.Duration {
	switch g {
	case GranularityDay:
		return 24 * time.Hour
	case GranularityMinute:
		return time.Minute
	default:
		return 28 * 24 * time.Hour
	}
}

// Field returns the action log sub-field matching this granularity.
func (g Granularity) Field() actionlog.PeriodField {
	switch g {
	case GranularityDay:
		return actionlog.FieldDay
	case GranularityMinute:
		return actionlog.FieldMinute
	default:
		return actionlog.FieldMonth
	}
}

// PeriodOf returns the current period identifier for t: month of year (1-12),
// day of month (1-31), or minute of hour (0-59), extracted in UTC.
//
// All calendar arithmetic for the metering gate funnels through this function
// and PeriodBounds so the gate's core logic stays independent of it.
func PeriodOf(t time.Time, g Granularity) int {
	u := t.UTC()
	switch g {
	case GranularityDay:
		return u.Day()
	case GranularityMinute:
		return u.Minute()
	default:
		return int(u.Month())
	}
}

// PeriodBounds returns the UTC start (inclusive) and end (exclusive) of the
// period containing t.
func PeriodBounds(t time.Time, g Granularity) (start, end time.Time) {
	u := t.UTC()
	switch g {
	case GranularityDay:
		start = time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 0, 1)
	case GranularityMinute:
		start = u.Truncate(time.Minute)
		return start, start.Add(time.Minute)
	default:
		start = time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	}
}

// FormatStamp renders a timestamp the way the billing collaborator expects:
// RFC 3339 in UTC, truncated to the minute.
func FormatStamp(t time.Time) string {
	return t.UTC().Truncate(time.Minute).Format("2006-01-02T15:04:05Z")
}

func (g Granularity) String() string {
	return string(g)
}

// ParseGranularity parses a configuration string into a Granularity.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(s)
	if !g.Valid() {
		return "", fmt.Errorf("unknown metering granularity %q (want month, day, or minute)", s)
	}
	return g, nil
}
