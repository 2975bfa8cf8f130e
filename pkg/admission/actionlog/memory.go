package actionlog

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-process slice of records.
//
// It is the default for tests and for single-process deployments that do not
// need the log to survive restarts or to be shared between processes. Counts
// scan the slice; with realistic per-key volumes and retention pruning this
// stays cheap.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStore creates an empty in-memory action log.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert appends a record.
func (m *MemoryStore) Insert(_ context.Context, action Action, source string, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, Record{Action: action, Source: source, Timestamp: ts.UTC()})
	return nil
}

// CountSince counts records for (action, source) newer than since.
func (m *MemoryStore) CountSince(_ context.Context, action Action, source string, since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, r := range m.records {
		if r.Action != action || r.Source != source {
			continue
		}
		if since.IsZero() || r.Timestamp.After(since) {
			count++
		}
	}
	return count, nil
}

// CountInPeriod counts records in the lookback whose calendar sub-field
// matches (or differs from) the given period value.
func (m *MemoryStore) CountInPeriod(_ context.Context, action Action, source string, since time.Time, field PeriodField, period int, match bool) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, r := range m.records {
		if r.Action != action || r.Source != source {
			continue
		}
		if !since.IsZero() && !r.Timestamp.After(since) {
			continue
		}
		if (extractField(r.Timestamp, field) == period) == match {
			count++
		}
	}
	return count, nil
}

// DeleteBefore removes records for action older than cutoff.
func (m *MemoryStore) DeleteBefore(_ context.Context, action Action, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	var deleted int64
	for _, r := range m.records {
		if r.Action == action && r.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return deleted, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// Len reports the number of records currently held. Test helper.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func extractField(t time.Time, field PeriodField) int {
	u := t.UTC()
	switch field {
	case FieldMonth:
		return int(u.Month())
	case FieldDay:
		return u.Day()
	case FieldMinute:
		return u.Minute()
	default:
		return -1
	}
}
