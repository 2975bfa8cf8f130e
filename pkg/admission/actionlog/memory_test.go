package actionlog

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_CountSince(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{0, 30 * time.Second, 90 * time.Second} {
		if err := store.Insert(ctx, ActionRESTAPI, "user-1", base.Add(offset)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	// A different source and a different action must not leak into counts.
	store.Insert(ctx, ActionRESTAPI, "user-2", base)
	store.Insert(ctx, ActionPreview, "user-1", base)

	count, err := store.CountSince(ctx, ActionRESTAPI, "user-1", base.Add(10*time.Second))
	if err != nil {
		t.Fatalf("CountSince: %v", err)
	}
	if count != 2 {
		t.Fatalf("windowed count = %d, want 2", count)
	}

	// Zero time means no lower bound.
	count, err = store.CountSince(ctx, ActionRESTAPI, "user-1", time.Time{})
	if err != nil {
		t.Fatalf("CountSince: %v", err)
	}
	if count != 3 {
		t.Fatalf("all-time count = %d, want 3", count)
	}
}

func TestMemoryStore_CountInPeriod(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	// One record in January, two in February.
	store.Insert(ctx, ActionUsageCharge, "job-7", time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC))
	store.Insert(ctx, ActionUsageCharge, "job-7", time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC))
	store.Insert(ctx, ActionUsageCharge, "job-7", time.Date(2024, 2, 3, 9, 0, 0, 0, time.UTC))

	since := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	matching, err := store.CountInPeriod(ctx, ActionUsageCharge, "job-7", since, FieldMonth, 2, true)
	if err != nil {
		t.Fatalf("CountInPeriod: %v", err)
	}
	if matching != 2 {
		t.Fatalf("records in month 2 = %d, want 2", matching)
	}

	other, err := store.CountInPeriod(ctx, ActionUsageCharge, "job-7", since, FieldMonth, 2, false)
	if err != nil {
		t.Fatalf("CountInPeriod: %v", err)
	}
	if other != 1 {
		t.Fatalf("records outside month 2 = %d, want 1", other)
	}
}

func TestMemoryStore_DeleteBefore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	store.Insert(ctx, ActionRESTAPI, "user-1", base.Add(-48*time.Hour))
	store.Insert(ctx, ActionRESTAPI, "user-1", base.Add(-1*time.Hour))
	store.Insert(ctx, ActionPreview, "user-1", base.Add(-48*time.Hour))

	deleted, err := store.DeleteBefore(ctx, ActionRESTAPI, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	// Records for other actions survive even when older than the cutoff.
	if store.Len() != 2 {
		t.Fatalf("remaining records = %d, want 2", store.Len())
	}
}
