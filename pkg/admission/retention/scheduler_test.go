package retention

import (
	"context"
	"testing"
	"time"

	"mercator-hq/themis/pkg/admission/actionlog"
)

func TestScheduler_InvalidSchedule(t *testing.T) {
	p := NewPruner(actionlog.NewMemoryStore(), time.Hour)
	s := NewScheduler(p, "not a cron expression")

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("invalid schedule should be rejected")
	}
}

func TestScheduler_EmptyScheduleDisabled(t *testing.T) {
	p := NewPruner(actionlog.NewMemoryStore(), time.Hour)
	s := NewScheduler(p, "")

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("empty schedule should be a no-op, got %v", err)
	}
	s.Stop()
}

func TestScheduler_StartStop(t *testing.T) {
	p := NewPruner(actionlog.NewMemoryStore(), time.Hour)
	s := NewScheduler(p, "0 4 * * *")

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Cancellation stops the scheduler; Stop afterwards is idempotent.
	cancel()
	s.Stop()
	s.Stop()
}
