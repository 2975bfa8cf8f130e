package metering

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mercator-hq/themis/pkg/admission/actionlog"
	"mercator-hq/themis/pkg/billing"
)

// fakeBilling records delivered reports and fails with err when set.
type fakeBilling struct {
	mu        sync.Mutex
	events    []billing.UsageEvent
	summaries []billing.UsageSummary
	err       error
}

func (f *fakeBilling) SendUsageEvent(_ context.Context, e billing.UsageEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakeBilling) SendUsageSummary(_ context.Context, s billing.UsageSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.summaries = append(f.summaries, s)
	return nil
}

func (f *fakeBilling) deliveredEvents() []billing.UsageEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]billing.UsageEvent(nil), f.events...)
}

func (f *fakeBilling) delivered() []billing.UsageSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]billing.UsageSummary(nil), f.summaries...)
}

// fakeEvents records captured telemetry events.
type fakeEvents struct {
	mu     sync.Mutex
	events []capturedEvent
}

type capturedEvent struct {
	name       string
	distinctID string
	properties map[string]any
}

func (f *fakeEvents) Capture(event, distinctID string, properties map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, capturedEvent{event, distinctID, properties})
}

func (f *fakeEvents) named(name string) []capturedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []capturedEvent
	for _, e := range f.events {
		if e.name == name {
			out = append(out, e)
		}
	}
	return out
}

type failingStore struct {
	actionlog.Store
}

var errMeterStoreDown = errors.New("store down")

func (failingStore) CountSince(context.Context, actionlog.Action, string, time.Time) (int64, error) {
	return 0, errMeterStoreDown
}

func (failingStore) CountInPeriod(context.Context, actionlog.Action, string, time.Time, actionlog.PeriodField, int, bool) (int64, error) {
	return 0, errMeterStoreDown
}

type gateFixture struct {
	gate    *Gate
	store   *actionlog.MemoryStore
	billing *fakeBilling
	events  *fakeEvents
	clock   time.Time
}

func newGateFixture(t *testing.T, cfg Config) *gateFixture {
	t.Helper()
	f := &gateFixture{
		store:   actionlog.NewMemoryStore(),
		billing: &fakeBilling{},
		events:  &fakeEvents{},
		clock:   time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
	}
	if cfg.ApplicationName == "" {
		cfg.ApplicationName = "themis-test"
	}
	f.gate = NewGate(cfg, GateDeps{
		Store:   f.store,
		Billing: f.billing,
		Events:  f.events,
	})
	f.gate.now = func() time.Time { return f.clock }
	return f
}

func (f *gateFixture) shouldCharge(t *testing.T) bool {
	t.Helper()
	charge, err := f.gate.ShouldCharge(context.Background(), "", "job-7", "actor-1")
	if err != nil {
		t.Fatalf("ShouldCharge: %v", err)
	}
	return charge
}

func TestGate_ChargesOncePerMonth(t *testing.T) {
	f := newGateFixture(t, Config{Granularity: GranularityMonth, Cost: 25})

	// First call of January charges.
	f.clock = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	if !f.shouldCharge(t) {
		t.Fatal("first call in a period should charge")
	}

	// A later call in the same month finds the marker.
	f.clock = time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC)
	if f.shouldCharge(t) {
		t.Fatal("second call within the same month should not charge")
	}

	// A new month charges again.
	f.clock = time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	if !f.shouldCharge(t) {
		t.Fatal("first call of the next month should charge")
	}
	f.clock = time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC)
	if f.shouldCharge(t) {
		t.Fatal("repeat call in February should not charge")
	}

	f.gate.Close()
	if got := len(f.billing.delivered()); got != 2 {
		t.Fatalf("delivered summaries = %d, want 2", got)
	}
	// Each charge also reports a usage tick.
	if got := len(f.billing.deliveredEvents()); got != 2 {
		t.Fatalf("delivered usage events = %d, want 2", got)
	}
}

func TestGate_RepeatCallsAreIdempotent(t *testing.T) {
	f := newGateFixture(t, Config{Granularity: GranularityMonth})

	var charges int
	for i := 0; i < 5; i++ {
		if f.shouldCharge(t) {
			charges++
		}
	}
	if charges != 1 {
		t.Fatalf("charges within one period = %d, want exactly 1", charges)
	}
}

func TestGate_FreeTrialConsumedOnce(t *testing.T) {
	f := newGateFixture(t, Config{Granularity: GranularityMonth, FreeTrial: true})

	// The first record ever consumes the trial instead of charging.
	if f.shouldCharge(t) {
		t.Fatal("trial period should not charge")
	}
	trials := f.events.named("usage_trial_started")
	if len(trials) != 1 {
		t.Fatalf("trial events = %d, want 1", len(trials))
	}
	if trials[0].distinctID != "actor-1" {
		t.Fatalf("trial event actor = %q, want actor-1", trials[0].distinctID)
	}

	// Later calls in the trial period are already covered by the marker.
	f.clock = f.clock.Add(72 * time.Hour)
	if f.shouldCharge(t) {
		t.Fatal("trial period should stay uncharged")
	}
	if got := f.events.named("usage_trial_started"); len(got) != 1 {
		t.Fatalf("trial events after repeat = %d, want 1", len(got))
	}

	// The next period charges normally.
	f.clock = time.Date(2024, 2, 5, 10, 0, 0, 0, time.UTC)
	if !f.shouldCharge(t) {
		t.Fatal("period after the trial should charge")
	}

	f.gate.Close()
	if got := len(f.billing.delivered()); got != 1 {
		t.Fatalf("delivered summaries = %d, want 1", got)
	}
}

func TestGate_ThresholdDelaysFirstCharge(t *testing.T) {
	f := newGateFixture(t, Config{Granularity: GranularityDay, Threshold: 2})

	// Day one: no prior-period activity within the lookback.
	f.clock = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	if f.shouldCharge(t) {
		t.Fatal("first day should stay under the threshold")
	}

	// Same day again: the marker makes it already evaluated.
	f.clock = time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	if f.shouldCharge(t) {
		t.Fatal("same-day repeat should not charge")
	}

	// Next day: the prior day's activity crosses the threshold.
	f.clock = time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC)
	if !f.shouldCharge(t) {
		t.Fatal("second active day should charge")
	}
}

func TestGate_EmptySourceNeverCharged(t *testing.T) {
	f := newGateFixture(t, Config{Granularity: GranularityMonth})

	charge, err := f.gate.ShouldCharge(context.Background(), "", "", "actor-1")
	if err != nil {
		t.Fatalf("ShouldCharge: %v", err)
	}
	if charge {
		t.Fatal("a call without a job number must not charge")
	}
	if f.store.Len() != 0 {
		t.Fatal("a call without a job number must not be recorded")
	}
}

func TestGate_SummaryFields(t *testing.T) {
	f := newGateFixture(t, Config{
		Granularity:     GranularityMonth,
		Cost:            25,
		ApplicationName: "themis",
		Narrative:       "monthly platform usage",
	})
	f.clock = time.Date(2024, 1, 15, 10, 42, 30, 0, time.UTC)

	if !f.shouldCharge(t) {
		t.Fatal("expected a charge")
	}
	f.gate.Close()

	summaries := f.billing.delivered()
	if len(summaries) != 1 {
		t.Fatalf("delivered summaries = %d, want 1", len(summaries))
	}
	s := summaries[0]
	if s.UsageStartDateTime != "2024-01-01T00:00:00Z" {
		t.Errorf("start = %q", s.UsageStartDateTime)
	}
	if s.UsageEndDateTime != "2024-02-01T00:00:00Z" {
		t.Errorf("end = %q", s.UsageEndDateTime)
	}
	if s.ApplicationName != "themis" || s.Cost != 25 {
		t.Errorf("application/cost = %q/%v", s.ApplicationName, s.Cost)
	}
	if s.JobNumber != "job-7" || s.UserName != "actor-1" {
		t.Errorf("job/user = %q/%q", s.JobNumber, s.UserName)
	}
	if s.Narrative != "monthly platform usage" {
		t.Errorf("narrative = %q", s.Narrative)
	}

	confirmed := f.events.named("usage_charge_confirmed")
	if len(confirmed) != 1 {
		t.Fatalf("confirmation events = %d, want 1", len(confirmed))
	}

	ticks := f.billing.deliveredEvents()
	if len(ticks) != 1 {
		t.Fatalf("delivered usage events = %d, want 1", len(ticks))
	}
	e := ticks[0]
	if e.EventDateTime != "2024-01-15T10:42:00Z" {
		t.Errorf("eventDateTime = %q", e.EventDateTime)
	}
	if e.ApplicationName != "themis" || e.ProcessName != "themis" {
		t.Errorf("application/process = %q/%q", e.ApplicationName, e.ProcessName)
	}
	if e.Ticks != 1 || e.JobNumber != "job-7" || e.UserName != "actor-1" {
		t.Errorf("tick fields = %+v", e)
	}
}

func TestGate_DuplicateDeliveryStillCharges(t *testing.T) {
	f := newGateFixture(t, Config{Granularity: GranularityMonth})
	f.billing.err = billing.ErrDuplicateSubmission

	// The decision is made before delivery: a duplicate response from the
	// billing side does not rewrite it.
	if !f.shouldCharge(t) {
		t.Fatal("charge decision should stand despite a duplicate response")
	}
	f.gate.Close()

	if refused := f.events.named("usage_charge_refused"); len(refused) != 1 {
		t.Fatalf("refusal events = %d, want 1", len(refused))
	}
	if confirmed := f.events.named("usage_charge_confirmed"); len(confirmed) != 0 {
		t.Fatalf("confirmation events = %d, want 0", len(confirmed))
	}
}

func TestGate_DeliveryFailureNotSurfaced(t *testing.T) {
	f := newGateFixture(t, Config{Granularity: GranularityMonth})
	f.billing.err = errors.New("billing unreachable")

	charge, err := f.gate.ShouldCharge(context.Background(), "", "job-7", "actor-1")
	if err != nil {
		t.Fatalf("delivery failure must not surface: %v", err)
	}
	if !charge {
		t.Fatal("charge decision should stand despite a delivery failure")
	}
	f.gate.Close()
}

func TestGate_StoreFailurePropagates(t *testing.T) {
	gate := NewGate(Config{Granularity: GranularityMonth}, GateDeps{
		Store: failingStore{},
	})

	_, err := gate.ShouldCharge(context.Background(), "", "job-7", "actor-1")
	if !errors.Is(err, errMeterStoreDown) {
		t.Fatalf("expected the store error, got %v", err)
	}
}

func TestGate_DefaultActionMarker(t *testing.T) {
	f := newGateFixture(t, Config{Granularity: GranularityMonth})

	f.shouldCharge(t)

	count, err := f.store.CountSince(context.Background(), actionlog.ActionUsageCharge, "job-7", time.Time{})
	if err != nil {
		t.Fatalf("CountSince: %v", err)
	}
	if count != 1 {
		t.Fatalf("markers under the default action = %d, want 1", count)
	}
}

func TestGate_NoBillingCollaborator(t *testing.T) {
	f := newGateFixture(t, Config{Granularity: GranularityMonth})
	f.gate.billing = nil

	// Decisions are still made and recorded without a billing side.
	if !f.shouldCharge(t) {
		t.Fatal("expected a charge decision")
	}
	if f.shouldCharge(t) {
		t.Fatal("repeat call should find the marker")
	}
}
