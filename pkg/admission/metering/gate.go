package metering

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/themis/pkg/admission/actionlog"
	"mercator-hq/themis/pkg/billing"
	"mercator-hq/themis/pkg/telemetry/metrics"
)

// BillingSender delivers usage reports to the billing collaborator.
type BillingSender interface {
	SendUsageEvent(ctx context.Context, event billing.UsageEvent) error
	SendUsageSummary(ctx context.Context, summary billing.UsageSummary) error
}

// EventCapturer emits fire-and-forget telemetry events keyed by actor.
type EventCapturer interface {
	Capture(event, distinctID string, properties map[string]any)
}

// Gate decides, once per calendar period, whether a chargeable usage event
// should be emitted for a source (job number).
//
// The decision is derived on demand from the action log: "already charged
// this period" means a charge record exists within the lookback window whose
// calendar sub-field equals the current period's. Repeated calls within one
// period therefore converge to "already charged" across processes without
// shared memory, though the unsynchronized count+insert leaves the same
// bounded race the rate limiter accepts.
//
// When a free trial is enabled and the threshold is zero ("charge every
// period"), the very first record ever seen for a source consumes the trial:
// the call records a marker, emits a trial-start event, and does not charge.
// Trial consumption and charge evaluation are mutually exclusive within a
// call; a period that consumed the trial is charged no earlier than the
// next period.
type Gate struct {
	config  Config
	store   actionlog.Store
	billing BillingSender
	events  EventCapturer
	metrics *metrics.Metrics
	logger  *slog.Logger

	now func() time.Time

	// deliveries tracks in-flight summary sends so Close can join them.
	deliveries sync.WaitGroup
}

// Config configures the metering gate.
type Config struct {
	// Action is the charge-marker action recorded in the log.
	// Default: actionlog.ActionUsageCharge.
	Action actionlog.Action

	// Threshold is the inclusive charge threshold counted over prior
	// periods in the lookback. Zero means "charge every period" and is the
	// only mode in which the free trial applies.
	Threshold int64

	// Granularity is the calendar unit for once-per-period charging.
	Granularity Granularity

	// FreeTrial exempts a source's first-ever period from charging.
	FreeTrial bool

	// Cost is the charge attached to each usage summary.
	Cost float64

	// ApplicationName identifies this application toward billing.
	ApplicationName string

	// ProcessName identifies the reporting process on usage ticks.
	// Defaults to ApplicationName.
	ProcessName string

	// Narrative is attached to each usage summary.
	Narrative string
}

// GateDeps are the collaborators injected into a Gate.
type GateDeps struct {
	// Store is the shared action log.
	Store actionlog.Store

	// Billing delivers usage summaries. Optional; decisions are still made
	// (and recorded) without it.
	Billing BillingSender

	// Events emits trial/charge telemetry. Optional.
	Events EventCapturer

	// Metrics records metering outcomes. Optional.
	Metrics *metrics.Metrics

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// NewGate creates a metering gate.
func NewGate(cfg Config, deps GateDeps) *Gate {
	if cfg.Action == "" {
		cfg.Action = actionlog.ActionUsageCharge
	}
	if !cfg.Granularity.Valid() {
		cfg.Granularity = GranularityMonth
	}
	if cfg.ProcessName == "" {
		cfg.ProcessName = cfg.ApplicationName
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Gate{
		config:  cfg,
		store:   deps.Store,
		billing: deps.Billing,
		events:  deps.Events,
		metrics: deps.Metrics,
		logger:  deps.Logger.With("component", "metering"),
		now:     time.Now,
	}
}

// ShouldCharge decides whether source should be charged for the current
// period and, when it should, forwards a usage tick and summary to the
// billing collaborator in the background. The actor identifies the acting user for
// billing and telemetry purposes. An empty action falls back to the
// configured charge-marker action.
//
// An empty source is never charged: metering without a job number has
// nothing to bill against. Store failures propagate; billing delivery
// failures do not.
func (g *Gate) ShouldCharge(ctx context.Context, action actionlog.Action, source, actor string) (bool, error) {
	if source == "" {
		return false, nil
	}

	now := g.now()
	if action == "" {
		action = g.config.Action
	}
	gran := g.config.Granularity
	since := now.Add(-gran.Lookback())
	period := PeriodOf(now, gran)

	if g.config.Threshold == 0 && g.config.FreeTrial {
		consumed, err := g.consumeTrial(ctx, action, source, actor, now)
		if err != nil {
			return false, err
		}
		if consumed {
			g.record("free_trial")
			return false, nil
		}
	}

	// Already charged this period: a charge record within the lookback whose
	// period sub-field equals the current one.
	charged, err := g.store.CountInPeriod(ctx, action, source, since, gran.Field(), period, true)
	if err != nil {
		return false, err
	}
	if charged > 0 {
		if err := g.store.Insert(ctx, action, source, now); err != nil {
			return false, err
		}
		g.record("already_charged")
		return false, nil
	}

	// Charge decision: records from prior, not-yet-billed periods within the
	// lookback.
	prior, err := g.store.CountInPeriod(ctx, action, source, since, gran.Field(), period, false)
	if err != nil {
		return false, err
	}

	shouldCharge := prior+1 >= g.config.Threshold

	// Every evaluated call persists a current-period marker. On a charge
	// this is what makes the decision idempotent: the next call in the same
	// period finds the marker and lands in the already-charged branch.
	if err := g.store.Insert(ctx, action, source, now); err != nil {
		return false, err
	}

	if !shouldCharge {
		g.record("under_threshold")
		return false, nil
	}

	g.record("charged")
	g.logger.Info("source should be charged for elapsed period",
		"source", source,
		"granularity", gran.String(),
	)
	g.dispatchSummary(ctx, source, actor, now)
	return true, nil
}

// consumeTrial checks for a first-ever record and, when found absent,
// records the trial marker and emits the trial-start event. Reports whether
// the trial was consumed by this call.
func (g *Gate) consumeTrial(ctx context.Context, action actionlog.Action, source, actor string, now time.Time) (bool, error) {
	total, err := g.store.CountSince(ctx, action, source, time.Time{})
	if err != nil {
		return false, err
	}
	if total > 0 {
		return false, nil
	}

	if err := g.store.Insert(ctx, action, source, now); err != nil {
		return false, err
	}

	start, end := PeriodBounds(now, g.config.Granularity)
	g.logger.Info("source entered free trial period", "source", source)
	if g.events != nil {
		g.events.Capture(eventTrialStarted, actor, map[string]any{
			"job_number":  source,
			"trial_start": FormatStamp(start),
			"trial_end":   FormatStamp(end),
		})
	}
	return true, nil
}

// dispatchSummary sends the usage tick and summary for the current period
// without blocking the caller. The caller's cancellation does not abort
// delivery; failures are logged and never surfaced to the user-facing
// request.
func (g *Gate) dispatchSummary(ctx context.Context, source, actor string, now time.Time) {
	if g.billing == nil {
		return
	}

	start, end := PeriodBounds(now, g.config.Granularity)
	event := billing.UsageEvent{
		EventDateTime:   FormatStamp(now),
		ApplicationName: g.config.ApplicationName,
		ProcessName:     g.config.ProcessName,
		Ticks:           1,
		JobNumber:       source,
		UserName:        actor,
	}
	summary := billing.UsageSummary{
		UsageStartDateTime: FormatStamp(start),
		UsageEndDateTime:   FormatStamp(end),
		ApplicationName:    g.config.ApplicationName,
		Cost:               g.config.Cost,
		JobNumber:          source,
		UserName:           actor,
		Narrative:          g.config.Narrative,
	}

	bgCtx := context.WithoutCancel(ctx)
	g.deliveries.Add(1)
	go func() {
		defer g.deliveries.Done()

		g.sendEvent(bgCtx, event)

		err := g.billing.SendUsageSummary(bgCtx, summary)
		switch {
		case err == nil:
			if g.metrics != nil {
				g.metrics.RecordBillingDelivery("usage_summary", "success")
			}
			if g.events != nil {
				g.events.Capture(eventChargeConfirmed, actor, map[string]any{
					"job_number": source,
					"cost":       g.config.Cost,
				})
			}
		case errors.Is(err, billing.ErrDuplicateSubmission):
			g.logger.Debug("duplicate usage summary refused", "source", source)
			if g.metrics != nil {
				g.metrics.RecordBillingDelivery("usage_summary", "duplicate")
			}
			if g.events != nil {
				g.events.Capture(eventChargeRefused, actor, map[string]any{
					"job_number": source,
				})
			}
		default:
			g.logger.Error("usage summary delivery failed",
				"source", source,
				"error", err,
			)
			if g.metrics != nil {
				g.metrics.RecordBillingDelivery("usage_summary", "error")
			}
		}
	}()
}

// sendEvent delivers the usage tick preceding a summary. The tick is
// informational; its failure never defers the summary.
func (g *Gate) sendEvent(ctx context.Context, event billing.UsageEvent) {
	err := g.billing.SendUsageEvent(ctx, event)
	switch {
	case err == nil:
		if g.metrics != nil {
			g.metrics.RecordBillingDelivery("usage_event", "success")
		}
	case errors.Is(err, billing.ErrDuplicateSubmission):
		g.logger.Debug("duplicate usage event refused", "source", event.JobNumber)
		if g.metrics != nil {
			g.metrics.RecordBillingDelivery("usage_event", "duplicate")
		}
	default:
		g.logger.Error("usage event delivery failed",
			"source", event.JobNumber,
			"error", err,
		)
		if g.metrics != nil {
			g.metrics.RecordBillingDelivery("usage_event", "error")
		}
	}
}

// Close waits for in-flight summary deliveries to finish.
func (g *Gate) Close() {
	g.deliveries.Wait()
}

func (g *Gate) record(outcome string) {
	if g.metrics != nil {
		g.metrics.RecordMeteringDecision(outcome)
	}
}

// Telemetry event names emitted by the gate.
const (
	eventTrialStarted    = "usage_trial_started"
	eventChargeConfirmed = "usage_charge_confirmed"
	eventChargeRefused   = "usage_charge_refused"
)
