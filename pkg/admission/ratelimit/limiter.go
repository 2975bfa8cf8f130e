package ratelimit

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"mercator-hq/themis/pkg/admission/actionlog"
	"mercator-hq/themis/pkg/telemetry/metrics"
)

// Limiter answers "is this action currently allowed?" for one scope
// (user/IP or project) against a shared action log.
//
// # Latency asymmetry
//
// Every call launches a background check that counts recorded attempts in
// the action's window, appends a record when under limit, and refreshes the
// decision cache. The caller joins that check only when the cache already
// believes the key is blocked, because the window may have aged out since
// the last check. A caller not near its limit therefore never pays the
// store's round-trip latency. The price is a bounded overshoot: concurrent
// racing requests can each observe a sub-threshold count and each append,
// so the true count can exceed the threshold by an amount proportional to
// in-flight concurrency. This is an accepted imprecision; exact enforcement
// is explicitly not a goal of this engine.
//
// # Scopes
//
// User-scoped and project-scoped limiting are two Limiter instances with
// disjoint Rules tables. They may share the same store and cache
// implementation; both must pass for an action to proceed.
type Limiter struct {
	scope   string
	rules   atomic.Pointer[Rules]
	store   actionlog.Store
	cache   *Cache
	metrics *metrics.Metrics
	logger  *slog.Logger

	now func() time.Time
}

// Config configures a Limiter.
type Config struct {
	// Scope names the identity dimension this limiter tracks
	// ("user", "project"). Used for logging and metrics only.
	Scope string

	// Rules is the per-action limit table for this scope.
	Rules Rules

	// Store is the shared action log.
	Store actionlog.Store

	// Cache is the process-local decision cache. A fresh cache is created
	// when nil; pass a shared instance to share it between limiters.
	Cache *Cache

	// Metrics records blocked decisions and check latency. Optional.
	Metrics *metrics.Metrics

	// Logger receives background check failures. Defaults to slog.Default.
	Logger *slog.Logger
}

// NewLimiter creates a limiter for one scope.
func NewLimiter(cfg Config) *Limiter {
	if cfg.Cache == nil {
		cfg.Cache = NewCache()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	l := &Limiter{
		scope:   cfg.Scope,
		store:   cfg.Store,
		cache:   cfg.Cache,
		metrics: cfg.Metrics,
		logger:  cfg.Logger.With("component", "ratelimit", "scope", cfg.Scope),
		now:     time.Now,
	}
	rules := cfg.Rules
	if rules == nil {
		rules = Rules{}
	}
	l.rules.Store(&rules)
	return l
}

// SetRules atomically replaces the limit table. In-flight checks finish
// against the table they started with.
func (l *Limiter) SetRules(rules Rules) {
	if rules == nil {
		rules = Rules{}
	}
	l.rules.Store(&rules)
}

// Allow reports whether the action is currently allowed for source.
//
// Unknown actions and empty sources are never rate limited: an action with
// no configured rule is unlimited, and a caller with no identity cannot be
// tracked. Neither case writes to the action log.
//
// A store failure on the confirm path is returned to the caller; the outer
// request must fail with a server error rather than be silently approved or
// denied. On the fast path the caller has already been answered, so a
// background store failure is only logged.
func (l *Limiter) Allow(ctx context.Context, action actionlog.Action, source string) (bool, error) {
	if source == "" {
		return true, nil
	}
	rule, ok := (*l.rules.Load())[action]
	if !ok {
		return true, nil
	}

	key := cacheKey(action, source)
	check := l.startCheck(ctx, rule, action, source, key)

	if !l.cache.Blocked(key) {
		// Fast path: answer without joining the in-flight check. The check
		// still runs to keep the cache current.
		return true, nil
	}

	// Confirm path: the window may have aged out since the block was
	// cached, so wait for the fresh decision.
	res := <-check
	if res.err != nil {
		return false, res.err
	}
	if res.blocked {
		if l.metrics != nil {
			l.metrics.RecordBlocked(string(action))
		}
		return false, nil
	}
	return true, nil
}

type checkResult struct {
	blocked bool
	err     error
}

// startCheck launches the count-and-record check as a single-use task.
// Join policy: the result is awaited only when a cached block is believed
// active; otherwise the task completes in the background.
func (l *Limiter) startCheck(ctx context.Context, rule Rule, action actionlog.Action, source, key string) <-chan checkResult {
	done := make(chan checkResult, 1)

	// The caller's cancellation must not abort the log write: an accepted
	// attempt is recorded even if the outer request is later abandoned.
	bgCtx := context.WithoutCancel(ctx)

	go func() {
		start := time.Now()
		blocked, err := l.evaluate(bgCtx, rule, action, source)
		if l.metrics != nil {
			l.metrics.ObserveCheckDuration("ratelimit_check", time.Since(start).Seconds())
		}
		if err != nil {
			l.logger.Error("rate limit check failed",
				"action", string(action),
				"source", source,
				"error", err,
			)
			done <- checkResult{err: err}
			return
		}
		if blocked {
			l.cache.Block(key)
		} else {
			l.cache.Unblock(key)
		}
		done <- checkResult{blocked: blocked}
	}()

	return done
}

// evaluate computes the fresh decision and records the attempt when allowed.
// Rejected attempts are not recorded, so the window heals purely through the
// passage of time.
func (l *Limiter) evaluate(ctx context.Context, rule Rule, action actionlog.Action, source string) (bool, error) {
	var since time.Time
	if rule.Window > 0 {
		since = l.now().Add(-rule.Window)
	}

	count, err := l.store.CountSince(ctx, action, source, since)
	if err != nil {
		return false, err
	}

	// +1 accounts for the attempt under evaluation.
	blocked := count+1 >= rule.Threshold
	if !blocked {
		if err := l.store.Insert(ctx, action, source, l.now()); err != nil {
			return false, err
		}
	}
	return blocked, nil
}

func cacheKey(action actionlog.Action, source string) string {
	return string(action) + " " + source
}
