// Package retention prunes action log records that no configured window can
// still observe.
//
// The action log only ever grows, but a record matters to a rate limit
// decision only while it is inside the action's largest bounded window.
// Records for statically capped actions (window zero) and for the metering
// charge action are never pruned: their entire history stays load-bearing.
package retention

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/themis/pkg/admission/actionlog"
	"mercator-hq/themis/pkg/admission/ratelimit"
)

// Pruner deletes aged-out records per action.
type Pruner struct {
	store  actionlog.Store
	logger *slog.Logger
	margin time.Duration

	mu sync.RWMutex
	// windows holds the largest bounded window per prunable action.
	// Actions capped statically in any scope are absent: never pruned.
	windows map[actionlog.Action]time.Duration

	now func() time.Time
}

// NewPruner creates a pruner over the given limit tables. The margin is
// added to every cutoff so clock skew between processes cannot delete
// records another process still counts; it defaults to one hour.
func NewPruner(store actionlog.Store, margin time.Duration, tables ...ratelimit.Rules) *Pruner {
	if margin <= 0 {
		margin = time.Hour
	}
	p := &Pruner{
		store:  store,
		logger: slog.Default().With("component", "retention"),
		margin: margin,
		now:    time.Now,
	}
	p.SetRules(tables...)
	return p
}

// SetRules recomputes the prunable windows from fresh limit tables. Called
// on config reload.
func (p *Pruner) SetRules(tables ...ratelimit.Rules) {
	windows := make(map[actionlog.Action]time.Duration)
	static := make(map[actionlog.Action]bool)

	for _, table := range tables {
		for action, rule := range table {
			if rule.Window == 0 {
				static[action] = true
				continue
			}
			if rule.Window > windows[action] {
				windows[action] = rule.Window
			}
		}
	}
	// A static cap in any scope pins the action's full history.
	for action := range static {
		delete(windows, action)
	}

	p.mu.Lock()
	p.windows = windows
	p.mu.Unlock()
}

// Prune deletes records older than each action's largest bounded window plus
// the safety margin. Returns the total number of deleted records.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	p.mu.RLock()
	windows := make(map[actionlog.Action]time.Duration, len(p.windows))
	for action, w := range p.windows {
		windows[action] = w
	}
	p.mu.RUnlock()

	now := p.now()
	var total int64
	for action, window := range windows {
		cutoff := now.Add(-window - p.margin)
		deleted, err := p.store.DeleteBefore(ctx, action, cutoff)
		if err != nil {
			return total, err
		}
		total += deleted
	}
	return total, nil
}
