package ratelimit

import (
	"time"

	"mercator-hq/themis/pkg/admission/actionlog"
)

// Rule is the configured ceiling for a single action.
//
// The threshold is inclusive: an action is blocked once the count of recorded
// attempts in the window, plus the attempt under evaluation, reaches it.
type Rule struct {
	// Threshold is the inclusive limit for the window.
	Threshold int64

	// Window is the trailing window over which attempts are counted.
	// Zero means the limit applies over the entire action log history
	// (a static cap that never decays).
	Window time.Duration
}

// Rules maps actions to their configured limits. Actions absent from the
// table are never rate limited.
type Rules map[actionlog.Action]Rule
