// Package ratelimit decides, per incoming action, whether it is currently
// allowed under the configured sliding-window limits.
//
// # Overview
//
// One generic Limiter serves both identity scopes: the user/IP-scoped
// instance and the project-scoped instance differ only in their Rules table.
// Counts come from the shared action log, so multiple server processes
// converge on the same decisions without sharing memory; the process-local
// decision cache exists only to keep the common (non-limited) request path
// free of store latency.
//
// # Usage
//
//	limiter := ratelimit.NewLimiter(ratelimit.Config{
//	    Scope: "user",
//	    Rules: ratelimit.Rules{
//	        actionlog.ActionStreamCreate: {Threshold: 10000, Window: 28 * 24 * time.Hour},
//	        actionlog.ActionTokenCreate:  {Threshold: 1000}, // static cap, never decays
//	    },
//	    Store: store,
//	})
//
//	allowed, err := limiter.Allow(ctx, actionlog.ActionStreamCreate, userID)
package ratelimit
