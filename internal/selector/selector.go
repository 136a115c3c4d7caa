// Package selector implements the round_robin and priority strategies that
// choose which configured model to invoke next, skipping any model
// currently in cooldown.
package selector

import (
	"time"

	"github.com/danshapiro/ralf/internal/ralfconfig"
	"github.com/danshapiro/ralf/internal/ralfstate"
)

// MaxSleep bounds how long the driver ever sleeps when every eligible model
// is cooling, so cancellation and human action stay responsive.
const MaxSleep = 60 * time.Second

// Result is the outcome of a selection attempt.
type Result struct {
	// Model is the chosen model name. Empty iff AllCool is true.
	Model string
	// AllCool is true when every eligible model is currently cooling.
	AllCool bool
	// SleepUntil, when AllCool, is the time to wake and re-check
	// (clamped to at most MaxSleep from now).
	SleepUntil time.Time
}

// Select deterministically picks the next model given eligible (the
// intersection of configured models and any caller-supplied subset),
// strategy, the current cooldown map, now, and lastPick (the previously
// selected model name, or "" if none yet this run).
func Select(eligible []string, strategy ralfconfig.SelectionStrategy, cooldowns ralfstate.Cooldowns, now time.Time, lastPick string) Result {
	if len(eligible) == 0 {
		return Result{AllCool: true, SleepUntil: now.Add(MaxSleep)}
	}

	switch strategy {
	case ralfconfig.Priority:
		for _, m := range eligible {
			if cooldowns.IsCool(m, now) {
				return Result{Model: m}
			}
		}
	case ralfconfig.RoundRobin:
		start := 0
		if lastPick != "" {
			for i, m := range eligible {
				if m == lastPick {
					start = (i + 1) % len(eligible)
					break
				}
			}
		}
		for i := 0; i < len(eligible); i++ {
			idx := (start + i) % len(eligible)
			m := eligible[idx]
			if cooldowns.IsCool(m, now) {
				return Result{Model: m}
			}
		}
	default:
		// Unrecognized strategies degrade to priority order rather than
		// panicking; config validation should already have rejected this.
		for _, m := range eligible {
			if cooldowns.IsCool(m, now) {
				return Result{Model: m}
			}
		}
	}

	return Result{AllCool: true, SleepUntil: clampSleep(eligible, cooldowns, now)}
}

// clampSleep returns the earliest cooldown expiry among eligible models,
// bounded to at most MaxSleep from now.
func clampSleep(eligible []string, cooldowns ralfstate.Cooldowns, now time.Time) time.Time {
	clamp := now.Add(MaxSleep)
	earliest := clamp
	found := false
	for _, m := range eligible {
		entry, ok := cooldowns[m]
		if !ok {
			continue
		}
		expiry := time.Unix(entry.CooldownUntil, 0)
		if !found || expiry.Before(earliest) {
			earliest = expiry
			found = true
		}
	}
	if !found || earliest.After(clamp) {
		return clamp
	}
	return earliest
}
