// Package ratelimit inspects a model invocation's captured output against
// the model's configured regex set and refreshes the cooldown store on a
// match.
package ratelimit

import (
	"fmt"
	"regexp"
	"time"

	"github.com/danshapiro/ralf/internal/ralfconfig"
	"github.com/danshapiro/ralf/internal/ralfstate"
	"github.com/danshapiro/ralf/internal/subprocrun"
)

// Detection is the outcome of matching a rate-limit pattern.
type Detection struct {
	Matched bool
	Reason  string
}

// Detect reports whether any of spec's rate_limit_patterns matches,
// case-insensitively, anywhere in the concatenation of res.Stdout and
// res.Stderr. The reason is the literal pattern that matched.
func Detect(spec ralfconfig.ModelSpec, res subprocrun.IterationResult) (Detection, error) {
	combined := res.Stdout + "\n" + res.Stderr
	for _, pattern := range spec.RateLimitPatterns {
		re, err := compile(pattern)
		if err != nil {
			return Detection{}, fmt.Errorf("ratelimit: compile pattern %q for model %q: %w", pattern, spec.Name, err)
		}
		if re.MatchString(combined) {
			return Detection{Matched: true, Reason: pattern}, nil
		}
	}
	return Detection{}, nil
}

func compile(pattern string) (*regexp.Regexp, error) {
	// Case-insensitive matching is mandatory regardless of whether the
	// author already wrote a (?i) prefix.
	if len(pattern) < 4 || pattern[:4] != "(?i)" {
		pattern = "(?i)" + pattern
	}
	return regexp.Compile(pattern)
}

// Apply records a detection against repo's cooldown store, enforcing
// invariant 4: expiry never moves earlier, only extends; reason and
// observed_at reflect the latest detection. It loads, mutates, and saves
// cooldowns.json, returning the refreshed entry.
func Apply(repo string, spec ralfconfig.ModelSpec, reason string, now time.Time) (ralfstate.CooldownEntry, error) {
	cooldowns, err := ralfstate.LoadCooldowns(repo)
	if err != nil {
		return ralfstate.CooldownEntry{}, err
	}
	ttl := time.Duration(spec.DefaultCooldownSeconds) * time.Second
	ralfstate.ApplyCooldown(cooldowns, spec.Name, now, ttl, reason)
	if err := ralfstate.SaveCooldowns(repo, cooldowns); err != nil {
		return ralfstate.CooldownEntry{}, err
	}
	return cooldowns[spec.Name], nil
}
