package selector

import (
	"testing"
	"time"

	"github.com/danshapiro/ralf/internal/ralfconfig"
	"github.com/danshapiro/ralf/internal/ralfstate"
)

func TestSelect_Priority_PicksFirstCool(t *testing.T) {
	now := time.Now()
	cooldowns := ralfstate.Cooldowns{
		"claude": {CooldownUntil: now.Add(time.Hour).Unix()},
	}
	res := Select([]string{"claude", "codex", "gemini"}, ralfconfig.Priority, cooldowns, now, "")
	if res.AllCool || res.Model != "codex" {
		t.Fatalf("got %+v, want codex", res)
	}
}

func TestSelect_RoundRobin_AdvancesFromLastPick(t *testing.T) {
	now := time.Now()
	cooldowns := ralfstate.Cooldowns{}
	res := Select([]string{"claude", "codex", "gemini"}, ralfconfig.RoundRobin, cooldowns, now, "claude")
	if res.Model != "codex" {
		t.Fatalf("got %q, want codex", res.Model)
	}
}

func TestSelect_RoundRobin_WrapsAndSkipsCooling(t *testing.T) {
	now := time.Now()
	cooldowns := ralfstate.Cooldowns{
		"claude": {CooldownUntil: now.Add(time.Hour).Unix()},
	}
	res := Select([]string{"claude", "codex", "gemini"}, ralfconfig.RoundRobin, cooldowns, now, "gemini")
	if res.Model != "codex" {
		t.Fatalf("got %q, want codex (claude cooling, wraps past it)", res.Model)
	}
}

func TestSelect_AllCool_ReturnsClampedSleep(t *testing.T) {
	now := time.Now()
	cooldowns := ralfstate.Cooldowns{
		"claude": {CooldownUntil: now.Add(10 * time.Hour).Unix()},
		"codex":  {CooldownUntil: now.Add(20 * time.Hour).Unix()},
	}
	res := Select([]string{"claude", "codex"}, ralfconfig.Priority, cooldowns, now, "")
	if !res.AllCool {
		t.Fatalf("expected AllCool, got %+v", res)
	}
	if res.SleepUntil.After(now.Add(MaxSleep + time.Second)) {
		t.Fatalf("sleep not clamped: %v", res.SleepUntil)
	}
}

func TestSelect_Deterministic(t *testing.T) {
	now := time.Now()
	cooldowns := ralfstate.Cooldowns{}
	a := Select([]string{"claude", "codex", "gemini"}, ralfconfig.RoundRobin, cooldowns, now, "codex")
	b := Select([]string{"claude", "codex", "gemini"}, ralfconfig.RoundRobin, cooldowns, now, "codex")
	if a.Model != b.Model {
		t.Fatalf("selection not deterministic: %q vs %q", a.Model, b.Model)
	}
}
