package main

import (
	"testing"

	"github.com/danshapiro/ralf/internal/ralfstate"
)

func TestRequireInt_ParsesValue(t *testing.T) {
	n, err := requireInt([]string{"10"}, 0, "--max-iterations")
	if err != nil {
		t.Fatalf("requireInt: %v", err)
	}
	if n != 10 {
		t.Fatalf("n: got %d want 10", n)
	}
}

func TestRequireInt_MissingValue_Errors(t *testing.T) {
	_, err := requireInt([]string{}, 0, "--max-iterations")
	if err == nil {
		t.Fatalf("expected error for a missing value")
	}
}

func TestRequireInt_NonInteger_Errors(t *testing.T) {
	_, err := requireInt([]string{"not-a-number"}, 0, "--max-seconds")
	if err == nil {
		t.Fatalf("expected error for a non-integer value")
	}
}

func TestColorStatus_PassesThroughUnknownStatus(t *testing.T) {
	// Colorized statuses still contain the underlying status word even once
	// ANSI codes are added; idle has no special color so it must round-trip
	// exactly.
	if got := colorStatus(ralfstate.StatusIdle); got != string(ralfstate.StatusIdle) {
		t.Fatalf("colorStatus(idle): got %q want %q", got, ralfstate.StatusIdle)
	}
}
