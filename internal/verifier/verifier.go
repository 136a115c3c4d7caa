// Package verifier runs the configured verifier subprocesses for one
// iteration and reports pass/fail/skipped per verifier.
package verifier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/danshapiro/ralf/internal/ralfconfig"
	"github.com/danshapiro/ralf/internal/subprocrun"
)

// Status is one verifier's outcome.
type Status string

const (
	Pass    Status = "pass"
	Fail    Status = "fail"
	Skipped Status = "skipped"
)

// Result is one verifier's outcome for an iteration.
type Result struct {
	Status   Status
	ExitCode int
	Duration time.Duration
	Note     string
}

// RunAll invokes every verifier in cfg.Verifiers, in declared order,
// unconditionally (a failure in one never skips the rest), appending one
// name-delimited section per verifier to <logDir>/verifier.log: a status
// line, plus a note (up to 2000 bytes of output, or the spawn error) when
// the verifier did not pass. Each verifier's full output goes to its own
// <logDir>/<name>.log and <name>.stderr.log. It returns a map keyed by
// verifier name.
func RunAll(ctx context.Context, cfg *ralfconfig.Config, logDir string) (map[string]Result, error) {
	results := make(map[string]Result, len(cfg.Verifiers))
	if len(cfg.Verifiers) == 0 {
		return results, nil
	}

	logPath := filepath.Join(logDir, "verifier.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("verifier: open %s: %w", logPath, err)
	}
	defer logFile.Close()

	for _, v := range cfg.Verifiers {
		res := runOne(ctx, v, logDir)
		results[v.Name] = res
		fmt.Fprintf(logFile, "=== %s: %s (exit=%d, duration=%s) ===\n", v.Name, res.Status, res.ExitCode, res.Duration)
		if res.Note != "" {
			fmt.Fprintf(logFile, "%s\n", res.Note)
		}
	}
	return results, nil
}

func runOne(ctx context.Context, v ralfconfig.VerifierSpec, logDir string) Result {
	spec := ralfconfig.ModelSpec{
		Name:           v.Name,
		CommandArgv:    v.CommandArgv,
		PromptMode:     ralfconfig.PromptStdin,
		TimeoutSeconds: v.TimeoutSeconds,
	}
	ir, err := subprocrun.Invoke(ctx, spec, "", logDir)
	if err != nil {
		return Result{Status: Skipped, ExitCode: -1, Note: fmt.Sprintf("could not spawn: %v", err)}
	}
	if ir.ExitCode == 0 {
		return Result{Status: Pass, ExitCode: 0, Duration: ir.Duration}
	}
	return Result{Status: Fail, ExitCode: ir.ExitCode, Duration: ir.Duration, Note: truncatedNote(ir)}
}

func truncatedNote(ir subprocrun.IterationResult) string {
	const max = 2000
	s := ir.Stderr
	if s == "" {
		s = ir.Stdout
	}
	if len(s) > max {
		s = s[:max] + "... [truncated]"
	}
	return s
}

// RequiredPassed reports whether every name in required has status pass in
// results. A verifier that is missing from results or skipped counts as a
// failure (invariant: required verifiers that are skipped contribute fail).
func RequiredPassed(required []string, results map[string]Result) bool {
	for _, name := range required {
		r, ok := results[name]
		if !ok || r.Status != Pass {
			return false
		}
	}
	return true
}
