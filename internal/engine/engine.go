// Package engine composes the config, state, discovery, subprocess,
// rate-limit, selector, verifier, oracle, and changelog components into the
// iteration driver and the typed command-surface operations consumed by a
// CLI or TUI.
package engine

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/danshapiro/ralf/internal/changelog"
	"github.com/danshapiro/ralf/internal/gitutil"
	"github.com/danshapiro/ralf/internal/oracle"
	"github.com/danshapiro/ralf/internal/ralfconfig"
	"github.com/danshapiro/ralf/internal/ralfstate"
	"github.com/danshapiro/ralf/internal/ratelimit"
	"github.com/danshapiro/ralf/internal/selector"
	"github.com/danshapiro/ralf/internal/subprocrun"
	"github.com/danshapiro/ralf/internal/verifier"
)

// PromptFile is the well-known prompt source read at the repo root.
const PromptFile = "PROMPT.md"

// RunOptions parameterizes run().
type RunOptions struct {
	MaxIterations int
	MaxSeconds    int
	// Models, if non-empty, restricts selection to this subset of
	// configured model names.
	Models []string
	// MaxStaleIterations, when > 0, aborts the run with cause "stale"
	// after this many consecutive iterations that leave git HEAD
	// unchanged. 0 disables the check.
	MaxStaleIterations int
}

// RunOutcome is the result of run().
type RunOutcome struct {
	Status     ralfstate.Status
	Cause      string
	Iterations int
	Warnings   []string
}

// ErrNoPromptFile is returned when PROMPT.md is missing or empty.
var ErrNoPromptFile = fmt.Errorf("ralf: %s is missing or empty", PromptFile)

// Run executes the iteration driver (C10) to completion, cancellation, or
// budget exhaustion. ctx cancellation is the in-process cancel signal;
// Cancel(repo) sets the cross-process persistent marker this loop also
// observes at every suspension point.
func Run(ctx context.Context, repo string, opts RunOptions) (RunOutcome, error) {
	cfg, err := ralfconfig.Load(repo)
	if err != nil {
		return RunOutcome{}, err
	}

	prompt, err := readPrompt(repo)
	if err != nil {
		return RunOutcome{}, err
	}

	runID, err := ralfstate.NewRunID()
	if err != nil {
		return RunOutcome{}, fmt.Errorf("ralf: generate run id: %w", err)
	}
	if _, err := ralfstate.AcquireRunning(repo, runID); err != nil {
		return RunOutcome{}, err
	}
	if err := ClearCancel(repo); err != nil {
		return RunOutcome{}, err
	}

	logDir, err := ralfstate.RunDir(repo, runID)
	if err != nil {
		return RunOutcome{}, err
	}

	var warnings []string
	eligible := eligibleModels(cfg, opts.Models)
	for _, info := range discoverWarnings(ctx, cfg, eligible) {
		warnings = append(warnings, info)
	}

	outcome := driverLoop(ctx, repo, runID, logDir, cfg, prompt, opts, eligible)
	outcome.Warnings = append(warnings, outcome.Warnings...)
	return outcome, nil
}

func driverLoop(ctx context.Context, repo, runID, logDir string, cfg *ralfconfig.Config, prompt string, opts RunOptions, eligible []string) RunOutcome {
	ctx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go func() {
		tick := time.NewTicker(200 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				if isCancelled(ctx, repo) {
					stopWatch()
					return
				}
			}
		}
	}()

	start := time.Now()
	lastPick := ""
	staleCount := 0
	var lastHead string
	if gitutil.IsRepo(repo) {
		lastHead, _ = gitutil.HeadSHA(repo)
	}

	iteration := 0
	for {
		if isCancelled(ctx, repo) {
			return finish(repo, runID, iteration, ralfstate.StatusCancelled, "")
		}

		cooldowns, err := ralfstate.LoadCooldowns(repo)
		if err != nil {
			return finish(repo, runID, iteration, ralfstate.StatusFailed, "io_error")
		}

		sel := selector.Select(eligible, cfg.ModelSelection, cooldowns, time.Now(), lastPick)
		if sel.AllCool {
			if exhausted, cause := budgetExhausted(opts, iteration, start); exhausted {
				return finish(repo, runID, iteration, ralfstate.StatusFailed, cause)
			}
			setStatus(repo, runID, iteration, ralfstate.StatusCooling, "")
			sleepUntil := sel.SleepUntil
			if opts.MaxSeconds > 0 {
				deadline := start.Add(time.Duration(opts.MaxSeconds) * time.Second)
				if deadline.Before(sleepUntil) {
					sleepUntil = deadline
				}
			}
			if !sleepOrCancel(ctx, repo, sleepUntil) {
				return finish(repo, runID, iteration, ralfstate.StatusCancelled, "")
			}
			continue
		}

		modelSpec, _ := cfg.ModelByName(sel.Model)
		iteration++
		lastPick = sel.Model

		res, err := subprocrun.Invoke(ctx, modelSpec, prompt, logDir)
		if err != nil {
			appendEntry(repo, runID, iteration, modelSpec.Name, changelog.Error, err.Error(), prompt, logDir)
			if exhausted, cause := budgetExhausted(opts, iteration, start); exhausted {
				return finish(repo, runID, iteration, ralfstate.StatusFailed, cause)
			}
			continue
		}

		if res.TimedOut {
			appendEntry(repo, runID, iteration, modelSpec.Name, changelog.Timeout, "invocation exceeded timeout", prompt, logDir)
			if exhausted, cause := budgetExhausted(opts, iteration, start); exhausted {
				return finish(repo, runID, iteration, ralfstate.StatusFailed, cause)
			}
			continue
		}
		if res.Cancelled {
			appendEntry(repo, runID, iteration, modelSpec.Name, changelog.Error, "cancelled mid-invocation", prompt, logDir)
			return finish(repo, runID, iteration, ralfstate.StatusCancelled, "")
		}

		det, detErr := ratelimit.Detect(modelSpec, res)
		if detErr == nil && det.Matched {
			if _, err := ratelimit.Apply(repo, modelSpec, det.Reason, time.Now()); err != nil {
				return finish(repo, runID, iteration, ralfstate.StatusFailed, "io_error")
			}
			appendEntry(repo, runID, iteration, modelSpec.Name, changelog.RateLimited, det.Reason, prompt, logDir)
			if exhausted, cause := budgetExhausted(opts, iteration, start); exhausted {
				return finish(repo, runID, iteration, ralfstate.StatusFailed, cause)
			}
			continue
		}

		verifierResults, err := verifier.RunAll(ctx, cfg, logDir)
		if err != nil {
			return finish(repo, runID, iteration, ralfstate.StatusFailed, "io_error")
		}

		if oracle.IsComplete(res.Stdout, cfg.CompletionPromise, cfg.RequiredVerifiers, verifierResults) {
			appendFullEntry(repo, runID, iteration, modelSpec.Name, changelog.Success, "promise tag present, required verifiers passed", prompt, logDir, verifierResults)
			return finish(repo, runID, iteration, ralfstate.StatusComplete, "")
		}

		if !verifier.RequiredPassed(cfg.RequiredVerifiers, verifierResults) {
			appendFullEntry(repo, runID, iteration, modelSpec.Name, changelog.VerifierFailed, "required verifier did not pass", prompt, logDir, verifierResults)
		} else {
			appendFullEntry(repo, runID, iteration, modelSpec.Name, changelog.Error, "promise tag absent", prompt, logDir, verifierResults)
		}

		if opts.MaxStaleIterations > 0 && gitutil.IsRepo(repo) {
			head, _ := gitutil.HeadSHA(repo)
			if head != "" && head == lastHead {
				staleCount++
			} else {
				staleCount = 0
			}
			lastHead = head
			if staleCount >= opts.MaxStaleIterations {
				return finish(repo, runID, iteration, ralfstate.StatusFailed, "stale")
			}
		}

		if exhausted, cause := budgetExhausted(opts, iteration, start); exhausted {
			return finish(repo, runID, iteration, ralfstate.StatusFailed, cause)
		}
	}
}

func budgetExhausted(opts RunOptions, iteration int, start time.Time) (bool, string) {
	if opts.MaxIterations > 0 && iteration >= opts.MaxIterations {
		return true, "budget"
	}
	if opts.MaxSeconds > 0 && time.Since(start) >= time.Duration(opts.MaxSeconds)*time.Second {
		return true, "budget"
	}
	return false, ""
}

func eligibleModels(cfg *ralfconfig.Config, subset []string) []string {
	priority := cfg.ModelPriority
	if len(priority) == 0 {
		for _, m := range cfg.Models {
			priority = append(priority, m.Name)
		}
	}
	if len(subset) == 0 {
		return priority
	}
	allowed := make(map[string]bool, len(subset))
	for _, m := range subset {
		allowed[m] = true
	}
	var out []string
	for _, m := range priority {
		if allowed[m] {
			out = append(out, m)
		}
	}
	return out
}

func discoverWarnings(ctx context.Context, cfg *ralfconfig.Config, eligible []string) []string {
	var warnings []string
	set := make(map[string]bool, len(eligible))
	for _, m := range eligible {
		set[m] = true
	}
	for _, m := range cfg.Models {
		if !set[m.Name] {
			continue
		}
		if _, err := lookPathOf(m); err != nil {
			warnings = append(warnings, fmt.Sprintf("model %q: binary not found on PATH: %v", m.Name, err))
		}
	}
	return warnings
}

func lookPathOf(m ralfconfig.ModelSpec) (string, error) {
	if len(m.CommandArgv) == 0 {
		return "", fmt.Errorf("no command_argv")
	}
	return exec.LookPath(m.CommandArgv[0])
}

func readPrompt(repo string) (string, error) {
	b, err := os.ReadFile(filepath.Join(repo, PromptFile))
	if err != nil {
		return "", ErrNoPromptFile
	}
	if strings.TrimSpace(string(b)) == "" {
		return "", ErrNoPromptFile
	}
	return string(b), nil
}

func appendEntry(repo, runID string, iteration int, model string, status changelog.Status, reason, prompt, logDir string) {
	appendFullEntry(repo, runID, iteration, model, status, reason, prompt, logDir, nil)
}

func appendFullEntry(repo, runID string, iteration int, model string, status changelog.Status, reason, prompt, logDir string, results map[string]verifier.Result) {
	branch, dirty, files := changelog.GitInfo(repo)
	entry := changelog.Entry{
		RunID:         runID,
		Iteration:     iteration,
		Model:         model,
		Status:        status,
		Reason:        reason,
		Prompt:        prompt,
		GitBranch:     branch,
		GitDirty:      dirty,
		ChangedFiles:  files,
		Verifiers:     results,
		StdoutLogPath: filepath.Join(logDir, model+".log"),
		StderrLogPath: filepath.Join(logDir, model+".stderr.log"),
	}
	// A changelog append failure never aborts the run. The error is
	// discarded: it is not added to the run's warnings or reported anywhere.
	_ = changelog.Append(repo, entry)
}

func setStatus(repo, runID string, iteration int, status ralfstate.Status, cause string) {
	now := time.Now().Unix()
	_ = ralfstate.SaveState(repo, ralfstate.RunState{
		RunID:     runID,
		Iteration: iteration,
		Status:    status,
		StartedAt: &now,
		Cause:     cause,
		Pid:       os.Getpid(),
	})
}

func finish(repo, runID string, iteration int, status ralfstate.Status, cause string) RunOutcome {
	setStatus(repo, runID, iteration, status, cause)
	return RunOutcome{Status: status, Cause: cause, Iterations: iteration}
}

func sleepOrCancel(ctx context.Context, repo string, until time.Time) bool {
	d := time.Until(until)
	if d <= 0 {
		return !isCancelled(ctx, repo)
	}
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			return !isCancelled(ctx, repo)
		case <-ticker.C:
			if isCancelled(ctx, repo) {
				return false
			}
		case <-ctx.Done():
			return false
		}
	}
}
