// Package discovery locates known model binaries on the executable search
// path and probes their responsiveness without ever risking an interactive
// prompt or an unbounded hang.
package discovery

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/danshapiro/ralf/internal/ralfconfig"
	"github.com/danshapiro/ralf/internal/subprocrun"
)

// ProbeStatus is the outcome of a one-shot responsiveness probe.
type ProbeStatus string

const (
	Responsive ProbeStatus = "responsive"
	NeedsAuth  ProbeStatus = "needs_auth"
	TimedOut   ProbeStatus = "timeout"
	Errored    ProbeStatus = "error"
)

// BinaryInfo describes one configured model's discoverability.
type BinaryInfo struct {
	Name       string
	Found      bool
	Path       string
	HelpOK     bool
	Diagnostic string
}

// ProbeReport is the outcome of Probe.
type ProbeReport struct {
	Name   string
	Status ProbeStatus
	Cause  string
}

// DefaultProbeTimeout bounds a single probe invocation.
const DefaultProbeTimeout = 10 * time.Second

var needsAuthPattern = regexp.MustCompile(`(?i)\b(login|auth|credential)\b`)

// Discover reports, for each configured model, whether its binary is found
// on PATH and the result of invoking it with --help.
func Discover(ctx context.Context, models []ralfconfig.ModelSpec) []BinaryInfo {
	out := make([]BinaryInfo, 0, len(models))
	for _, m := range models {
		out = append(out, discoverOne(ctx, m))
	}
	return out
}

func discoverOne(ctx context.Context, m ralfconfig.ModelSpec) BinaryInfo {
	info := BinaryInfo{Name: m.Name}
	if len(m.CommandArgv) == 0 {
		info.Diagnostic = "no command_argv configured"
		return info
	}
	bin := m.CommandArgv[0]
	resolved, err := exec.LookPath(bin)
	if err != nil {
		info.Diagnostic = err.Error()
		return info
	}
	info.Found = true
	info.Path = resolved

	probeSpec := ralfconfig.ModelSpec{
		Name:           m.Name,
		CommandArgv:    []string{bin, "--help"},
		PromptMode:     ralfconfig.PromptStdin,
		TimeoutSeconds: int(DefaultProbeTimeout.Seconds()),
	}
	res, err := subprocrun.Invoke(ctx, probeSpec, "", probeLogDir())
	if err != nil {
		info.Diagnostic = err.Error()
		return info
	}
	if res.TimedOut {
		info.Diagnostic = "--help timed out"
		return info
	}
	info.HelpOK = res.ExitCode == 0
	if !info.HelpOK {
		info.Diagnostic = firstLine(res.Stderr)
	}
	return info
}

// Probe performs a one-shot trivial invocation of model's binary under
// timeout, reporting responsive, needs_auth, timeout, or error. stdin is
// always closed; the probe must never block beyond timeout regardless of
// how the child behaves.
func Probe(ctx context.Context, model ralfconfig.ModelSpec, timeout time.Duration) ProbeReport {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if len(model.CommandArgv) == 0 {
		return ProbeReport{Name: model.Name, Status: Errored, Cause: "no command_argv configured"}
	}
	probeSpec := ralfconfig.ModelSpec{
		Name:           model.Name,
		CommandArgv:    []string{model.CommandArgv[0], "--help"},
		PromptMode:     ralfconfig.PromptStdin,
		TimeoutSeconds: int(timeout.Seconds()),
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	res, err := subprocrun.Invoke(pctx, probeSpec, "", probeLogDir())
	if err != nil {
		return ProbeReport{Name: model.Name, Status: Errored, Cause: err.Error()}
	}
	if res.TimedOut || (res.Cancelled && errors.Is(pctx.Err(), context.DeadlineExceeded)) {
		return ProbeReport{Name: model.Name, Status: TimedOut}
	}
	if needsAuthPattern.MatchString(res.Stderr) {
		return ProbeReport{Name: model.Name, Status: NeedsAuth, Cause: firstLine(res.Stderr)}
	}
	if res.ExitCode != 0 {
		return ProbeReport{Name: model.Name, Status: Errored, Cause: firstLine(res.Stderr)}
	}
	return ProbeReport{Name: model.Name, Status: Responsive}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// probeLogDir routes probe subprocess logs to the OS temp dir: a probe's
// log content is not part of any run's durable record.
func probeLogDir() string {
	return os.TempDir()
}
