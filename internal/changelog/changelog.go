// Package changelog appends per-iteration records to each model's
// append-only markdown changelog file under .ralf/changelog/<model>.md.
package changelog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/danshapiro/ralf/internal/gitutil"
	"github.com/danshapiro/ralf/internal/verifier"
)

// Status is the recorded outcome of an iteration.
type Status string

const (
	Success        Status = "success"
	RateLimited    Status = "rate_limited"
	Timeout        Status = "timeout"
	Error          Status = "error"
	VerifierFailed Status = "verifier_failed"
)

// Entry is one changelog record.
type Entry struct {
	RunID         string
	Iteration     int
	Model         string
	Status        Status
	Reason        string
	Prompt        string
	GitBranch     string
	GitDirty      string // "true" | "false" | "unknown"
	ChangedFiles  []string
	Verifiers     map[string]verifier.Result
	StdoutLogPath string
	StderrLogPath string
}

// Dir returns <repo>/.ralf/changelog.
func Dir(repo string) string { return filepath.Join(repo, ".ralf", "changelog") }

func path(repo, model string) string {
	return filepath.Join(Dir(repo), model+".md")
}

// PromptHash returns the SHA-256 hex digest of prompt's UTF-8 bytes.
func PromptHash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// GitInfo gathers the git fields a changelog entry needs, with a graceful
// fallback when repo is not a git working tree or git is unavailable: git
// info never fails the iteration it describes.
func GitInfo(repo string) (branch string, dirty string, changedFiles []string) {
	if !gitutil.IsRepo(repo) {
		return "none", "unknown", nil
	}
	b, err := gitutil.Branch(repo)
	if err != nil {
		branch = "none"
	} else {
		branch = b
		if branch == "" {
			branch = "none"
		}
	}
	clean, err := gitutil.IsClean(repo)
	if err != nil {
		dirty = "unknown"
	} else if clean {
		dirty = "false"
	} else {
		dirty = "true"
	}
	files, err := gitutil.ChangedFilesExcluding(repo, []string{".ralf/**"})
	if err == nil {
		changedFiles = files
	}
	return branch, dirty, changedFiles
}

// Append writes e as a new H2-headed markdown section to
// .ralf/changelog/<e.Model>.md, opening the file in append mode and
// flushing before returning. It never rewrites existing content.
func Append(repo string, e Entry) error {
	if err := os.MkdirAll(Dir(repo), 0o755); err != nil {
		return fmt.Errorf("changelog: create dir: %w", err)
	}
	f, err := os.OpenFile(path(repo, e.Model), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("changelog: open %s: %w", e.Model, err)
	}
	defer f.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "## Run %s — Iteration %d\n\n", e.RunID, e.Iteration)
	fmt.Fprintf(&b, "- model: %s\n", e.Model)
	fmt.Fprintf(&b, "- status: %s\n", e.Status)
	fmt.Fprintf(&b, "- reason: %s\n", orNone(e.Reason))
	fmt.Fprintf(&b, "- prompt_hash: %s\n", PromptHash(e.Prompt))
	fmt.Fprintf(&b, "- git_branch: %s\n", e.GitBranch)
	fmt.Fprintf(&b, "- git_dirty: %s\n", e.GitDirty)
	fmt.Fprintf(&b, "- changed_files: %s\n", joinOrNone(e.ChangedFiles))
	fmt.Fprintf(&b, "- verifiers: %s\n", formatVerifiers(e.Verifiers))
	fmt.Fprintf(&b, "- stdout_log: %s\n", orNone(e.StdoutLogPath))
	fmt.Fprintf(&b, "- stderr_log: %s\n", orNone(e.StderrLogPath))
	b.WriteString("\n")

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("changelog: write %s: %w", e.Model, err)
	}
	return f.Sync()
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return s
}

func joinOrNone(ss []string) string {
	if len(ss) == 0 {
		return "none"
	}
	return strings.Join(ss, ", ")
}

func formatVerifiers(results map[string]verifier.Result) string {
	if len(results) == 0 {
		return "none"
	}
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%s", name, results[name].Status))
	}
	return strings.Join(parts, ", ")
}
