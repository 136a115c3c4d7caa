// Package gitutil wraps the handful of git invocations the engine needs to
// describe a working tree in a changelog entry: is this a repo, is it clean,
// what's HEAD, what branch are we on, and what changed.
package gitutil

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultTimeout bounds every git invocation in this package. A git binary
// that hangs (e.g. waiting on a credential prompt) must not hang the engine.
const DefaultTimeout = 5 * time.Second

func run(dir string, timeout time.Duration, args ...string) (string, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.String(), err
}

// IsRepo reports whether dir is inside a git working tree.
func IsRepo(dir string) bool {
	out, err := run(dir, 0, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// IsClean reports whether the working tree has no modified, staged, or
// untracked paths.
func IsClean(dir string) (bool, error) {
	out, err := run(dir, 0, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "", nil
}

// HeadSHA returns the full SHA of HEAD. It fails on a repo with no commits.
func HeadSHA(dir string) (string, error) {
	out, err := run(dir, 0, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Branch returns the current branch name, or "" for a detached HEAD.
func Branch(dir string) (string, error) {
	out, err := run(dir, 0, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	branch := strings.TrimSpace(out)
	if branch == "HEAD" {
		return "", nil
	}
	return branch, nil
}

// ChangedFiles returns the set of modified, staged, and untracked paths,
// relative to dir, as reported by `git status --porcelain`.
func ChangedFiles(dir string) ([]string, error) {
	out, err := run(dir, 0, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(line) < 4 {
			continue
		}
		files = append(files, strings.TrimSpace(line[3:]))
	}
	return files, nil
}

// ChangedFilesExcluding returns ChangedFiles filtered to drop any path
// matching one of the doublestar glob patterns in exclude (e.g. ".ralf/**").
func ChangedFilesExcluding(dir string, exclude []string) ([]string, error) {
	files, err := ChangedFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(exclude) == 0 {
		return files, nil
	}
	var kept []string
	for _, f := range files {
		excluded := false
		for _, pattern := range exclude {
			if ok, _ := doublestar.Match(pattern, f); ok {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, f)
		}
	}
	return kept, nil
}

// AddAllWithExcludes stages every change in the working tree except paths
// matching one of the given doublestar glob patterns. It leaves the working
// tree untouched; only the index changes.
func AddAllWithExcludes(dir string, excludeGlobs []string) error {
	args := []string{"add", "-A", "--"}
	args = append(args, ".")
	for _, g := range excludeGlobs {
		args = append(args, ":(exclude,glob)"+g)
	}
	_, err := run(dir, 0, args...)
	return err
}
