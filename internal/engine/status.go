package engine

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danshapiro/ralf/internal/changelog"
	"github.com/danshapiro/ralf/internal/discovery"
	"github.com/danshapiro/ralf/internal/ralfconfig"
	"github.com/danshapiro/ralf/internal/ralfstate"
)

// Totals is a derived, in-memory summary of a repo's changelog history,
// computed fresh from file-backed state rather than stored separately.
type Totals struct {
	Iterations  int
	ByStatus    map[string]int
	TotalModels int
}

// StatusReport is the result of the status() operation.
type StatusReport struct {
	RunState  ralfstate.RunState
	Cooldowns ralfstate.Cooldowns
	Totals    Totals
}

// Status returns the current RunState and cooldown map, plus a derived
// per-status iteration count computed by scanning every model's changelog.
func Status(repo string) (StatusReport, error) {
	rs, err := ralfstate.LoadState(repo)
	if err != nil {
		return StatusReport{}, err
	}
	cd, err := ralfstate.LoadCooldowns(repo)
	if err != nil {
		return StatusReport{}, err
	}
	totals, err := computeTotals(repo)
	if err != nil {
		return StatusReport{}, err
	}
	return StatusReport{RunState: rs, Cooldowns: cd, Totals: totals}, nil
}

func computeTotals(repo string) (Totals, error) {
	t := Totals{ByStatus: map[string]int{}}
	dir := changelog.Dir(repo)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return Totals{}, err
	}
	t.TotalModels = len(entries)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		counts, n, err := scanChangelogFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		t.Iterations += n
		for status, c := range counts {
			t.ByStatus[status] += c
		}
	}
	return t, nil
}

func scanChangelogFile(path string) (map[string]int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	counts := map[string]int{}
	n := 0
	sc := bufio.NewScanner(f)
	const prefix = "- status: "
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, prefix) {
			status := strings.TrimSpace(strings.TrimPrefix(line, prefix))
			counts[status]++
			n++
		}
	}
	return counts, n, sc.Err()
}

// ProbeOne runs C3's Probe against a single configured model. If name is
// empty, it probes every configured model and returns all reports.
func ProbeOne(ctx context.Context, repo string, name string, timeout time.Duration) ([]discovery.ProbeReport, error) {
	cfg, err := ralfconfig.Load(repo)
	if err != nil {
		return nil, err
	}
	var targets []ralfconfig.ModelSpec
	if name == "" {
		targets = cfg.Models
	} else {
		m, ok := cfg.ModelByName(name)
		if !ok {
			return nil, ralfconfig.ErrNotInitialized
		}
		targets = []ralfconfig.ModelSpec{m}
	}
	var out []discovery.ProbeReport
	for _, m := range targets {
		out = append(out, discovery.Probe(ctx, m, timeout))
	}
	return out, nil
}
