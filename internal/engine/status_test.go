package engine

import (
	"context"
	"testing"

	"github.com/danshapiro/ralf/internal/ralfconfig"
	"github.com/danshapiro/ralf/internal/ralfstate"
)

func TestStatus_FreshRepo_IdleWithZeroTotals(t *testing.T) {
	repo := t.TempDir()
	report, err := Status(repo)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if report.RunState.Status != ralfstate.StatusIdle {
		t.Fatalf("RunState.Status: got %s want idle", report.RunState.Status)
	}
	if len(report.Cooldowns) != 0 {
		t.Fatalf("expected empty cooldowns, got %+v", report.Cooldowns)
	}
	if report.Totals.Iterations != 0 {
		t.Fatalf("expected zero iterations, got %+v", report.Totals)
	}
}

func TestStatus_AfterRun_ReflectsChangelogTotals(t *testing.T) {
	repo := t.TempDir()
	writePrompt(t, repo)
	cfg := &ralfconfig.Config{
		ModelSelection:    ralfconfig.Priority,
		CompletionPromise: "DONE",
		ModelPriority:     []string{"solo"},
		Models:            []ralfconfig.ModelSpec{echoModel("solo", "printf '<promise>DONE</promise>'")},
	}
	saveConfig(t, repo, cfg)

	if _, err := Run(context.Background(), repo, RunOptions{MaxIterations: 5}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	report, err := Status(repo)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if report.RunState.Status != ralfstate.StatusComplete {
		t.Fatalf("RunState.Status: got %s want complete", report.RunState.Status)
	}
	if report.Totals.Iterations != 1 {
		t.Fatalf("Totals.Iterations: got %d want 1", report.Totals.Iterations)
	}
	if report.Totals.ByStatus["success"] != 1 {
		t.Fatalf("Totals.ByStatus: got %+v", report.Totals.ByStatus)
	}
	if report.Totals.TotalModels != 1 {
		t.Fatalf("Totals.TotalModels: got %d want 1", report.Totals.TotalModels)
	}
}

func TestProbeOne_UnknownModelName_ReturnsErrNotInitialized(t *testing.T) {
	repo := t.TempDir()
	cfg := ralfconfig.Default()
	if err := ralfconfig.Save(repo, cfg); err != nil {
		t.Fatal(err)
	}
	_, err := ProbeOne(context.Background(), repo, "does-not-exist", 0)
	if err != ralfconfig.ErrNotInitialized {
		t.Fatalf("err: got %v want ErrNotInitialized", err)
	}
}

func TestProbeOne_AllModels_ReturnsOneReportPerModel(t *testing.T) {
	repo := t.TempDir()
	cfg := ralfconfig.Default()
	if err := ralfconfig.Save(repo, cfg); err != nil {
		t.Fatal(err)
	}
	reports, err := ProbeOne(context.Background(), repo, "", 0)
	if err != nil {
		t.Fatalf("ProbeOne: %v", err)
	}
	if len(reports) != len(cfg.Models) {
		t.Fatalf("reports: got %d want %d", len(reports), len(cfg.Models))
	}
}
