package subprocrun

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/danshapiro/ralf/internal/ralfconfig"
)

func TestInvoke_CapturesStdoutAndExitCode(t *testing.T) {
	spec := ralfconfig.ModelSpec{
		Name:           "echoer",
		CommandArgv:    []string{"sh", "-c", "printf '<promise>COMPLETE</promise>'"},
		PromptMode:     ralfconfig.PromptStdin,
		TimeoutSeconds: 5,
	}
	res, err := Invoke(context.Background(), spec, "ignored", t.TempDir())
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code: got %d want 0", res.ExitCode)
	}
	if !strings.Contains(res.Stdout, "<promise>COMPLETE</promise>") {
		t.Fatalf("stdout: %q", res.Stdout)
	}
	if res.TimedOut || res.Cancelled {
		t.Fatalf("unexpected flags: %+v", res)
	}
}

func TestInvoke_PromptModeStdin_DeliversPromptOnStdin(t *testing.T) {
	spec := ralfconfig.ModelSpec{
		Name:           "catter",
		CommandArgv:    []string{"cat"},
		PromptMode:     ralfconfig.PromptStdin,
		TimeoutSeconds: 5,
	}
	res, err := Invoke(context.Background(), spec, "hello from stdin", t.TempDir())
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "hello from stdin" {
		t.Fatalf("stdout: got %q", res.Stdout)
	}
}

func TestInvoke_PromptModeArg_AppendsPromptAsFinalArg(t *testing.T) {
	spec := ralfconfig.ModelSpec{
		Name:           "arger",
		CommandArgv:    []string{"sh", "-c", `printf '%s' "$1"`, "_"},
		PromptMode:     ralfconfig.PromptArg,
		TimeoutSeconds: 5,
	}
	res, err := Invoke(context.Background(), spec, "hello from arg", t.TempDir())
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "hello from arg" {
		t.Fatalf("stdout: got %q", res.Stdout)
	}
}

func TestInvoke_TimesOutAndKillsProcessGroup(t *testing.T) {
	spec := ralfconfig.ModelSpec{
		Name:           "sleeper",
		CommandArgv:    []string{"sh", "-c", "sleep 30"},
		PromptMode:     ralfconfig.PromptStdin,
		TimeoutSeconds: 1,
	}
	start := time.Now()
	res, err := Invoke(context.Background(), spec, "", t.TempDir())
	dur := time.Since(start)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !res.TimedOut {
		t.Fatalf("expected TimedOut=true, got %+v", res)
	}
	if res.ExitCode != -1 {
		t.Fatalf("exit code: got %d want -1", res.ExitCode)
	}
	if dur > 5*time.Second {
		t.Fatalf("expected prompt return after timeout+grace, took %s", dur)
	}
}

func TestInvoke_ContextCancel_KillsProcessGroupPromptly(t *testing.T) {
	spec := ralfconfig.ModelSpec{
		Name:           "sleeper",
		CommandArgv:    []string{"sh", "-c", "sleep 30"},
		PromptMode:     ralfconfig.PromptStdin,
		TimeoutSeconds: 30,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var res IterationResult
	var err error
	start := time.Now()
	go func() {
		res, err = Invoke(ctx, spec, "", t.TempDir())
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Invoke did not return promptly after cancel")
	}
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !res.Cancelled {
		t.Fatalf("expected Cancelled=true, got %+v", res)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("expected prompt cancel handling")
	}
}

func TestInvoke_SpawnFailed(t *testing.T) {
	spec := ralfconfig.ModelSpec{
		Name:           "missing",
		CommandArgv:    []string{"/no/such/binary-ralf-test"},
		PromptMode:     ralfconfig.PromptStdin,
		TimeoutSeconds: 5,
	}
	res, err := Invoke(context.Background(), spec, "", t.TempDir())
	if err == nil {
		t.Fatalf("expected spawn error")
	}
	if res.SpawnError == nil {
		t.Fatalf("expected SpawnError set on result")
	}
}

func TestInvoke_OutputBelowCapIsNotTruncated(t *testing.T) {
	spec := ralfconfig.ModelSpec{
		Name:           "flooder",
		CommandArgv:    []string{"sh", "-c", "head -c 1000 /dev/zero | tr '\\0' 'a'"},
		PromptMode:     ralfconfig.PromptStdin,
		TimeoutSeconds: 5,
	}
	res, err := Invoke(context.Background(), spec, "", t.TempDir())
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(res.Stdout) != 1000 {
		t.Fatalf("expected untruncated 1000-byte output below cap, got %d bytes", len(res.Stdout))
	}
}

func TestCappedBuffer_TruncatesAtLimit(t *testing.T) {
	c := &cappedBuffer{limit: 10}
	c.Write([]byte("0123456789"))
	c.Write([]byte("overflow"))
	got := c.String()
	if !strings.HasPrefix(got, "0123456789") {
		t.Fatalf("expected prefix preserved, got %q", got)
	}
	if !strings.Contains(got, "truncated") {
		t.Fatalf("expected truncation marker, got %q", got)
	}
}
