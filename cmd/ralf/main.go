package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/danshapiro/ralf/internal/dotenv"
	"github.com/danshapiro/ralf/internal/engine"
	"github.com/danshapiro/ralf/internal/ralfstate"
	"github.com/danshapiro/ralf/internal/version"
)

func signalCancelContext() (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(context.Background())
	sigCh := make(chan os.Signal, 1)
	stopCh := make(chan struct{})
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for {
			select {
			case sig := <-sigCh:
				cancel(fmt.Errorf("stopped by signal %s", sig.String()))
			case <-stopCh:
				return
			}
		}
	}()
	cleanup := func() {
		signal.Stop(sigCh)
		close(stopCh)
		cancel(nil)
	}
	return ctx, cleanup
}

func main() {
	// A locally configured .env (API keys for model CLIs) is loaded once,
	// before any subcommand, so subprocess invocations inherit it.
	_ = dotenv.Load(".env")

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	repo, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "--version", "-v", "version":
		fmt.Printf("ralf %s\n", version.Version)
	case "init":
		cmdInit(repo, os.Args[2:])
	case "doctor":
		cmdDoctor(repo, os.Args[2:])
	case "probe":
		cmdProbe(repo, os.Args[2:])
	case "run":
		cmdRun(repo, os.Args[2:])
	case "status":
		cmdStatus(repo, os.Args[2:])
	case "cancel":
		cmdCancel(repo, os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  ralf --version")
	fmt.Fprintln(os.Stderr, "  ralf init")
	fmt.Fprintln(os.Stderr, "  ralf doctor")
	fmt.Fprintln(os.Stderr, "  ralf probe [<model>] [--timeout <seconds>]")
	fmt.Fprintln(os.Stderr, "  ralf run [--max-iterations <n>] [--max-seconds <n>] [--max-stale-iterations <n>] [--models <name,name,...>]")
	fmt.Fprintln(os.Stderr, "  ralf status")
	fmt.Fprintln(os.Stderr, "  ralf cancel")
}

func cmdInit(repo string, args []string) {
	_ = args
	ctx, cleanup := signalCancelContext()
	defer cleanup()
	err := engine.Init(ctx, repo)
	if err != nil && err != engine.ErrAlreadyInitialized {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err == engine.ErrAlreadyInitialized {
		fmt.Println("already initialized; missing files (if any) have been added")
		return
	}
	fmt.Printf("initialized %s\n", filepath.Join(repo, ".ralf"))
}

func cmdDoctor(repo string, args []string) {
	_ = args
	ctx, cleanup := signalCancelContext()
	defer cleanup()
	inv, err := engine.Doctor(ctx, repo)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	anyMissing := false
	for _, m := range inv.Models {
		if m.Found && m.HelpOK {
			fmt.Printf("%s  %-20s %s\n", color.GreenString("ok"), m.Name, m.Path)
			continue
		}
		anyMissing = true
		if !m.Found {
			fmt.Printf("%s  %-20s not found on PATH\n", color.RedString("missing"), m.Name)
			continue
		}
		fmt.Printf("%s  %-20s %s: %s\n", color.YellowString("warn"), m.Name, m.Path, m.Diagnostic)
	}
	if anyMissing {
		os.Exit(1)
	}
}

func cmdProbe(repo string, args []string) {
	var name string
	timeout := 10 * time.Second
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--timeout":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--timeout requires a value")
				os.Exit(1)
			}
			secs, err := strconv.Atoi(args[i])
			if err != nil {
				fmt.Fprintln(os.Stderr, "--timeout: invalid seconds:", err)
				os.Exit(1)
			}
			timeout = time.Duration(secs) * time.Second
		default:
			if strings.HasPrefix(args[i], "--") {
				fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
				os.Exit(1)
			}
			name = args[i]
		}
	}

	ctx, cleanup := signalCancelContext()
	defer cleanup()
	reports, err := engine.ProbeOne(ctx, repo, name, timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	anyBad := false
	for _, r := range reports {
		switch r.Status {
		case "responsive":
			fmt.Printf("%s  %s\n", color.GreenString("responsive"), r.Name)
		case "needs_auth":
			anyBad = true
			fmt.Printf("%s  %s: %s\n", color.YellowString("needs_auth"), r.Name, r.Cause)
		default:
			anyBad = true
			fmt.Printf("%s  %s: %s\n", color.RedString(string(r.Status)), r.Name, r.Cause)
		}
	}
	if anyBad {
		os.Exit(1)
	}
}

func cmdRun(repo string, args []string) {
	var opts engine.RunOptions
	var modelsCSV string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--max-iterations":
			i++
			n, err := requireInt(args, i, "--max-iterations")
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			opts.MaxIterations = n
		case "--max-seconds":
			i++
			n, err := requireInt(args, i, "--max-seconds")
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			opts.MaxSeconds = n
		case "--max-stale-iterations":
			i++
			n, err := requireInt(args, i, "--max-stale-iterations")
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			opts.MaxStaleIterations = n
		case "--models":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--models requires a value")
				os.Exit(1)
			}
			modelsCSV = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			os.Exit(1)
		}
	}
	if modelsCSV != "" {
		opts.Models = strings.Split(modelsCSV, ",")
	}

	ctx, cleanup := signalCancelContext()
	outcome, err := engine.Run(ctx, repo, opts)
	cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	for _, w := range outcome.Warnings {
		fmt.Fprintf(os.Stderr, "WARNING: %s\n", w)
	}
	fmt.Printf("status=%s\n", colorStatus(outcome.Status))
	if outcome.Cause != "" {
		fmt.Printf("cause=%s\n", outcome.Cause)
	}
	fmt.Printf("iterations=%d\n", outcome.Iterations)

	switch outcome.Status {
	case ralfstate.StatusComplete:
		os.Exit(0)
	default:
		os.Exit(1)
	}
}

func requireInt(args []string, i int, flag string) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%s requires a value", flag)
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", flag, args[i])
	}
	return n, nil
}

func cmdStatus(repo string, args []string) {
	_ = args
	report, err := engine.Status(repo)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("status=%s\n", colorStatus(report.RunState.Status))
	if report.RunState.RunID != "" {
		fmt.Printf("run_id=%s\n", report.RunState.RunID)
		fmt.Printf("iteration=%d\n", report.RunState.Iteration)
	}
	if report.RunState.Cause != "" {
		fmt.Printf("cause=%s\n", report.RunState.Cause)
	}

	names := make([]string, 0, len(report.Cooldowns))
	for name := range report.Cooldowns {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		e := report.Cooldowns[name]
		until := time.Unix(e.CooldownUntil, 0)
		fmt.Printf("cooldown  %-20s until=%s reason=%q\n", name, until.Format(time.RFC3339), e.Reason)
	}

	fmt.Printf("iterations_total=%d\n", report.Totals.Iterations)
	statusNames := make([]string, 0, len(report.Totals.ByStatus))
	for s := range report.Totals.ByStatus {
		statusNames = append(statusNames, s)
	}
	sort.Strings(statusNames)
	for _, s := range statusNames {
		fmt.Printf("  %-16s %d\n", s, report.Totals.ByStatus[s])
	}
}

func cmdCancel(repo string, args []string) {
	_ = args
	if err := engine.Cancel(repo); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println("cancel requested")
}

func colorStatus(s ralfstate.Status) string {
	switch s {
	case ralfstate.StatusComplete:
		return color.GreenString(string(s))
	case ralfstate.StatusFailed, ralfstate.StatusCancelled:
		return color.RedString(string(s))
	case ralfstate.StatusCooling:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}
