package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danshapiro/ralf/internal/discovery"
	"github.com/danshapiro/ralf/internal/ralfconfig"
	"github.com/danshapiro/ralf/internal/ralfstate"
)

// Inventory is C3's discovery result, structured for machine consumption.
type Inventory struct {
	Models []discovery.BinaryInfo
}

// ErrAlreadyInitialized is returned by Init when .ralf/config.json already
// exists; Init is otherwise additive, not a failure.
var ErrAlreadyInitialized = fmt.Errorf("ralf: already initialized")

// Doctor returns an inventory of every model the repo's configuration
// names, or — if unconfigured — every default model ralf knows about, so
// `doctor` is useful both before and after `init`.
func Doctor(ctx context.Context, repo string) (Inventory, error) {
	cfg, err := ralfconfig.Load(repo)
	if err != nil {
		if err == ralfconfig.ErrNotInitialized {
			cfg = ralfconfig.Default()
		} else {
			return Inventory{}, err
		}
	}
	return Inventory{Models: discovery.Discover(ctx, cfg.Models)}, nil
}

// Init scaffolds .ralf/: a default config.json containing only the models
// discovery found callable (falling back to all three known defaults if
// none are callable, so a fresh machine still gets a usable file to edit),
// empty state.json/cooldowns.json, and changelog/runs directories.
// Re-running Init on an existing .ralf/ adds only what's missing; it never
// overwrites an existing file.
func Init(ctx context.Context, repo string) error {
	dir := ralfconfig.ConfigDir(repo)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ralf: create %s: %w", dir, err)
	}

	configExists := fileExists(filepath.Join(dir, "config.json"))
	if !configExists {
		cfg := defaultCallableConfig(ctx)
		if err := ralfconfig.Save(repo, cfg); err != nil {
			return err
		}
	}

	if !fileExists(stateFilePath(repo)) {
		if err := ralfstate.SaveState(repo, ralfstate.RunState{Status: ralfstate.StatusIdle}); err != nil {
			return err
		}
	}
	if !fileExists(cooldownsFilePath(repo)) {
		if err := ralfstate.SaveCooldowns(repo, ralfstate.Cooldowns{}); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, "changelog"), 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(ralfstate.RunsDir(repo), 0o755); err != nil {
		return err
	}
	if configExists {
		return ErrAlreadyInitialized
	}
	return nil
}

func defaultCallableConfig(ctx context.Context) *ralfconfig.Config {
	def := ralfconfig.Default()
	infos := discovery.Discover(ctx, def.Models)
	callable := map[string]bool{}
	for _, info := range infos {
		if info.Found {
			callable[info.Name] = true
		}
	}
	if len(callable) == 0 {
		// Nothing found on this machine yet: keep all three defaults so
		// `init` still produces something the user can edit once CLIs
		// are installed.
		return def
	}
	var models []ralfconfig.ModelSpec
	var priority []string
	for _, m := range def.Models {
		if callable[m.Name] {
			models = append(models, m)
			priority = append(priority, m.Name)
		}
	}
	def.Models = models
	def.ModelPriority = priority
	return def
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func stateFilePath(repo string) string     { return filepath.Join(ralfconfig.ConfigDir(repo), "state.json") }
func cooldownsFilePath(repo string) string { return filepath.Join(ralfconfig.ConfigDir(repo), "cooldowns.json") }
