// Package ralfconfig loads and saves the per-repo configuration describing
// models and verifiers, at <repo>/.ralf/config.json (or config.yaml).
package ralfconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/danshapiro/ralf/internal/atomicfile"
	"gopkg.in/yaml.v3"
)

// SelectionStrategy is the model-selection algorithm the selector applies.
type SelectionStrategy string

const (
	RoundRobin SelectionStrategy = "round_robin"
	Priority   SelectionStrategy = "priority"
)

// PromptMode controls how the prompt is handed to a model subprocess.
type PromptMode string

const (
	PromptStdin PromptMode = "stdin"
	PromptArg   PromptMode = "arg"
)

// ModelSpec describes one model's invocation contract.
type ModelSpec struct {
	Name                  string   `json:"name" yaml:"name"`
	CommandArgv           []string `json:"command_argv" yaml:"command_argv"`
	PromptMode            PromptMode `json:"prompt_mode" yaml:"prompt_mode"`
	TimeoutSeconds        int      `json:"timeout_seconds" yaml:"timeout_seconds"`
	RateLimitPatterns     []string `json:"rate_limit_patterns" yaml:"rate_limit_patterns"`
	DefaultCooldownSeconds int     `json:"default_cooldown_seconds" yaml:"default_cooldown_seconds"`
}

// VerifierSpec describes one verifier's invocation contract.
type VerifierSpec struct {
	Name           string   `json:"name" yaml:"name"`
	CommandArgv    []string `json:"command_argv" yaml:"command_argv"`
	TimeoutSeconds int      `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// Config is the immutable-within-a-run configuration loaded from
// .ralf/config.json (or config.yaml).
type Config struct {
	ModelPriority       []string          `json:"model_priority" yaml:"model_priority"`
	ModelSelection      SelectionStrategy `json:"model_selection" yaml:"model_selection"`
	RequiredVerifiers   []string          `json:"required_verifiers" yaml:"required_verifiers"`
	CompletionPromise   string            `json:"completion_promise" yaml:"completion_promise"`
	Models              []ModelSpec       `json:"models" yaml:"models"`
	Verifiers           []VerifierSpec    `json:"verifiers" yaml:"verifiers"`
}

// ModelByName returns the ModelSpec with the given name, if configured.
func (c *Config) ModelByName(name string) (ModelSpec, bool) {
	for _, m := range c.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelSpec{}, false
}

// VerifierByName returns the VerifierSpec with the given name, if configured.
func (c *Config) VerifierByName(name string) (VerifierSpec, bool) {
	for _, v := range c.Verifiers {
		if v.Name == name {
			return v, true
		}
	}
	return VerifierSpec{}, false
}

// ErrNotInitialized is returned by Load when <repo>/.ralf/config.json (and
// config.yaml) are both absent.
var ErrNotInitialized = fmt.Errorf("ralf: not initialized (no .ralf/config.json)")

// ConfigDir returns <repo>/.ralf.
func ConfigDir(repo string) string {
	return filepath.Join(repo, ".ralf")
}

func jsonPath(repo string) string { return filepath.Join(ConfigDir(repo), "config.json") }
func yamlPath(repo string) string { return filepath.Join(ConfigDir(repo), "config.yaml") }

// Load reads and validates the configuration for repo. It returns
// ErrNotInitialized if neither config.json nor config.yaml exists, and a
// malformed-config error (wrapping the parse or validation cause) otherwise.
func Load(repo string) (*Config, error) {
	path := jsonPath(repo)
	isYAML := false
	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("ralf: read config: %w", err)
		}
		path = yamlPath(repo)
		isYAML = true
		b, err = os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, ErrNotInitialized
			}
			return nil, fmt.Errorf("ralf: read config: %w", err)
		}
	}

	if err := validateSchema(b, isYAML); err != nil {
		return nil, fmt.Errorf("ralf: config %s malformed: %w", path, err)
	}

	var cfg Config
	if isYAML {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("ralf: parse config %s: %w", path, err)
		}
	} else {
		dec := json.NewDecoder(strings.NewReader(string(b)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("ralf: parse config %s: %w", path, err)
		}
	}
	applyDefaults(&cfg)
	if err := validateSemantics(&cfg); err != nil {
		return nil, fmt.Errorf("ralf: config %s invalid: %w", path, err)
	}
	return &cfg, nil
}

// Save writes cfg to <repo>/.ralf/config.json, creating .ralf/ if needed.
func Save(repo string, cfg *Config) error {
	if err := os.MkdirAll(ConfigDir(repo), 0o755); err != nil {
		return fmt.Errorf("ralf: create %s: %w", ConfigDir(repo), err)
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("ralf: marshal config: %w", err)
	}
	return atomicfile.Write(jsonPath(repo), b, 0o644)
}

func applyDefaults(cfg *Config) {
	if cfg.ModelSelection == "" {
		cfg.ModelSelection = RoundRobin
	}
	if cfg.CompletionPromise == "" {
		cfg.CompletionPromise = "COMPLETE"
	}
	for i := range cfg.Models {
		if cfg.Models[i].PromptMode == "" {
			cfg.Models[i].PromptMode = PromptStdin
		}
	}
}

func validateSemantics(cfg *Config) error {
	switch cfg.ModelSelection {
	case RoundRobin, Priority:
	default:
		return fmt.Errorf("invalid model_selection: %q (want round_robin|priority)", cfg.ModelSelection)
	}
	if strings.TrimSpace(cfg.CompletionPromise) == "" {
		return fmt.Errorf("completion_promise must be non-empty")
	}
	seen := map[string]bool{}
	for _, m := range cfg.Models {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("model name must be non-empty")
		}
		if seen[m.Name] {
			return fmt.Errorf("duplicate model name: %q", m.Name)
		}
		seen[m.Name] = true
		if len(m.CommandArgv) == 0 {
			return fmt.Errorf("model %q: command_argv must be non-empty", m.Name)
		}
		if m.TimeoutSeconds <= 0 {
			return fmt.Errorf("model %q: timeout_seconds must be positive", m.Name)
		}
		switch m.PromptMode {
		case PromptStdin, PromptArg:
		default:
			return fmt.Errorf("model %q: invalid prompt_mode: %q", m.Name, m.PromptMode)
		}
		if m.DefaultCooldownSeconds < 0 {
			return fmt.Errorf("model %q: default_cooldown_seconds must be >= 0", m.Name)
		}
	}
	seenV := map[string]bool{}
	for _, v := range cfg.Verifiers {
		if strings.TrimSpace(v.Name) == "" {
			return fmt.Errorf("verifier name must be non-empty")
		}
		if seenV[v.Name] {
			return fmt.Errorf("duplicate verifier name: %q", v.Name)
		}
		seenV[v.Name] = true
		if len(v.CommandArgv) == 0 {
			return fmt.Errorf("verifier %q: command_argv must be non-empty", v.Name)
		}
		if v.TimeoutSeconds <= 0 {
			return fmt.Errorf("verifier %q: timeout_seconds must be positive", v.Name)
		}
	}
	for _, name := range cfg.ModelPriority {
		if _, ok := cfg.ModelByName(name); !ok {
			return fmt.Errorf("model_priority references unknown model: %q", name)
		}
	}
	for _, name := range cfg.RequiredVerifiers {
		if _, ok := cfg.VerifierByName(name); !ok {
			return fmt.Errorf("required_verifiers references unknown verifier: %q", name)
		}
	}
	return nil
}
