package ralfconfig

import "os"

// Default builds the configuration written by `ralf init`: the three known
// CLI models (anthropic/claude, openai/codex, google/gemini), each with the
// prompt-delivery mode and default argv its CLI actually expects, and no
// verifiers (a fresh repo has none configured yet).
func Default() *Config {
	return &Config{
		ModelPriority:     []string{"claude", "codex", "gemini"},
		ModelSelection:    RoundRobin,
		RequiredVerifiers: nil,
		CompletionPromise: "COMPLETE",
		Models: []ModelSpec{
			{
				Name:                   "claude",
				CommandArgv:            []string{envOr("RALF_CLAUDE_PATH", "claude"), "-p", "--output-format", "stream-json"},
				PromptMode:             PromptArg,
				TimeoutSeconds:         900,
				RateLimitPatterns:      []string{"(?i)rate.limit", "(?i)usage limit", "(?i)try again later"},
				DefaultCooldownSeconds: 300,
			},
			{
				Name:                   "codex",
				CommandArgv:            []string{envOr("RALF_CODEX_PATH", "codex"), "exec", "--json", "--ask-for-approval", "never", "--sandbox", "workspace-write"},
				PromptMode:             PromptStdin,
				TimeoutSeconds:         900,
				RateLimitPatterns:      []string{"(?i)rate.limit", "(?i)quota exceeded"},
				DefaultCooldownSeconds: 300,
			},
			{
				Name:                   "gemini",
				CommandArgv:            []string{envOr("RALF_GEMINI_PATH", "gemini"), "-p", "--output-format", "stream-json"},
				PromptMode:             PromptArg,
				TimeoutSeconds:         900,
				RateLimitPatterns:      []string{"(?i)resource.exhausted", "(?i)rate.limit"},
				DefaultCooldownSeconds: 300,
			},
		},
		Verifiers: nil,
	}
}

func envOr(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
