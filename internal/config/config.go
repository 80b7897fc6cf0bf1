// Package config loads and validates the git-news TOML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that unmarshals from TOML strings like "60s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the full set of runtime settings: the three model tiers, their
// token budgets, retry/timeout policy, and concurrency.
type Config struct {
	Repo     Repo        `toml:"repo"`
	Models   Models      `toml:"models"`
	Retry    RetryPolicy `toml:"retry"`
	Output   Output      `toml:"output"`
	LogLevel string      `toml:"log_level"`
}

// Repo describes the Git working tree to analyze, the concurrency bound, and
// the per-call LLM timeout. The analysis window comes from the CLI flags, not
// from here.
type Repo struct {
	Workspace     string   `toml:"workspace"`
	MaxConcurrent int      `toml:"max_concurrent"`
	CallTimeout   Duration `toml:"call_timeout"`
}

// Models names the three analysis tiers' model and token configuration.
type Models struct {
	Tier1                string  `toml:"tier1"`
	Tier2                string  `toml:"tier2"`
	Tier3                string  `toml:"tier3"`
	TokenLimitTier1      int     `toml:"token_limit_tier1"`
	TokenLimitTier2      int     `toml:"token_limit_tier2"`
	TokenLimitTier3      int     `toml:"token_limit_tier3"`
	MaxOutputTokensTier1 int     `toml:"max_output_tokens_tier1"`
	MaxOutputTokensTier2 int     `toml:"max_output_tokens_tier2"`
	MaxOutputTokensTier3 int     `toml:"max_output_tokens_tier3"`
	Temperature          float64 `toml:"temperature"`

	// APIKey is never read from TOML — it is populated from the
	// GIT_NEWS_GEMINI_API_KEY environment variable by Load, so it never
	// lands in a config file that might be committed.
	APIKey string `toml:"-"`
}

// RetryPolicy holds the retry/backoff settings read from the [retry] table.
// They are loaded and validated only: the LLM client built by cmd/git-news
// does not receive them and always uses llmclient.DefaultRetryPolicy.
type RetryPolicy struct {
	MaxRetries    int      `toml:"max_retries"`
	InitialDelay  Duration `toml:"initial_delay"`
	BackoffFactor float64  `toml:"backoff_factor"`
	MaxDelay      Duration `toml:"max_delay"`
}

// Output configures where generated artifacts are written.
type Output struct {
	NewsDir       string `toml:"news_dir"`
	ChangelogPath string `toml:"changelog_path"`
	CacheDir      string `toml:"cache_dir"`
}

const apiKeyEnvVar = "GIT_NEWS_GEMINI_API_KEY"

// Load reads and validates a git-news TOML configuration file, then
// overlays the Gemini API key from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyDefaults(&cfg)

	cfg.Models.APIKey = strings.TrimSpace(os.Getenv(apiKeyEnvVar))

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Repo.Workspace == "" {
		cfg.Repo.Workspace = "."
	}
	if cfg.Repo.MaxConcurrent == 0 {
		cfg.Repo.MaxConcurrent = 4
	}
	if cfg.Repo.CallTimeout.Duration == 0 {
		cfg.Repo.CallTimeout.Duration = 120 * time.Second
	}

	if cfg.Models.Tier1 == "" {
		cfg.Models.Tier1 = "gemini-2.5-flash"
	}
	if cfg.Models.Tier2 == "" {
		cfg.Models.Tier2 = "gemini-2.5-pro"
	}
	if cfg.Models.Tier3 == "" {
		cfg.Models.Tier3 = "gemini-2.5-pro"
	}
	if cfg.Models.TokenLimitTier1 == 0 {
		cfg.Models.TokenLimitTier1 = 1_000_000
	}
	if cfg.Models.TokenLimitTier2 == 0 {
		cfg.Models.TokenLimitTier2 = 1_000_000
	}
	if cfg.Models.TokenLimitTier3 == 0 {
		cfg.Models.TokenLimitTier3 = 1_000_000
	}
	if cfg.Models.MaxOutputTokensTier1 == 0 {
		cfg.Models.MaxOutputTokensTier1 = 8192
	}
	if cfg.Models.MaxOutputTokensTier2 == 0 {
		cfg.Models.MaxOutputTokensTier2 = 8192
	}
	if cfg.Models.MaxOutputTokensTier3 == 0 {
		cfg.Models.MaxOutputTokensTier3 = 8192
	}
	if cfg.Models.Temperature == 0 {
		cfg.Models.Temperature = 0.3
	}

	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.InitialDelay.Duration == 0 {
		cfg.Retry.InitialDelay.Duration = 2 * time.Second
	}
	if cfg.Retry.BackoffFactor == 0 {
		cfg.Retry.BackoffFactor = 2.0
	}
	if cfg.Retry.MaxDelay.Duration == 0 {
		cfg.Retry.MaxDelay.Duration = 30 * time.Second
	}

	if cfg.Output.NewsDir == "" {
		cfg.Output.NewsDir = "news"
	}
	if cfg.Output.ChangelogPath == "" {
		cfg.Output.ChangelogPath = "CHANGELOG.md"
	}
	if cfg.Output.CacheDir == "" {
		cfg.Output.CacheDir = ".git-news-cache"
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func validate(cfg *Config) error {
	if cfg.Repo.MaxConcurrent <= 0 {
		return fmt.Errorf("repo.max_concurrent must be > 0")
	}
	if cfg.Repo.CallTimeout.Duration <= 0 {
		return fmt.Errorf("repo.call_timeout must be > 0")
	}
	if cfg.Models.Temperature < 0 || cfg.Models.Temperature > 2 {
		return fmt.Errorf("models.temperature must be between 0 and 2")
	}
	for _, limit := range []struct {
		name  string
		value int
	}{
		{"models.token_limit_tier1", cfg.Models.TokenLimitTier1},
		{"models.token_limit_tier2", cfg.Models.TokenLimitTier2},
		{"models.token_limit_tier3", cfg.Models.TokenLimitTier3},
		{"models.max_output_tokens_tier1", cfg.Models.MaxOutputTokensTier1},
		{"models.max_output_tokens_tier2", cfg.Models.MaxOutputTokensTier2},
		{"models.max_output_tokens_tier3", cfg.Models.MaxOutputTokensTier3},
	} {
		if limit.value <= 0 {
			return fmt.Errorf("%s must be > 0", limit.name)
		}
	}
	if cfg.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries cannot be negative")
	}
	if cfg.Retry.BackoffFactor <= 0 {
		return fmt.Errorf("retry.backoff_factor must be > 0")
	}
	if cfg.Models.APIKey == "" {
		return fmt.Errorf("%s environment variable is required", apiKeyEnvVar)
	}
	return nil
}
