package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "git-news.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
[repo]
workspace = "/tmp/test-repo"
`

func withAPIKey(t *testing.T, key string) func() {
	t.Helper()
	prev, had := os.LookupEnv(apiKeyEnvVar)
	os.Setenv(apiKeyEnvVar, key)
	return func() {
		if had {
			os.Setenv(apiKeyEnvVar, prev)
		} else {
			os.Unsetenv(apiKeyEnvVar)
		}
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	defer withAPIKey(t, "test-key")()
	path := writeTestConfig(t, minimalConfig)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Repo.MaxConcurrent)
	require.NotEmpty(t, cfg.Models.Tier1)
	require.NotEmpty(t, cfg.Models.Tier2)
	require.NotEmpty(t, cfg.Models.Tier3)
	require.Positive(t, cfg.Models.TokenLimitTier1)
	require.Equal(t, 3, cfg.Retry.MaxRetries)
	require.NotEmpty(t, cfg.Output.NewsDir)
	require.NotEmpty(t, cfg.Output.CacheDir)
	require.Equal(t, "test-key", cfg.Models.APIKey)
}

func TestLoadRespectsExplicitValues(t *testing.T) {
	defer withAPIKey(t, "test-key")()
	path := writeTestConfig(t, `
[repo]
workspace = "/tmp/explicit"
max_concurrent = 8
call_timeout = "45s"

[models]
tier1 = "gemini-2.5-flash"
token_limit_tier1 = 500000
temperature = 0.9

[retry]
max_retries = 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8, cfg.Repo.MaxConcurrent)
	require.Equal(t, float64(45), cfg.Repo.CallTimeout.Duration.Seconds())
	require.Equal(t, 500000, cfg.Models.TokenLimitTier1)
	require.Equal(t, 5, cfg.Retry.MaxRetries)
}

func TestLoadMissingAPIKeyFails(t *testing.T) {
	prev, had := os.LookupEnv(apiKeyEnvVar)
	os.Unsetenv(apiKeyEnvVar)
	defer func() {
		if had {
			os.Setenv(apiKeyEnvVar, prev)
		}
	}()

	path := writeTestConfig(t, minimalConfig)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsNegativeRetries(t *testing.T) {
	defer withAPIKey(t, "test-key")()
	path := writeTestConfig(t, `
[retry]
max_retries = -1
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsBadTemperature(t *testing.T) {
	defer withAPIKey(t, "test-key")()
	path := writeTestConfig(t, `
[models]
temperature = 5.0
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/git-news.toml")
	require.Error(t, err)
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("5m")))
	require.Equal(t, float64(5), d.Duration.Minutes())

	require.Error(t, d.UnmarshalText([]byte("not-a-duration")))
}
