// Command git-news is the CLI entry point: it loads config, reads the
// target window's commits, drives the orchestrator, and writes the
// resulting news doc, changelog, and daily-updates doc to disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/antigravity-dev/git-news/internal/artifact"
	"github.com/antigravity-dev/git-news/internal/cache"
	"github.com/antigravity-dev/git-news/internal/config"
	"github.com/antigravity-dev/git-news/internal/gitlog"
	"github.com/antigravity-dev/git-news/internal/llmclient"
	"github.com/antigravity-dev/git-news/internal/orchestrator"
	"github.com/antigravity-dev/git-news/internal/tier"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("git-news", flag.ContinueOnError)
	configPath := fs.String("config", "git-news.toml", "path to the TOML configuration file")
	since := fs.String("since", "", "start of the analysis window (RFC3339 or 2006-01-02); defaults to 7 days before -until")
	until := fs.String("until", "", "end of the analysis window (RFC3339 or 2006-01-02); defaults to now")
	release := fs.String("release", "", "promote the changelog's [Unreleased] section to this version and exit")
	dev := fs.Bool("dev", false, "use a human-readable text log handler instead of JSON")
	clearCache := fs.Bool("clear-cache", false, "delete the cache tree and exit")
	history := fs.String("history", "", "optional prior-period narrative context passed to the narrative call")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "git-news: %v\n", err)
		return 1
	}

	logger := configureLogger(cfg.LogLevel, *dev)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling run")
		cancel()
	}()

	store, err := cache.New(cfg.Output.CacheDir, logger)
	if err != nil {
		logger.Error("opening cache", "error", err)
		return 1
	}

	if *clearCache {
		if err := store.Clear(); err != nil {
			logger.Error("clearing cache", "error", err)
			return 1
		}
		logger.Info("cache cleared", "dir", cfg.Output.CacheDir)
		return 0
	}

	if *release != "" {
		return runRelease(cfg, *release, logger)
	}

	end, err := parseWindowBound(*until, time.Now())
	if err != nil {
		logger.Error("parsing -until", "error", err)
		return 1
	}
	start, err := parseWindowBound(*since, end.AddDate(0, 0, -7))
	if err != nil {
		logger.Error("parsing -since", "error", err)
		return 1
	}

	result, dates, err := analyze(ctx, cfg, store, logger, start, end, *history)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("run cancelled")
			return 1
		}
		logger.Error("run failed", "error", err)
		return 1
	}

	if result.Narrative == "" && result.Changelog == "" {
		logger.Info("empty window, nothing to write", "start", start, "end", end)
		return 0
	}

	if err := writeArtifacts(cfg, start, end, result, dates); err != nil {
		logger.Error("writing artifacts", "error", err)
		return 1
	}

	logger.Info("run complete", "start", start, "end", end,
		"changelog_entries", len(result.Period.ChangelogEntries))
	return 0
}

func analyze(ctx context.Context, cfg *config.Config, store *cache.Store, logger *slog.Logger, start, end time.Time, history string) (orchestrator.Result, []string, error) {
	llmCfg := llmclient.Config{
		ModelTier1:           cfg.Models.Tier1,
		ModelTier2:           cfg.Models.Tier2,
		ModelTier3:           cfg.Models.Tier3,
		TokenLimitTier1:      cfg.Models.TokenLimitTier1,
		TokenLimitTier2:      cfg.Models.TokenLimitTier2,
		TokenLimitTier3:      cfg.Models.TokenLimitTier3,
		MaxOutputTokensTier1: cfg.Models.MaxOutputTokensTier1,
		MaxOutputTokensTier2: cfg.Models.MaxOutputTokensTier2,
		MaxOutputTokensTier3: cfg.Models.MaxOutputTokensTier3,
		Temperature:          float32(cfg.Models.Temperature),
		CallTimeout:          cfg.Repo.CallTimeout.Duration,
		APIKey:               cfg.Models.APIKey,
		Debug:                strings.EqualFold(strings.TrimSpace(cfg.LogLevel), "debug"),
	}

	llm, err := llmclient.NewGenAI(ctx, llmCfg, logger)
	if err != nil {
		return orchestrator.Result{}, nil, fmt.Errorf("building llm client: %w", err)
	}

	reader := gitlog.New(cfg.Repo.Workspace)
	commits, err := reader.CommitsInRange(ctx, start, end)
	if err != nil {
		return orchestrator.Result{}, nil, fmt.Errorf("reading commits: %w", err)
	}

	engine := tier.New(store, reader, llm)
	o := orchestrator.New(engine, cfg.Repo.MaxConcurrent)

	progress := func(p orchestrator.Progress) {
		logger.Debug("progress", "stage", p.Stage, "completed", p.Completed, "total", p.Total)
	}

	result, err := o.Run(ctx, commits, history, progress)
	if err != nil {
		return orchestrator.Result{}, nil, err
	}

	dayGroups := gitlog.DailyCommitGroups(commits)
	dates := make([]string, 0, len(dayGroups))
	for d := range dayGroups {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	return result, dates, nil
}

func writeArtifacts(cfg *config.Config, start, end time.Time, result orchestrator.Result, dates []string) error {
	if err := os.MkdirAll(cfg.Output.NewsDir, 0o755); err != nil {
		return fmt.Errorf("creating news dir: %w", err)
	}

	news, err := artifact.NewsDocument(start, end, time.Now(), result.Narrative)
	if err != nil {
		return fmt.Errorf("rendering news document: %w", err)
	}
	newsPath := filepath.Join(cfg.Output.NewsDir, fmt.Sprintf("%s-news.md", end.Format("2006-01-02")))
	if err := os.WriteFile(newsPath, []byte(news), 0o644); err != nil {
		return fmt.Errorf("writing news document: %w", err)
	}

	existing, _ := os.ReadFile(cfg.Output.ChangelogPath)
	changelog := artifact.Changelog(string(existing), result.Period.ChangelogEntries)
	if err := os.WriteFile(cfg.Output.ChangelogPath, []byte(changelog), 0o644); err != nil {
		return fmt.Errorf("writing changelog: %w", err)
	}

	dailyPath := filepath.Join(cfg.Output.NewsDir, fmt.Sprintf("%s-daily-updates.md", end.Format("2006-01-02")))
	daily := artifact.DailyUpdates(dailySummariesByDate(result, dates))
	if err := os.WriteFile(dailyPath, []byte(daily), 0o644); err != nil {
		return fmt.Errorf("writing daily updates: %w", err)
	}

	return nil
}

// dailySummariesByDate pairs the orchestrator's ordered daily summaries
// back up with their calendar dates. Both are derived from the same sorted
// date-key ordering, so positional zipping is safe.
func dailySummariesByDate(result orchestrator.Result, dates []string) map[string]string {
	out := make(map[string]string, len(result.Period.DailySummaries))
	for i, s := range result.Period.DailySummaries {
		if i >= len(dates) {
			break
		}
		out[dates[i]] = s
	}
	return out
}

func runRelease(cfg *config.Config, version string, logger *slog.Logger) int {
	existing, err := os.ReadFile(cfg.Output.ChangelogPath)
	if err != nil {
		logger.Error("reading changelog for release", "error", err)
		return 1
	}
	promoted := artifact.Release(string(existing), version, time.Now())
	if err := os.WriteFile(cfg.Output.ChangelogPath, []byte(promoted), 0o644); err != nil {
		logger.Error("writing promoted changelog", "error", err)
		return 1
	}
	logger.Info("promoted changelog", "version", version)
	return 0
}

func parseWindowBound(value string, fallback time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q: want RFC3339 or 2006-01-02", value)
}

func configureLogger(logLevel string, useDev bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if useDev {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
