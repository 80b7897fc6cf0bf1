// Package tier implements the four analysis tiers: per-commit
// categorization, per-day synthesis, per-week summarization, and
// period-wide narrative + changelog generation. Each operation is a pure
// function of (inputs, cache, LLM client): check cache, call the LLM client
// on miss, write the result back, return.
package tier

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/antigravity-dev/git-news/internal/analysis"
	"github.com/antigravity-dev/git-news/internal/cache"
	"github.com/antigravity-dev/git-news/internal/gitlog"
	"github.com/antigravity-dev/git-news/internal/llmclient"
)

// DiffReader is the subset of gitlog.Reader the tier engine needs, kept as
// an interface so tests can substitute a fake.
type DiffReader interface {
	CommitDiff(ctx context.Context, hash string) (string, error)
	DailyDiff(ctx context.Context, commits []gitlog.Commit) (string, error)
	WeeklyDiff(ctx context.Context, commits []gitlog.Commit) (string, error)
}

// LLM is the subset of llmclient.Client the tier engine calls.
type LLM interface {
	AnalyzeCommit(ctx context.Context, diff string) (analysis.CommitAnalysis, error)
	SynthesizeDaily(ctx context.Context, logText, diffText string) (string, error)
	GenerateNarrative(ctx context.Context, commitSummaries, dailySummaries []string, weeklyDiff, history string) (string, error)
	GenerateChangelog(ctx context.Context, categorizedChanges []analysis.CommitAnalysis) (string, error)
}

var (
	_ DiffReader = (*gitlog.Reader)(nil)
	_ LLM        = (*llmclient.Client)(nil)
)

// Engine wires the cache, reader, and LLM client into the four tier
// operations. It holds no other state; every method is safe to call
// concurrently for distinct inputs.
type Engine struct {
	cache  *cache.Store
	reader DiffReader
	llm    LLM
}

// New builds a tier Engine.
func New(store *cache.Store, reader DiffReader, llm LLM) *Engine {
	return &Engine{cache: store, reader: reader, llm: llm}
}

// AnalyzeCommit is T1: classify one commit's diff.
// A T1 failure is fatal to the run — the caller must not substitute a
// fabricated result for a failed LLM call.
func (e *Engine) AnalyzeCommit(ctx context.Context, commit gitlog.Commit) (analysis.CommitAnalysis, error) {
	key := cache.Key([]string{commit.Hash})

	var cached analysis.CommitAnalysis
	if e.cache.GetJSON(cache.NamespaceCommits, key, &cached) {
		return cached, nil
	}

	diff, err := e.reader.CommitDiff(ctx, commit.Hash)
	if err != nil {
		return analysis.CommitAnalysis{}, err
	}

	result, err := e.llm.AnalyzeCommit(ctx, diff)
	if err != nil {
		return analysis.CommitAnalysis{}, err
	}

	if err := e.cache.PutJSON(cache.NamespaceCommits, key, result); err != nil {
		// Cache write failure is non-fatal: the run proceeds with the
		// freshly computed result, uncached.
		_ = err
	}
	return result, nil
}

// SynthesizeDay is T2: synthesize one day's commits into a summary.
// commits must be sorted by timestamp ascending; analyses maps commit hash
// to its T1 result.
func (e *Engine) SynthesizeDay(ctx context.Context, date string, commits []gitlog.Commit, analyses map[string]analysis.CommitAnalysis) (string, error) {
	hashes := commitHashes(commits)
	key := cache.Key(append(hashes, date))

	if cached, ok := e.cache.GetText(cache.NamespaceDailySummaries, key); ok {
		return cached, nil
	}

	logText := buildLogText(commits, analyses)
	diffText, err := e.reader.DailyDiff(ctx, commits)
	if err != nil {
		return "", err
	}

	summary, err := e.llm.SynthesizeDaily(ctx, logText, diffText)
	if err != nil {
		return "", err
	}

	if err := e.cache.PutText(cache.NamespaceDailySummaries, key, summary); err != nil {
		_ = err
	}
	return summary, nil
}

// SynthesizeWeek is T3: summarize one ISO week's commits. It re-uses the
// same daily-synthesis operation rather than defining a separate call.
func (e *Engine) SynthesizeWeek(ctx context.Context, week gitlog.WeekKey, commits []gitlog.Commit, analyses map[string]analysis.CommitAnalysis) (string, error) {
	hashes := commitHashes(commits)
	weekID := fmt.Sprintf("%04d-W%02d", week.Year, week.Week)
	key := cache.Key(append(hashes, weekID))

	if cached, ok := e.cache.GetText(cache.NamespaceWeeklySummaries, key); ok {
		return cached, nil
	}

	logText := buildLogText(commits, analyses)
	diffText, err := e.reader.WeeklyDiff(ctx, commits)
	if err != nil {
		return "", err
	}

	summary, err := e.llm.SynthesizeDaily(ctx, logText, diffText)
	if err != nil {
		return "", err
	}

	if err := e.cache.PutText(cache.NamespaceWeeklySummaries, key, summary); err != nil {
		_ = err
	}
	return summary, nil
}

// GenerateNarrative is T4's narrative sub-operation.
func (e *Engine) GenerateNarrative(ctx context.Context, result analysis.PeriodResult, commitSummaries []string, weeklyDiff, history string) (string, error) {
	key := periodResultKey(result)

	if cached, ok := e.cache.GetText(cache.NamespaceNarratives, key); ok {
		return cached, nil
	}

	narrative, err := e.llm.GenerateNarrative(ctx, commitSummaries, result.DailySummaries, weeklyDiff, history)
	if err != nil {
		return "", err
	}

	if err := e.cache.PutText(cache.NamespaceNarratives, key, narrative); err != nil {
		_ = err
	}
	return narrative, nil
}

// GenerateChangelog is T4's changelog sub-operation.
func (e *Engine) GenerateChangelog(ctx context.Context, entries []analysis.CommitAnalysis) (string, error) {
	key := changelogEntriesKey(entries)

	if cached, ok := e.cache.GetText(cache.NamespaceChangelogs, key); ok {
		return cached, nil
	}

	text, err := e.llm.GenerateChangelog(ctx, entries)
	if err != nil {
		return "", err
	}

	if err := e.cache.PutText(cache.NamespaceChangelogs, key, text); err != nil {
		_ = err
	}
	return text, nil
}

// WeeklyDiff exposes the reader's aggregate diff over an arbitrary commit
// set, used by the orchestrator to build the narrative's aggregate-diff
// context over the full window rather than a single ISO week.
func (e *Engine) WeeklyDiff(ctx context.Context, commits []gitlog.Commit) (string, error) {
	return e.reader.WeeklyDiff(ctx, commits)
}

func commitHashes(commits []gitlog.Commit) []string {
	hashes := make([]string, len(commits))
	for i, c := range commits {
		hashes[i] = c.Hash
	}
	return hashes
}

// buildLogText concatenates commit messages and T1 summaries in the order
// given (commits must already be sorted ascending by timestamp).
func buildLogText(commits []gitlog.Commit, analyses map[string]analysis.CommitAnalysis) string {
	var lines []string
	for _, c := range commits {
		lines = append(lines, fmt.Sprintf("%s %s", c.Hash[:minInt(8, len(c.Hash))], c.Message))
		if a, ok := analyses[c.Hash]; ok {
			for _, ch := range a.Changes {
				lines = append(lines, fmt.Sprintf("  - [%s] %s", ch.Category, ch.Summary))
			}
		}
	}
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// periodResultKey hashes a period analysis result's three ordered lists,
// sorted before hashing so the cache key is order-insensitive across the
// inputs that feed it.
func periodResultKey(result analysis.PeriodResult) string {
	inputs := make([]string, 0, len(result.PeriodSummaries)+len(result.DailySummaries)+len(result.ChangelogEntries))
	inputs = append(inputs, result.PeriodSummaries...)
	inputs = append(inputs, result.DailySummaries...)
	for _, e := range result.ChangelogEntries {
		inputs = append(inputs, serializeEntry(e))
	}
	return cache.Key(inputs)
}

// changelogEntriesKey hashes the flattened categorized-changes list.
func changelogEntriesKey(entries []analysis.CommitAnalysis) string {
	inputs := make([]string, len(entries))
	for i, e := range entries {
		inputs[i] = serializeEntry(e)
	}
	return cache.Key(inputs)
}

func serializeEntry(e analysis.CommitAnalysis) string {
	data, err := json.Marshal(e)
	if err != nil {
		// CommitAnalysis is a plain struct of strings/bools; Marshal cannot
		// fail for it. Fall back to a stable textual form regardless.
		return fmt.Sprintf("%+v", e)
	}
	return string(data)
}

// SortedWeekKeys returns the given ISO-week keys sorted by (year, week)
// ascending.
func SortedWeekKeys(keys []gitlog.WeekKey) []gitlog.WeekKey {
	sorted := make([]gitlog.WeekKey, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Year != sorted[j].Year {
			return sorted[i].Year < sorted[j].Year
		}
		return sorted[i].Week < sorted[j].Week
	})
	return sorted
}
