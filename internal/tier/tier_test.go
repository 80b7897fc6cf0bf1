package tier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/antigravity-dev/git-news/internal/analysis"
	"github.com/antigravity-dev/git-news/internal/cache"
	"github.com/antigravity-dev/git-news/internal/gitlog"
)

type fakeReader struct {
	diffCalls   int
	dailyCalls  int
	weeklyCalls int
}

func (f *fakeReader) CommitDiff(_ context.Context, hash string) (string, error) {
	f.diffCalls++
	return "diff for " + hash, nil
}

func (f *fakeReader) DailyDiff(_ context.Context, commits []gitlog.Commit) (string, error) {
	f.dailyCalls++
	return "daily diff", nil
}

func (f *fakeReader) WeeklyDiff(_ context.Context, commits []gitlog.Commit) (string, error) {
	f.weeklyCalls++
	return "weekly diff", nil
}

type fakeLLM struct {
	analyzeCalls    int
	synthesizeCalls int
	narrativeCalls  int
	changelogCalls  int
}

func (f *fakeLLM) AnalyzeCommit(_ context.Context, diff string) (analysis.CommitAnalysis, error) {
	f.analyzeCalls++
	return analysis.CommitAnalysis{Trivial: false, Changes: []analysis.Change{{Summary: "did a thing", Category: analysis.CategoryBugFix}}}, nil
}

func (f *fakeLLM) SynthesizeDaily(_ context.Context, logText, diffText string) (string, error) {
	f.synthesizeCalls++
	return "synthesized: " + logText, nil
}

func (f *fakeLLM) GenerateNarrative(_ context.Context, commitSummaries, dailySummaries []string, weeklyDiff, history string) (string, error) {
	f.narrativeCalls++
	return "narrative", nil
}

func (f *fakeLLM) GenerateChangelog(_ context.Context, categorizedChanges []analysis.CommitAnalysis) (string, error) {
	f.changelogCalls++
	return "changelog", nil
}

func newTestEngine(t *testing.T) (*Engine, *fakeReader, *fakeLLM, *cache.Store) {
	t.Helper()
	store, err := cache.New(t.TempDir(), nil)
	require.NoError(t, err)
	reader := &fakeReader{}
	llm := &fakeLLM{}
	return New(store, reader, llm), reader, llm, store
}

func TestAnalyzeCommitCachesResult(t *testing.T) {
	e, _, llm, _ := newTestEngine(t)
	commit := gitlog.Commit{Hash: "abc123", Message: "fix: bug"}

	first, err := e.AnalyzeCommit(context.Background(), commit)
	require.NoError(t, err)
	second, err := e.AnalyzeCommit(context.Background(), commit)
	require.NoError(t, err)

	require.Equal(t, 1, llm.analyzeCalls, "second call should hit cache")
	require.Equal(t, first, second)
}

func TestSynthesizeDayCachesResult(t *testing.T) {
	e, _, llm, _ := newTestEngine(t)
	commits := []gitlog.Commit{
		{Hash: "a", Message: "feat: x", Timestamp: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
		{Hash: "b", Message: "fix: y", Timestamp: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)},
	}
	analyses := map[string]analysis.CommitAnalysis{}

	_, err := e.SynthesizeDay(context.Background(), "2025-06-01", commits, analyses)
	require.NoError(t, err)
	_, err = e.SynthesizeDay(context.Background(), "2025-06-01", commits, analyses)
	require.NoError(t, err)

	require.Equal(t, 1, llm.synthesizeCalls)
}

func TestSynthesizeDayKeyOrderInsensitive(t *testing.T) {
	e1, _, _, _ := newTestEngine(t)
	commitsA := []gitlog.Commit{{Hash: "a"}, {Hash: "b"}}
	commitsB := []gitlog.Commit{{Hash: "b"}, {Hash: "a"}}

	_, err := e1.SynthesizeDay(context.Background(), "2025-06-01", commitsA, nil)
	require.NoError(t, err)

	// Same hash set in different order must hit the same cache entry.
	cached, ok := e1.cache.GetText(cache.NamespaceDailySummaries, cache.Key(append(commitHashes(commitsB), "2025-06-01")))
	require.True(t, ok, "expected cache hit for permuted hash set")
	require.NotEmpty(t, cached)
}

func TestSynthesizeWeekReusesSynthesizeDailyOperation(t *testing.T) {
	e, _, llm, _ := newTestEngine(t)
	commits := []gitlog.Commit{{Hash: "a"}, {Hash: "b"}}

	_, err := e.SynthesizeWeek(context.Background(), gitlog.WeekKey{Year: 2025, Week: 23}, commits, nil)
	require.NoError(t, err)
	require.Equal(t, 1, llm.synthesizeCalls, "SynthesizeWeek should reuse the synthesize_daily operation")
}

func TestGenerateNarrativeAndChangelogCache(t *testing.T) {
	e, _, llm, _ := newTestEngine(t)
	result := analysis.PeriodResult{
		PeriodSummaries: []string{"week 1 summary"},
		DailySummaries:  []string{"day 1 summary"},
		ChangelogEntries: []analysis.CommitAnalysis{
			{Trivial: false, Changes: []analysis.Change{{Summary: "x", Category: analysis.CategoryNewFeature}}},
		},
	}

	_, err := e.GenerateNarrative(context.Background(), result, []string{"commit summary"}, "weekly diff", "")
	require.NoError(t, err)
	_, err = e.GenerateNarrative(context.Background(), result, []string{"commit summary"}, "weekly diff", "")
	require.NoError(t, err)
	require.Equal(t, 1, llm.narrativeCalls)

	_, err = e.GenerateChangelog(context.Background(), result.ChangelogEntries)
	require.NoError(t, err)
	_, err = e.GenerateChangelog(context.Background(), result.ChangelogEntries)
	require.NoError(t, err)
	require.Equal(t, 1, llm.changelogCalls)
}

func TestSortedWeekKeys(t *testing.T) {
	keys := []gitlog.WeekKey{{Year: 2025, Week: 10}, {Year: 2024, Week: 52}, {Year: 2025, Week: 1}}
	sorted := SortedWeekKeys(keys)
	want := []gitlog.WeekKey{{Year: 2024, Week: 52}, {Year: 2025, Week: 1}, {Year: 2025, Week: 10}}
	require.Equal(t, want, sorted)
}
