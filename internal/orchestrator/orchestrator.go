// Package orchestrator implements the bounded-concurrency fan-out that
// drives the tier engine across a commit window: T1 across commits, T2
// across days, T3 across weeks, then T4's narrative and changelog
// sub-operations, with serial barriers between stages and a single shared
// concurrency bound throughout.
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/antigravity-dev/git-news/internal/analysis"
	"github.com/antigravity-dev/git-news/internal/errs"
	"github.com/antigravity-dev/git-news/internal/gitlog"
	"github.com/antigravity-dev/git-news/internal/tier"
)

// Stage names reported via Progress.
const (
	StageCommitAnalysis  = "commit_analysis"
	StageDailySynthesis  = "daily_synthesis"
	StageWeeklySynthesis = "weekly_synthesis"
	StageNarrative       = "narrative"
	StageChangelog       = "changelog"
)

// Progress is one (stage, completed, total) tuple.
type Progress struct {
	Stage     string
	Completed int
	Total     int
}

// ProgressFunc receives Progress updates. A nil ProgressFunc is a valid,
// no-op sink for non-interactive runs.
type ProgressFunc func(Progress)

func (f ProgressFunc) emit(p Progress) {
	if f != nil {
		f(p)
	}
}

// Result is the final set of artifacts handed to the external artifact
// writer.
type Result struct {
	Period    analysis.PeriodResult
	Narrative string
	Changelog string
}

// Orchestrator runs the tier engine across a bounded commit window.
type Orchestrator struct {
	tiers         *tier.Engine
	maxConcurrent int
}

// New builds an Orchestrator. maxConcurrent <= 0 defaults to 10.
func New(tiers *tier.Engine, maxConcurrent int) *Orchestrator {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &Orchestrator{tiers: tiers, maxConcurrent: maxConcurrent}
}

// Run executes the full T1→T2→T3→T4 pipeline over commits (already
// date-filtered by the caller) and returns the assembled Result. history is
// optional prior-period context passed through to the narrative call.
func (o *Orchestrator) Run(ctx context.Context, commits []gitlog.Commit, history string, progress ProgressFunc) (Result, error) {
	if len(commits) == 0 {
		return Result{}, nil
	}

	// Stage T1: fan out per-commit analysis, preserving commit order.
	analyses, err := runBounded(ctx, commits, o.maxConcurrent, func(ctx context.Context, c gitlog.Commit) (analysis.CommitAnalysis, error) {
		return o.tiers.AnalyzeCommit(ctx, c)
	}, func(completed, total int) {
		progress.emit(Progress{Stage: StageCommitAnalysis, Completed: completed, Total: total})
	})
	if err != nil {
		return Result{}, err
	}

	byHash := make(map[string]analysis.CommitAnalysis, len(commits))
	for i, c := range commits {
		byHash[c.Hash] = analyses[i]
	}

	// Stage T2: group by calendar day, fan out daily synthesis.
	dayGroups := gitlog.DailyCommitGroups(commits)
	dates := sortedKeys(dayGroups)

	dailySummaries, err := runBounded(ctx, dates, o.maxConcurrent, func(ctx context.Context, date string) (string, error) {
		return o.tiers.SynthesizeDay(ctx, date, dayGroups[date], byHash)
	}, func(completed, total int) {
		progress.emit(Progress{Stage: StageDailySynthesis, Completed: completed, Total: total})
	})
	if err != nil {
		return Result{}, err
	}

	// Stage T3: group by ISO week, fan out weekly synthesis.
	weekGroups := gitlog.WeeklyCommitGroups(commits)
	weeks := sortedWeekKeys(weekGroups)

	weeklySummaries, err := runBounded(ctx, weeks, o.maxConcurrent, func(ctx context.Context, w gitlog.WeekKey) (string, error) {
		return o.tiers.SynthesizeWeek(ctx, w, weekGroups[w], byHash)
	}, func(completed, total int) {
		progress.emit(Progress{Stage: StageWeeklySynthesis, Completed: completed, Total: total})
	})
	if err != nil {
		return Result{}, err
	}

	// Assemble the period analysis result.
	changelogEntries := make([]analysis.CommitAnalysis, 0, len(commits))
	commitSummaries := make([]string, 0, len(commits))
	for _, c := range commits {
		a := byHash[c.Hash]
		if !a.Trivial {
			changelogEntries = append(changelogEntries, a)
			for _, ch := range a.Changes {
				commitSummaries = append(commitSummaries, ch.Summary)
			}
		}
	}

	period := analysis.PeriodResult{
		PeriodSummaries:  weeklySummaries,
		DailySummaries:   dailySummaries,
		ChangelogEntries: changelogEntries,
	}

	weeklyDiff, err := o.tiers.WeeklyDiff(ctx, commits)
	if err != nil {
		return Result{}, err
	}

	// Stage T4: narrative and changelog, routed through the same bound as
	// every other stage so at most maxConcurrent LLM calls are ever in
	// flight at once.
	tasks := []t4Task{
		{stage: StageNarrative, run: func(ctx context.Context) (string, error) {
			return o.tiers.GenerateNarrative(ctx, period, commitSummaries, weeklyDiff, history)
		}},
		{stage: StageChangelog, run: func(ctx context.Context) (string, error) {
			return o.tiers.GenerateChangelog(ctx, changelogEntries)
		}},
	}

	results, err := runBounded(ctx, tasks, o.maxConcurrent, func(ctx context.Context, task t4Task) (string, error) {
		out, err := task.run(ctx)
		if err == nil {
			progress.emit(Progress{Stage: task.stage, Completed: 1, Total: 1})
		}
		return out, err
	}, nil)
	if err != nil {
		return Result{}, err
	}

	return Result{Period: period, Narrative: results[0], Changelog: results[1]}, nil
}

// t4Task is one of T4's two independent sub-operations (narrative,
// changelog), wrapped so both can run through runBounded's shared
// semaphore alongside T1-T3.
type t4Task struct {
	stage string
	run   func(context.Context) (string, error)
}

func sortedKeys(m map[string][]gitlog.Commit) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedWeekKeys(m map[gitlog.WeekKey][]gitlog.Commit) []gitlog.WeekKey {
	keys := make([]gitlog.WeekKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return tier.SortedWeekKeys(keys)
}

// runBounded runs do(ctx, item) for every item with at most maxConcurrent
// in flight at once, preserving input order in the returned slice. The
// first error cancels the shared context and is returned; results for
// items that had not yet started are zero-valued and ignored.
func runBounded[T any, R any](ctx context.Context, items []T, maxConcurrent int, do func(context.Context, T) (R, error), onProgress func(completed, total int)) ([]R, error) {
	total := len(items)
	results := make([]R, total)
	if total == 0 {
		return results, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	var completed atomic.Int64

	for i, item := range items {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, item T) {
			defer wg.Done()
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}

			r, err := do(ctx, item)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				cancel()
				return
			}
			results[i] = r
			n := completed.Add(1)
			if onProgress != nil {
				onProgress(int(n), total)
			}
		}(i, item)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if ctx.Err() != nil {
		return nil, errs.ErrCancelled
	}
	return results, nil
}
