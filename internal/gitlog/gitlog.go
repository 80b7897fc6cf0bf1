// Package gitlog reads commit references and diffs from a Git working tree:
// commits in a window, a single commit's diff, day/week groupings, and
// aggregate diffs over a commit set. It shells out to the git binary
// (exec.Command("git", "log", ...), pipe-delimited --pretty=format, cmd.Dir,
// CombinedOutput) rather than linking a Git implementation.
package gitlog

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/antigravity-dev/git-news/internal/errs"
)

// Commit is a stable commit reference: a hash, timestamp, message, and
// parent linkage.
type Commit struct {
	Hash       string
	ParentHash string
	Author     string
	Message    string
	Timestamp  time.Time
}

// Reader reads commit references and diffs from a Git working tree by
// shelling out to the git binary.
type Reader struct {
	workspace string
}

// New returns a Reader rooted at workspace (a path to a Git working tree or
// bare repository clone).
func New(workspace string) *Reader {
	return &Reader{workspace: workspace}
}

const logFormat = "%H|%P|%an|%aI|%s"

// CommitsInRange returns the commits git log selects with --since=start and
// --until=end (git compares committer dates and includes both bounds),
// sorted oldest first by author timestamp, excluding merge commits. Dates
// are timezone-aware (UTC).
func (r *Reader) CommitsInRange(ctx context.Context, start, end time.Time) ([]Commit, error) {
	rangeArg := fmt.Sprintf("--since=%s", start.UTC().Format(time.RFC3339))
	untilArg := fmt.Sprintf("--until=%s", end.UTC().Format(time.RFC3339))

	cmd := exec.CommandContext(ctx, "git", "log", rangeArg, untilArg,
		"--pretty=format:"+logFormat, "--no-merges", "--date-order")
	cmd.Dir = r.workspace

	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, errs.NewRepoError("git log", fmt.Errorf("%w (%s)", err, strings.TrimSpace(string(out))))
	}

	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return []Commit{}, nil
	}

	lines := strings.Split(trimmed, "\n")
	commits := make([]Commit, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		c, err := parseLogLine(line)
		if err != nil {
			continue
		}
		commits = append(commits, c)
	}

	sort.Slice(commits, func(i, j int) bool {
		return commits[i].Timestamp.Before(commits[j].Timestamp)
	})
	return commits, nil
}

func parseLogLine(line string) (Commit, error) {
	parts := strings.SplitN(line, "|", 5)
	if len(parts) != 5 {
		return Commit{}, fmt.Errorf("malformed log line: %q", line)
	}
	ts, err := time.Parse(time.RFC3339, parts[3])
	if err != nil {
		return Commit{}, fmt.Errorf("parse commit date %q: %w", parts[3], err)
	}
	parent := strings.Fields(parts[1])
	parentHash := ""
	if len(parent) > 0 {
		parentHash = parent[0]
	}
	return Commit{
		Hash:       parts[0],
		ParentHash: parentHash,
		Author:     parts[2],
		Timestamp:  ts.UTC(),
		Message:    parts[4],
	}, nil
}

// CommitDiff returns the unified diff introduced by hash. Root commits
// (no parent) diff against the empty tree.
func (r *Reader) CommitDiff(ctx context.Context, hash string) (string, error) {
	c, err := r.commitByHash(ctx, hash)
	if err != nil {
		return "", err
	}
	var rangeSpec string
	if c.ParentHash == "" {
		rangeSpec = hash
		cmd := exec.CommandContext(ctx, "git", "show", "--format=", rangeSpec)
		cmd.Dir = r.workspace
		out, err := cmd.CombinedOutput()
		if err != nil {
			return "", errs.NewRepoError("git show", fmt.Errorf("%w (%s)", err, strings.TrimSpace(string(out))))
		}
		return string(out), nil
	}

	cmd := exec.CommandContext(ctx, "git", "diff", c.ParentHash, hash)
	cmd.Dir = r.workspace
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", errs.NewRepoError("git diff", fmt.Errorf("%w (%s)", err, strings.TrimSpace(string(out))))
	}
	return string(out), nil
}

func (r *Reader) commitByHash(ctx context.Context, hash string) (Commit, error) {
	cmd := exec.CommandContext(ctx, "git", "log", "-1", "--pretty=format:"+logFormat, hash)
	cmd.Dir = r.workspace
	out, err := cmd.CombinedOutput()
	if err != nil {
		return Commit{}, errs.NewRepoError("git log -1", fmt.Errorf("%w (%s)", err, strings.TrimSpace(string(out))))
	}
	return parseLogLine(strings.TrimSpace(string(out)))
}

// DailyCommitGroups groups commits by their UTC calendar date, formatted
// "2006-01-02".
func DailyCommitGroups(commits []Commit) map[string][]Commit {
	groups := make(map[string][]Commit)
	for _, c := range commits {
		key := c.Timestamp.UTC().Format("2006-01-02")
		groups[key] = append(groups[key], c)
	}
	for k := range groups {
		sort.Slice(groups[k], func(i, j int) bool {
			return groups[k][i].Timestamp.Before(groups[k][j].Timestamp)
		})
	}
	return groups
}

// WeekKey identifies an ISO (year, week) pair.
type WeekKey struct {
	Year int
	Week int
}

// WeeklyCommitGroups groups commits by ISO (year, week).
func WeeklyCommitGroups(commits []Commit) map[WeekKey][]Commit {
	groups := make(map[WeekKey][]Commit)
	for _, c := range commits {
		y, w := c.Timestamp.UTC().ISOWeek()
		key := WeekKey{Year: y, Week: w}
		groups[key] = append(groups[key], c)
	}
	for k := range groups {
		sort.Slice(groups[k], func(i, j int) bool {
			return groups[k][i].Timestamp.Before(groups[k][j].Timestamp)
		})
	}
	return groups
}

// WeeklyDiff returns the aggregate diff spanning the given commits (assumed
// sorted oldest-first), computed as the diff between the parent of the
// earliest commit and the latest commit.
func (r *Reader) WeeklyDiff(ctx context.Context, commits []Commit) (string, error) {
	if len(commits) == 0 {
		return "", nil
	}
	first, last := commits[0], commits[len(commits)-1]
	var base string
	if first.ParentHash != "" {
		base = first.ParentHash
	} else {
		base = first.Hash
	}

	cmd := exec.CommandContext(ctx, "git", "diff", base, last.Hash)
	cmd.Dir = r.workspace
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", errs.NewRepoError("git diff (weekly)", fmt.Errorf("%w (%s)", err, strings.TrimSpace(string(out))))
	}
	return string(out), nil
}

// DailyDiff is WeeklyDiff's per-day counterpart, used by T2.
func (r *Reader) DailyDiff(ctx context.Context, commits []Commit) (string, error) {
	return r.WeeklyDiff(ctx, commits)
}
