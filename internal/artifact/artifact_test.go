package artifact

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/antigravity-dev/git-news/internal/analysis"
)

func TestNewsDocumentIncludesFrontmatterAndNarrative(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)
	generated := time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC)

	doc, err := NewsDocument(start, end, generated, "  Shipped login.  ")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(doc, "---\n"), "expected doc to start with YAML frontmatter delimiter")
	require.Contains(t, doc, "2025-01-01")
	require.Contains(t, doc, "2025-01-07")
	require.Contains(t, doc, "Shipped login.")
}

func TestChangelogGroupsByDeclaredCategoryOrder(t *testing.T) {
	entries := []analysis.CommitAnalysis{
		{Changes: []analysis.Change{{Summary: "tidy imports", Category: analysis.CategoryChore}}},
		{Changes: []analysis.Change{{Summary: "add login", Category: analysis.CategoryNewFeature}}},
		{Changes: []analysis.Change{{Summary: "fix crash", Category: analysis.CategoryBugFix}}},
	}

	out := Changelog("", entries)

	featureIdx := strings.Index(out, "New Feature")
	bugIdx := strings.Index(out, "Bug Fix")
	choreIdx := strings.Index(out, "Chore")
	require.True(t, featureIdx >= 0 && bugIdx >= 0 && choreIdx >= 0, "expected all three category headings in output, got:\n%s", out)
	require.True(t, featureIdx < bugIdx && bugIdx < choreIdx, "expected category headings in declared order, got:\n%s", out)
	require.Contains(t, out, "add login")
	require.Contains(t, out, "fix crash")
	require.Contains(t, out, "tidy imports")
}

func TestChangelogNoEntriesNotesNoChanges(t *testing.T) {
	out := Changelog("", nil)
	require.Contains(t, out, "No changes.")
}

func TestChangelogReplacesExistingUnreleasedSection(t *testing.T) {
	existing := changelogHeader() + "\n" + unreleasedHeading + "\n\nstale entry\n\n## [v1.0.0] - 2024-12-01\n\nold release notes\n"
	entries := []analysis.CommitAnalysis{
		{Changes: []analysis.Change{{Summary: "add login", Category: analysis.CategoryNewFeature}}},
	}

	out := Changelog(existing, entries)

	require.NotContains(t, out, "stale entry")
	require.Contains(t, out, "add login")
	require.Contains(t, out, "old release notes")
}

func TestReleasePromotesUnreleasedToVersionHeading(t *testing.T) {
	existing := changelogHeader() + "\n" + unreleasedHeading + "\n\n### New Feature\n\n- add login\n"
	date := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)

	out := Release(existing, "1.2.0", date)

	require.Contains(t, out, "## [v1.2.0] - 2025-03-04")
	require.Contains(t, out, "add login")

	unreleasedIdx := strings.Index(out, unreleasedHeading)
	versionIdx := strings.Index(out, "[v1.2.0]")
	require.True(t, unreleasedIdx >= 0 && versionIdx >= 0 && unreleasedIdx < versionIdx,
		"expected a fresh empty Unreleased section above the promoted version")
}

func TestReleaseNoUnreleasedSectionIsNoOp(t *testing.T) {
	existing := changelogHeader()
	out := Release(existing, "1.0.0", time.Now())
	require.Equal(t, existing, out)
}

func TestDailyUpdatesOrdersByDateAscending(t *testing.T) {
	out := DailyUpdates(map[string]string{
		"2025-01-03": "third",
		"2025-01-01": "first",
		"2025-01-02": "second",
	})

	first := strings.Index(out, "first")
	second := strings.Index(out, "second")
	third := strings.Index(out, "third")
	require.True(t, first < second && second < third, "expected sections ordered by date ascending, got:\n%s", out)
}
