// Package artifact renders the three human-readable documents the
// orchestrator's results feed into: a markdown news document with YAML
// frontmatter, a Keep-a-Changelog-format text file, and a markdown
// daily-updates document.
package artifact

import (
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/antigravity-dev/git-news/internal/analysis"
)

var newsTemplate = template.Must(template.New("news").Parse(`---
title: {{.Title}}
date_range: {{.Start}} to {{.End}}
generated_at: {{.GeneratedAt}}
---

{{.Narrative}}
`))

// NewsDocument renders the markdown news document: YAML frontmatter
// followed by the generated narrative.
func NewsDocument(start, end, generatedAt time.Time, narrative string) (string, error) {
	var sb strings.Builder
	data := struct {
		Title       string
		Start       string
		End         string
		GeneratedAt string
		Narrative   string
	}{
		Title:       fmt.Sprintf("Git News: %s – %s", start.Format("2006-01-02"), end.Format("2006-01-02")),
		Start:       start.Format(time.RFC3339),
		End:         end.Format(time.RFC3339),
		GeneratedAt: generatedAt.Format(time.RFC3339),
		Narrative:   strings.TrimSpace(narrative),
	}
	if err := newsTemplate.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("rendering news document: %w", err)
	}
	return sb.String(), nil
}

// unreleasedHeading is the Keep-a-Changelog heading promoted by Release.
const unreleasedHeading = "## [Unreleased]"

// Changelog renders a Keep-a-Changelog "[Unreleased]" section from entries,
// grouping by category in the declared display order. If existing already
// has an [Unreleased] section, that section is replaced in place; otherwise
// the new section is appended to the end of existing. existing may be empty,
// in which case a fresh document with a standard header is produced.
func Changelog(existing string, entries []analysis.CommitAnalysis) string {
	byCategory := make(map[analysis.Category][]string)
	for _, e := range entries {
		for _, ch := range e.Changes {
			byCategory[ch.Category] = append(byCategory[ch.Category], ch.Summary)
		}
	}

	var section strings.Builder
	section.WriteString(unreleasedHeading)
	section.WriteString("\n")
	any := false
	for _, cat := range analysis.Categories() {
		summaries := byCategory[cat]
		if len(summaries) == 0 {
			continue
		}
		any = true
		section.WriteString(fmt.Sprintf("\n### %s %s\n\n", analysis.Glyph(cat), cat))
		for _, s := range summaries {
			section.WriteString("- " + s + "\n")
		}
	}
	if !any {
		section.WriteString("\nNo changes.\n")
	}

	if strings.TrimSpace(existing) == "" {
		return changelogHeader() + "\n" + section.String()
	}

	if idx := strings.Index(existing, unreleasedHeading); idx >= 0 {
		// Replace the existing [Unreleased] section (up to the next "## "
		// heading or end of file) with the freshly rendered one.
		rest := existing[idx+len(unreleasedHeading):]
		nextIdx := strings.Index(rest, "\n## ")
		var tail string
		if nextIdx >= 0 {
			tail = rest[nextIdx:]
		}
		return existing[:idx] + section.String() + tail
	}

	return strings.TrimRight(existing, "\n") + "\n\n" + section.String()
}

func changelogHeader() string {
	return "# Changelog\n\n" +
		"All notable changes to this project are documented in this file.\n\n" +
		"The format is based on [Keep a Changelog](https://keepachangelog.com/en/1.1.0/).\n"
}

// Release promotes the "[Unreleased]" section to a dated version heading
// (`## [v<version>] - <YYYY-MM-DD>`), leaving a fresh empty [Unreleased]
// section above it.
func Release(changelogText, version string, date time.Time) string {
	idx := strings.Index(changelogText, unreleasedHeading)
	if idx < 0 {
		return changelogText
	}
	bodyStart := idx + len(unreleasedHeading)
	rest := changelogText[bodyStart:]
	nextIdx := strings.Index(rest, "\n## ")
	var body, tail string
	if nextIdx >= 0 {
		body, tail = rest[:nextIdx], rest[nextIdx:]
	} else {
		body = rest
	}

	versionHeading := fmt.Sprintf("## [v%s] - %s", strings.TrimPrefix(version, "v"), date.Format("2006-01-02"))
	return changelogText[:idx] + unreleasedHeading + "\n\nNo changes.\n\n" + versionHeading + body + tail
}

// DailyUpdates renders the per-day activity log, one section per date in
// ascending order.
func DailyUpdates(summariesByDate map[string]string) string {
	dates := make([]string, 0, len(summariesByDate))
	for d := range summariesByDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var sb strings.Builder
	sb.WriteString("# Daily Updates\n")
	for _, d := range dates {
		sb.WriteString("\n## " + d + "\n\n")
		sb.WriteString(strings.TrimSpace(summariesByDate[d]))
		sb.WriteString("\n")
	}
	return sb.String()
}
