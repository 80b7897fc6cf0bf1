package llmclient

// Prompt scaffolding is declared once as read-only, process-wide constants,
// never rebuilt per call.

const analyzeCommitPrefix = `You are analyzing a single Git commit's unified diff. Classify every
meaningful change into one of the fixed commit categories and summarize it
in one sentence. If the commit makes no user-visible or maintainer-visible
change (formatting-only, whitespace, generated-file churn), mark it trivial
with an empty changes list.

Respond with ONLY a JSON object of the shape:
{"changes": [{"summary": "...", "category": "..."}], "trivial": false}

Diff:
`

const analyzeCommitSuffix = `
`

const synthesizeDailyPrefix = `You are writing a concise, human-readable summary of one day's (or one
week's) development activity from the commit log and diff below. Write
plain prose, no JSON, no markdown headers.

Commit log:
`

const synthesizeDailySeparator = `

Aggregate diff:
`

const generateNarrativePrefix = `You are writing the narrative section of a development news report
covering the period below. Weave the daily summaries, the commit-level
highlights, and the aggregate diff into a coherent story. Write plain prose.

`

const generateChangelogPrefix = `You are writing a Keep-a-Changelog-style changelog body from the
categorized changes below, grouped by category in the order given. Use
markdown bullet lists under a heading per category.

Categorized changes:
`
