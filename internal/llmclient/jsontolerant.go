package llmclient

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/antigravity-dev/git-news/internal/analysis"
)

// schemaValidationError marks a decode failure that is retryable,
// distinguishing it from a malformed-but-non-empty response that has
// already exhausted its retries (which surfaces as a plain
// *errs.LLMClientError instead).
type schemaValidationError struct {
	err error
}

func (e *schemaValidationError) Error() string { return e.err.Error() }
func (e *schemaValidationError) Unwrap() error { return e.err }

var codeFenceRe = regexp.MustCompile("(?s)^\\s*```(?:json|JSON)?\\s*\n?(.*?)\\s*```\\s*$")

// stripCodeFences removes a surrounding ```json ... ``` or ``` ... ```
// markdown fence, if present.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

var trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)

// repairTrailingCommas removes commas immediately preceding a closing brace
// or bracket, which standard JSON rejects but many LLMs emit.
func repairTrailingCommas(s string) string {
	return trailingCommaRe.ReplaceAllString(s, "$1")
}

// normalizeJSON is stage (a) of the two-stage tolerant-decode pipeline:
// normalize raw model output to canonical JSON text before attempting to
// parse it.
func normalizeJSON(raw string) string {
	return repairTrailingCommas(stripCodeFences(raw))
}

// decodeCommitAnalysis is stage (b): parse-and-validate against the
// declared CommitAnalysis schema. Any failure here — malformed JSON, an
// unrecognized category, or a violated trivial/changes invariant — is
// wrapped as a *schemaValidationError so the caller's retry loop treats it
// as retryable.
func decodeCommitAnalysis(raw string) (analysis.CommitAnalysis, error) {
	var a analysis.CommitAnalysis
	if err := json.Unmarshal([]byte(normalizeJSON(raw)), &a); err != nil {
		return analysis.CommitAnalysis{}, &schemaValidationError{fmt.Errorf("decode commit analysis: %w", err)}
	}
	for _, ch := range a.Changes {
		if !analysis.IsValid(ch.Category) {
			return analysis.CommitAnalysis{}, &schemaValidationError{fmt.Errorf("unrecognized category %q", ch.Category)}
		}
	}
	if !a.Valid() {
		return analysis.CommitAnalysis{}, &schemaValidationError{fmt.Errorf("commit analysis invariant violated: non-trivial with no changes")}
	}
	return a, nil
}

// decodeText is the identity decode used by the free-text operations
// (synthesize_daily, generate_narrative, generate_changelog): any non-empty
// string is schema-valid.
func decodeText(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", &schemaValidationError{fmt.Errorf("empty text response")}
	}
	return raw, nil
}

// mergeCommitAnalyses combines the per-chunk CommitAnalysis results of a
// chunked T1 call (chunk-and-combine generalized to a structured result):
// changes concatenate in chunk order, and the merged commit is non-trivial
// if any chunk reported non-trivial changes.
func mergeCommitAnalyses(parts []analysis.CommitAnalysis) analysis.CommitAnalysis {
	merged := analysis.CommitAnalysis{Trivial: true}
	for _, p := range parts {
		merged.Changes = append(merged.Changes, p.Changes...)
		if !p.Trivial {
			merged.Trivial = false
		}
	}
	return merged
}
