// Package fitter reshapes oversized prompt inputs to a hard token budget
// without discarding information. The only legal response to an input that
// doesn't fit a single call is chunk-and-combine; sampling or truncation is
// forbidden under all circumstances.
package fitter

import (
	"context"
	"fmt"
	"strings"

	"github.com/antigravity-dev/git-news/internal/errs"
)

// TokenCounter counts the tokens a model would consume for text. The fitter
// is decoupled from the LLM client through this interface, mirroring the
// teacher's habit of defining small interfaces at component seams
// (internal/dispatch.Backend).
type TokenCounter interface {
	CountTokens(ctx context.Context, model, text string) (int, error)
}

// Input is the structured content to be fit. Lines is the variable-length
// part that gets chunked; Prefix and Suffix are static scaffolding repeated
// in every chunk.
type Input struct {
	Prefix string
	Lines  []string
	Suffix string
}

func (in Input) compose(lines []string) string {
	var b strings.Builder
	b.WriteString(in.Prefix)
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString(in.Suffix)
	return b.String()
}

// chunkOverlapLines is the number of lines adjacent chunks share, preserving
// cross-chunk context.
const chunkOverlapLines = 1

// Plan is the fitter's output: either a single ready-to-send prompt, or a
// set of overlapping chunk prompts plus the means to combine their partial
// results.
type Plan struct {
	SingleCall bool
	Prompt     string // valid when SingleCall

	Chunks     []string   // valid when !SingleCall: one prompt per chunk
	ChunkLines [][]string // the original input lines covered by each chunk (includes overlap)
}

// Fit composes the straightforward prompt; if its token count is within
// budget, returns it as a single call. Otherwise it splits Lines into
// overlapping chunks, each of which (with Prefix/Suffix applied) fits the
// budget on its own. If even a single line cannot fit alongside the
// scaffolding, it returns a *errs.FittingError.
func Fit(ctx context.Context, model string, counter TokenCounter, in Input, budget int) (Plan, error) {
	full := in.compose(in.Lines)
	tokens, err := counter.CountTokens(ctx, model, full)
	if err != nil {
		return Plan{}, fmt.Errorf("count tokens for composed prompt: %w", err)
	}
	if tokens <= budget {
		return Plan{SingleCall: true, Prompt: full}, nil
	}

	if len(in.Lines) == 0 {
		return Plan{}, &errs.FittingError{Actual: tokens, Target: budget}
	}

	marked := make([]string, 0, len(in.Lines)+1)
	marked = append(marked, fmt.Sprintf("[REQUIRES_CHUNKING: %d lines]", len(in.Lines)))
	marked = append(marked, in.Lines...)

	chunks, groups, err := splitWithOverlap(ctx, model, counter, in, marked, budget)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Chunks: chunks, ChunkLines: groups}, nil
}

// splitWithOverlap greedily grows each chunk (via binary search on the
// assembled, budget-checked text) to the largest prefix of the remaining
// lines that fits, then backs off by chunkOverlapLines so the next chunk
// starts with shared context.
func splitWithOverlap(ctx context.Context, model string, counter TokenCounter, in Input, lines []string, budget int) ([]string, [][]string, error) {
	n := len(lines)
	var chunks []string
	var groups [][]string

	start := 0
	for start < n {
		best, err := largestFittingEnd(ctx, model, counter, in, lines, start, budget)
		if err != nil {
			return nil, nil, err
		}
		if best == start {
			single := in.compose(lines[start : start+1])
			tok, _ := counter.CountTokens(ctx, model, single)
			return nil, nil, &errs.FittingError{Actual: tok, Target: budget}
		}

		chunkLines := append([]string(nil), lines[start:best]...)
		groups = append(groups, chunkLines)
		chunks = append(chunks, in.compose(chunkLines))

		if best >= n {
			break
		}
		next := best - chunkOverlapLines
		if next <= start {
			next = best
		}
		start = next
	}

	return chunks, groups, nil
}

// largestFittingEnd binary-searches the largest end in (start, n] such that
// compose(lines[start:end]) fits budget. It returns start itself when even
// lines[start] alone doesn't fit, so the caller can detect and report the
// unfittable unit.
func largestFittingEnd(ctx context.Context, model string, counter TokenCounter, in Input, lines []string, start, budget int) (int, error) {
	n := len(lines)
	lo, hi := start+1, n
	best := start
	for lo <= hi {
		mid := lo + (hi-lo)/2
		text := in.compose(lines[start:mid])
		tok, err := counter.CountTokens(ctx, model, text)
		if err != nil {
			return 0, fmt.Errorf("count tokens for chunk: %w", err)
		}
		if tok <= budget {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best, nil
}

// Combine merges the partial results of a chunked plan into the final
// string via a fixed, deterministic template. partials must be in the same
// order as Plan.Chunks.
func (p Plan) Combine(partials []string) (string, error) {
	if p.SingleCall {
		return "", fmt.Errorf("fitter: Combine called on a single-call plan")
	}
	if len(partials) != len(p.Chunks) {
		return "", fmt.Errorf("fitter: Combine got %d partials, want %d", len(partials), len(p.Chunks))
	}
	if len(partials) == 1 {
		return partials[0], nil
	}

	var b strings.Builder
	b.WriteString("### Daily Development Summary\n\n")
	for i, partial := range partials {
		fmt.Fprintf(&b, "#### Part %d\n\n%s\n\n", i+1, partial)
	}
	fmt.Fprintf(&b, "_Summary generated from %d overlapping content analyses_\n", len(partials))
	return b.String(), nil
}
