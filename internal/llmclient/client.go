// Package llmclient implements the LLM client: fitting prompts to a model's
// token budget, calling the backend with retry and a per-call deadline, and
// tolerantly decoding JSON results.
package llmclient

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/antigravity-dev/git-news/internal/analysis"
	"github.com/antigravity-dev/git-news/internal/errs"
	"github.com/antigravity-dev/git-news/internal/fitter"
)

// Client presents the high-level operations the tier engine calls, each
// wrapping fit -> call-with-retry -> tolerant-decode.
type Client struct {
	backend Backend
	cfg     Config
	retry   RetryPolicy
	logger  *slog.Logger
}

// New builds a Client over an arbitrary Backend. Production callers should
// use NewGenAI; tests inject a fake Backend directly.
func New(backend Backend, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 600 * time.Second
	}
	return &Client{backend: backend, cfg: cfg, retry: DefaultRetryPolicy(), logger: logger}
}

// NewGenAI builds a Client backed by the Gemini API.
func NewGenAI(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	backend, err := newGenAIBackend(ctx, cfg.APIKey)
	if err != nil {
		return nil, errs.NewConfigError("api_key", err)
	}
	return New(backend, cfg, logger), nil
}

// CountTokens implements fitter.TokenCounter, letting the fitter query the
// same backend the client ultimately calls.
func (c *Client) CountTokens(ctx context.Context, model, text string) (int, error) {
	return c.backend.CountTokens(ctx, model, text)
}

var _ fitter.TokenCounter = (*Client)(nil)

// AnalyzeCommit implements T1's LLM call: classify a commit's diff into
// CommitAnalysis.
func (c *Client) AnalyzeCommit(ctx context.Context, diff string) (analysis.CommitAnalysis, error) {
	in := fitter.Input{
		Prefix: analyzeCommitPrefix,
		Lines:  strings.Split(diff, "\n"),
		Suffix: analyzeCommitSuffix,
	}
	return executeJSON(ctx, c, c.cfg.ModelTier1, in, c.cfg.TokenLimitTier1, c.cfg.MaxOutputTokensTier1)
}

// SynthesizeDaily implements T2's (and, re-used, T3's) LLM call: synthesize
// a free-text summary from a log and an aggregate diff. T3 re-uses this same
// operation rather than defining a separate per-week call.
func (c *Client) SynthesizeDaily(ctx context.Context, logText, diffText string) (string, error) {
	in := fitter.Input{
		Prefix: synthesizeDailyPrefix,
		Lines:  strings.Split(logText, "\n"),
		Suffix: synthesizeDailySeparator + diffText,
	}
	return executeText(ctx, c, c.cfg.ModelTier2, in, c.cfg.TokenLimitTier2, c.cfg.MaxOutputTokensTier2)
}

// GenerateNarrative implements T4's narrative call. commitSummaries,
// dailySummaries, and weeklyDiff are the variable-length inputs and are all
// carried as chunkable Lines, so an oversized prompt can still be reduced to
// a fitting size by chunk-and-combine; only the instructional scaffolding in
// generateNarrativePrefix is repeated verbatim in every chunk.
func (c *Client) GenerateNarrative(ctx context.Context, commitSummaries, dailySummaries []string, weeklyDiff, history string) (string, error) {
	var lines []string
	lines = append(lines, "Daily summaries:")
	for _, s := range dailySummaries {
		lines = append(lines, "- "+s)
	}
	lines = append(lines, "", "Commit highlights:")
	for _, s := range commitSummaries {
		lines = append(lines, "- "+s)
	}
	lines = append(lines, "", "Aggregate diff:")
	lines = append(lines, strings.Split(weeklyDiff, "\n")...)
	if history != "" {
		lines = append(lines, "", "Prior history:")
		lines = append(lines, strings.Split(history, "\n")...)
	}

	in := fitter.Input{
		Prefix: generateNarrativePrefix,
		Lines:  lines,
	}
	return executeText(ctx, c, c.cfg.ModelTier3, in, c.cfg.TokenLimitTier3, c.cfg.MaxOutputTokensTier3)
}

// GenerateChangelog implements T4's changelog call.
func (c *Client) GenerateChangelog(ctx context.Context, categorizedChanges []analysis.CommitAnalysis) (string, error) {
	lines := make([]string, 0, len(categorizedChanges))
	for _, ca := range categorizedChanges {
		for _, ch := range ca.Changes {
			lines = append(lines, fmt.Sprintf("[%s] %s", ch.Category, ch.Summary))
		}
	}
	in := fitter.Input{
		Prefix: generateChangelogPrefix,
		Lines:  lines,
	}
	return executeText(ctx, c, c.cfg.ModelTier3, in, c.cfg.TokenLimitTier3, c.cfg.MaxOutputTokensTier3)
}

// executeText fits in to budget against model, executes the resulting plan
// (a single call, or a chunked call-per-chunk followed by C2's combine
// template), and returns the final text.
func executeText(ctx context.Context, c *Client, model string, in fitter.Input, budget, maxOutputTokens int) (string, error) {
	plan, err := fitter.Fit(ctx, model, c, in, budget)
	if err != nil {
		return "", err
	}
	if plan.SingleCall {
		return callWithRetry(ctx, c, model, plan.Prompt, maxOutputTokens, decodeText)
	}

	partials := make([]string, len(plan.Chunks))
	for i, chunk := range plan.Chunks {
		out, err := callWithRetry(ctx, c, model, chunk, maxOutputTokens, decodeText)
		if err != nil {
			return "", err
		}
		partials[i] = out
	}
	return plan.Combine(partials)
}

// executeJSON is executeText's structured-result counterpart, used by
// AnalyzeCommit. A chunked plan decodes each chunk independently and merges
// the results (mergeCommitAnalyses) rather than using C2's text-combine
// template, since CommitAnalysis isn't free text.
func executeJSON(ctx context.Context, c *Client, model string, in fitter.Input, budget, maxOutputTokens int) (analysis.CommitAnalysis, error) {
	plan, err := fitter.Fit(ctx, model, c, in, budget)
	if err != nil {
		return analysis.CommitAnalysis{}, err
	}
	if plan.SingleCall {
		return callWithRetry(ctx, c, model, plan.Prompt, maxOutputTokens, decodeCommitAnalysis)
	}

	parts := make([]analysis.CommitAnalysis, len(plan.Chunks))
	for i, chunk := range plan.Chunks {
		part, err := callWithRetry(ctx, c, model, chunk, maxOutputTokens, decodeCommitAnalysis)
		if err != nil {
			return analysis.CommitAnalysis{}, err
		}
		parts[i] = part
	}
	return mergeCommitAnalyses(parts), nil
}

// callWithRetry runs one logical operation against the backend, retrying on
// the classified-retryable failure modes. decode turns raw backend text into
// the caller's result type; a decode error is treated exactly like a backend
// failure for retry purposes (schema-validation failures are retryable). After
// MaxRetries+1 total attempts, the last error is wrapped as
// *errs.LLMClientError carrying the prompt for diagnostics.
func callWithRetry[T any](ctx context.Context, c *Client, model, prompt string, maxOutputTokens int, decode func(string) (T, error)) (T, error) {
	var zero T
	var lastErr error

	var promptTokens int
	if c.cfg.Debug {
		promptTokens, _ = c.backend.CountTokens(ctx, model, prompt)
	}

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, errs.ErrCancelled
			case <-time.After(c.retry.delay(attempt)):
			}
		}

		select {
		case <-ctx.Done():
			return zero, errs.ErrCancelled
		default:
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		text, err := c.backend.GenerateContent(callCtx, model, prompt, c.cfg.Temperature, int32(maxOutputTokens))
		cancel()

		if err == nil && strings.TrimSpace(text) == "" {
			err = ErrEmptyResponse
		}

		var result T
		if err == nil {
			result, err = decode(text)
		}

		if err == nil {
			if c.cfg.Debug {
				c.logger.Debug("llm call succeeded", "model", model, "attempt", attempt, "retries", attempt, "prompt", prompt, "prompt_tokens", promptTokens)
			}
			return result, nil
		}

		lastErr = err
		if c.cfg.Debug {
			c.logger.Debug("llm call failed", "model", model, "attempt", attempt, "retries", attempt, "error", err, "prompt", prompt, "prompt_tokens", promptTokens)
		}

		if !isRetryable(err) {
			return zero, errs.NewLLMClientError(err, prompt)
		}
		c.logger.Warn("llm call failed, retrying", "model", model, "attempt", attempt, "error", err)
	}

	return zero, errs.NewLLMClientError(fmt.Errorf("exhausted %d retries: %w", c.retry.MaxRetries, lastErr), prompt)
}
