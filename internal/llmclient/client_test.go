package llmclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/antigravity-dev/git-news/internal/errs"
)

// scriptedBackend replays a fixed sequence of (text, error) results per
// GenerateContent call, regardless of model/prompt, and counts tokens as
// len(text)/4 (cheap, deterministic, keeps every test prompt well within
// budget so fitting never kicks in unless a test wants it to).
type scriptedBackend struct {
	results []scriptedResult
	calls   int
}

type scriptedResult struct {
	text string
	err  error
}

func (b *scriptedBackend) GenerateContent(_ context.Context, _, _ string, _ float32, _ int32) (string, error) {
	if b.calls >= len(b.results) {
		return "", errors.New("scriptedBackend: out of scripted results")
	}
	r := b.results[b.calls]
	b.calls++
	return r.text, r.err
}

func (b *scriptedBackend) CountTokens(_ context.Context, _ string, text string) (int, error) {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n, nil
}

func fastRetryConfig() Config {
	return Config{
		ModelTier1:           "gemini-2.5-flash",
		ModelTier2:           "gemini-2.5-pro",
		ModelTier3:           "gemini-2.5-pro",
		TokenLimitTier1:      100000,
		TokenLimitTier2:      100000,
		TokenLimitTier3:      100000,
		MaxOutputTokensTier1: 1000,
		MaxOutputTokensTier2: 1000,
		MaxOutputTokensTier3: 1000,
		Temperature:          0.5,
		CallTimeout:          5 * time.Second,
	}
}

func newTestClient(backend Backend) *Client {
	c := New(backend, fastRetryConfig(), nil)
	c.retry = RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, BackoffFactor: 1.5, MaxDelay: 10 * time.Millisecond}
	return c
}

func TestAnalyzeCommitSuccess(t *testing.T) {
	backend := &scriptedBackend{results: []scriptedResult{
		{text: `{"changes": [{"summary": "Add feature", "category": "New Feature"}], "trivial": false}`},
	}}
	c := newTestClient(backend)

	got, err := c.AnalyzeCommit(context.Background(), "diff --git a/x b/x")
	require.NoError(t, err)
	require.False(t, got.Trivial)
	require.Len(t, got.Changes, 1)
	require.Equal(t, "Add feature", got.Changes[0].Summary)
}

func TestAnalyzeCommitStripsCodeFenceAndTrailingComma(t *testing.T) {
	backend := &scriptedBackend{results: []scriptedResult{
		{text: "```json\n{\"changes\": [{\"summary\": \"x\", \"category\": \"Bug Fix\",}], \"trivial\": false,}\n```"},
	}}
	c := newTestClient(backend)

	got, err := c.AnalyzeCommit(context.Background(), "diff")
	require.NoError(t, err)
	require.Len(t, got.Changes, 1)
	require.EqualValues(t, "Bug Fix", got.Changes[0].Category)
}

func TestRetryThenSuccess(t *testing.T) {
	// ConnectError, ConnectError, valid JSON -> 3 calls, success.
	backend := &scriptedBackend{results: []scriptedResult{
		{err: ErrConnect},
		{err: ErrConnect},
		{text: `{"changes": [], "trivial": true}`},
	}}
	c := newTestClient(backend)

	got, err := c.AnalyzeCommit(context.Background(), "diff")
	require.NoError(t, err)
	require.True(t, got.Trivial)
	require.Equal(t, 3, backend.calls)
}

func TestRetryExhaustedSurfacesLLMClientError(t *testing.T) {
	backend := &scriptedBackend{results: []scriptedResult{
		{err: ErrConnect},
		{err: ErrConnect},
		{err: ErrConnect},
		{err: ErrConnect},
	}}
	c := newTestClient(backend)

	_, err := c.AnalyzeCommit(context.Background(), "diff")
	require.Error(t, err)
	var lce *errs.LLMClientError
	require.ErrorAs(t, err, &lce)
	require.Equal(t, 4, backend.calls, "expected 1 + 3 retries")
}

func TestMalformedJSONAfterAllAttemptsIsFatal(t *testing.T) {
	bad := scriptedResult{text: "```json\n{invalid json}\n```"}
	backend := &scriptedBackend{results: []scriptedResult{bad, bad, bad, bad}}
	c := newTestClient(backend)

	_, err := c.AnalyzeCommit(context.Background(), "diff")
	var lce *errs.LLMClientError
	require.ErrorAs(t, err, &lce)
	require.NotEmpty(t, lce.Prompt, "expected LLMClientError to carry the prompt")
}

func TestEmptyResponseIsRetryable(t *testing.T) {
	backend := &scriptedBackend{results: []scriptedResult{
		{text: ""},
		{text: "plain text summary"},
	}}
	c := newTestClient(backend)

	got, err := c.SynthesizeDaily(context.Background(), "log", "diff")
	require.NoError(t, err)
	require.Equal(t, "plain text summary", got)
}

func TestFourByFourError(t *testing.T) {
	// HTTP 4xx other than rate-limit is non-retryable: fails on first attempt.
	backend := &scriptedBackend{results: []scriptedResult{
		{err: &BackendError{StatusCode: 400, Err: errors.New("bad request")}},
	}}
	c := newTestClient(backend)

	_, err := c.AnalyzeCommit(context.Background(), "diff")
	require.Error(t, err)
	require.Equal(t, 1, backend.calls, "expected exactly 1 call for non-retryable 4xx")
}

func TestSynthesizeDaily(t *testing.T) {
	backend := &scriptedBackend{results: []scriptedResult{
		{text: "### 2025-01-07 — Major Progress\n\nSignificant development today."},
	}}
	c := newTestClient(backend)

	got, err := c.SynthesizeDaily(context.Background(), "full log", "daily diff")
	require.NoError(t, err)
	require.NotEmpty(t, got)
}

// capturingBackend records the prompt text of every GenerateContent call so
// tests can assert on prompt content directly, not just the decoded result.
type capturingBackend struct {
	scriptedBackend
	prompts []string
}

func (b *capturingBackend) GenerateContent(ctx context.Context, model, prompt string, temperature float32, maxOutputTokens int32) (string, error) {
	b.prompts = append(b.prompts, prompt)
	return b.scriptedBackend.GenerateContent(ctx, model, prompt, temperature, maxOutputTokens)
}

func TestGenerateNarrativeIncludesAllSectionsWithoutDuplication(t *testing.T) {
	backend := &capturingBackend{scriptedBackend: scriptedBackend{results: []scriptedResult{
		{text: "narrative prose"},
	}}}
	c := newTestClient(backend)

	_, err := c.GenerateNarrative(context.Background(),
		[]string{"commit A"}, []string{"day one summary"}, "diff line", "prior period history")
	require.NoError(t, err)
	require.Len(t, backend.prompts, 1)

	prompt := backend.prompts[0]
	require.Contains(t, prompt, "Daily summaries:")
	require.NotContains(t, prompt, "Weekly summaries:")
	require.Contains(t, prompt, "Commit highlights:")
	require.Contains(t, prompt, "Aggregate diff:")
	require.Contains(t, prompt, "Prior history:")
	require.Equal(t, 1, strings.Count(prompt, "day one summary"), "daily summary content must appear exactly once")
}

func TestGenerateNarrativeChunksWhenOverBudget(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.TokenLimitTier3 = 100 // comfortably above the static prefix, small enough to force chunking
	dailySummaries := make([]string, 20)
	for i := range dailySummaries {
		dailySummaries[i] = "summary content here"
	}
	results := make([]scriptedResult, 20)
	for i := range results {
		results[i] = scriptedResult{text: fmt.Sprintf("part %d", i)}
	}
	backend := &scriptedBackend{results: results}
	c := New(backend, cfg, nil)
	c.retry = RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, BackoffFactor: 1.5, MaxDelay: 10 * time.Millisecond}

	out, err := c.GenerateNarrative(context.Background(), nil, dailySummaries, "weekly diff text", "")
	require.NoError(t, err, "an oversized narrative prompt must chunk-and-combine, not fail to fit")
	require.Greater(t, backend.calls, 1, "expected the narrative prompt to require more than one chunk")
	require.Contains(t, out, "part 0")
}

func TestGenerateChangelogWithNoEntriesReturnsBackendText(t *testing.T) {
	backend := &scriptedBackend{results: []scriptedResult{
		{text: "## New Feature\n- Add login\n"},
	}}
	c := newTestClient(backend)

	out, err := c.GenerateChangelog(context.Background(), nil)
	require.NoError(t, err)
	require.NotEmpty(t, out)
}
