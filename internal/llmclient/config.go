package llmclient

import "time"

// Config holds the per-tier model names, input-token limits, and
// max-output-token values, plus a shared temperature, per-call timeout, and
// API key. (max_concurrent lives in the orchestrator's config, not here —
// it bounds fan-out, not calls.)
type Config struct {
	ModelTier1 string
	ModelTier2 string
	ModelTier3 string

	TokenLimitTier1 int
	TokenLimitTier2 int
	TokenLimitTier3 int

	MaxOutputTokensTier1 int
	MaxOutputTokensTier2 int
	MaxOutputTokensTier3 int

	Temperature float32
	CallTimeout time.Duration
	APIKey      string

	// Debug additionally logs the prompt, token count and retry count for
	// every call.
	Debug bool
}
