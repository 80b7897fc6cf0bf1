package llmclient

import "context"

// Backend is the minimal seam between the client's retry/fitting logic and
// the actual text-generation transport. The production implementation is
// genaiBackend (genai_backend.go); tests use a hand-written fake.
type Backend interface {
	GenerateContent(ctx context.Context, model, prompt string, temperature float32, maxOutputTokens int32) (string, error)
	CountTokens(ctx context.Context, model, text string) (int, error)
}
