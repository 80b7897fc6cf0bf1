package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/genai"
)

// genaiBackend implements Backend over Google's Gemini SDK. Client
// construction and the context-first/model-string/contents/config-pointer
// call shape are grounded on
// theRebelliousNerd-codenerd/internal/embedding/genai.go's GenAIEngine.
type genaiBackend struct {
	client *genai.Client
}

// newGenAIBackend dials the Gemini API with the given key.
func newGenAIBackend(ctx context.Context, apiKey string) (*genaiBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &genaiBackend{client: client}, nil
}

func (b *genaiBackend) GenerateContent(ctx context.Context, model, prompt string, temperature float32, maxOutputTokens int32) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := b.client.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: maxOutputTokens,
	})
	if err != nil {
		return "", classifyGenAIError(err)
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}
	return resp.Text(), nil
}

func (b *genaiBackend) CountTokens(ctx context.Context, model, text string) (int, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	resp, err := b.client.Models.CountTokens(ctx, model, contents, nil)
	if err != nil {
		return 0, classifyGenAIError(err)
	}
	return int(resp.TotalTokens), nil
}

// classifyGenAIError maps the SDK's error surface onto the retryable
// classification isRetryable applies (connect errors, HTTP 5xx, timeouts are
// retryable; other HTTP 4xx are not). The SDK doesn't expose a
// typed status code consistently across transports, so this is a
// best-effort classification based on the error's APIError shape when
// present; an exceeded per-call deadline maps to ErrTimeout and other
// network errors to ErrTimeout or ErrConnect. Caller cancellation and
// unknown errors are treated as non-retryable internal errors.
func classifyGenAIError(err error) error {
	if apiErr, ok := err.(genai.APIError); ok {
		return &BackendError{StatusCode: apiErr.Code, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("genai call failed: %w", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}
	return fmt.Errorf("genai call failed: %w", err)
}
