package driven

import "context"

// GenerateOptions controls LLM text generation.
type GenerateOptions struct {
	// MaxTokens caps the response length. Zero uses the provider default.
	MaxTokens int

	// Temperature controls sampling randomness.
	Temperature float64
}

// LLMService produces text completions for answer generation.
type LLMService interface {
	// Generate produces a completion for the prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ModelName returns the model identifier.
	ModelName() string

	// Ping validates the provider is reachable and credentials work.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
