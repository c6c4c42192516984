// Package ai constructs embedding and LLM services from provider
// configuration.
package ai

import (
	"context"
	"fmt"
	"time"

	embollama "github.com/corpusworks/corpus-cli/internal/adapters/driven/embedding/ollama"
	embopenai "github.com/corpusworks/corpus-cli/internal/adapters/driven/embedding/openai"
	llmanthropic "github.com/corpusworks/corpus-cli/internal/adapters/driven/llm/anthropic"
	llmollama "github.com/corpusworks/corpus-cli/internal/adapters/driven/llm/ollama"
	llmopenai "github.com/corpusworks/corpus-cli/internal/adapters/driven/llm/openai"
	"github.com/corpusworks/corpus-cli/internal/core/ports/driven"
)

// Provider identifies an AI backend.
type Provider string

// Supported providers.
const (
	ProviderOpenAI    Provider = "openai"
	ProviderOllama    Provider = "ollama"
	ProviderAnthropic Provider = "anthropic"
)

// pingTimeout bounds connectivity validation.
const pingTimeout = 5 * time.Second

// EmbeddingConfig selects and configures an embedding provider.
type EmbeddingConfig struct {
	Provider   Provider
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}

// LLMConfig selects and configures an LLM provider.
type LLMConfig struct {
	Provider Provider
	Model    string
	APIKey   string
	BaseURL  string
}

// NewEmbeddingService creates an embedding service for the provider.
func NewEmbeddingService(cfg EmbeddingConfig) (driven.EmbeddingService, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return embopenai.NewEmbeddingService(embopenai.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	case ProviderOllama:
		return embollama.NewEmbeddingService(embollama.Config{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		}), nil
	case ProviderAnthropic:
		return nil, fmt.Errorf("anthropic has no embedding API; use openai or ollama embeddings")
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (supported: openai, ollama)", cfg.Provider)
	}
}

// NewLLMService creates an LLM service for the provider.
func NewLLMService(cfg LLMConfig) (driven.LLMService, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return llmopenai.NewLLMService(llmopenai.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	case ProviderAnthropic:
		return llmanthropic.NewLLMService(llmanthropic.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	case ProviderOllama:
		return llmollama.NewLLMService(llmollama.Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q (supported: openai, anthropic, ollama)", cfg.Provider)
	}
}

// CreateAndValidateEmbedding creates an embedding service and verifies
// connectivity with a bounded ping.
func CreateAndValidateEmbedding(ctx context.Context, cfg EmbeddingConfig) (driven.EmbeddingService, error) {
	svc, err := NewEmbeddingService(cfg)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := svc.Ping(pingCtx); err != nil {
		svc.Close() //nolint:errcheck
		return nil, fmt.Errorf("validate embedding provider: %w", err)
	}
	return svc, nil
}

// CreateAndValidateLLM creates an LLM service and verifies connectivity
// with a bounded ping.
func CreateAndValidateLLM(ctx context.Context, cfg LLMConfig) (driven.LLMService, error) {
	svc, err := NewLLMService(cfg)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := svc.Ping(pingCtx); err != nil {
		svc.Close() //nolint:errcheck
		return nil, fmt.Errorf("validate llm provider: %w", err)
	}
	return svc, nil
}
