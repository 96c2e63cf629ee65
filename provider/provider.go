package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mohammad-safakhou/newsrag/config"
	gemini_provider "github.com/mohammad-safakhou/newsrag/provider/gemini"
	openai_provider "github.com/mohammad-safakhou/newsrag/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI Client = "openai"
	Gemini Client = "gemini"
)

// Provider turns a prompt into a single completion.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(ctx context.Context, cfg config.GenerationConfig, timeout time.Duration, logger *slog.Logger) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("generation.api_key not set for %s", cfg.Provider)
	}
	switch Client(cfg.Provider) {
	case Gemini:
		gc, err := gemini_provider.NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.Temperature, cfg.MaxTokens, logger)
		if err != nil {
			return nil, err
		}
		return gc, nil
	case OpenAI:
		return openai_provider.NewOpenAIClient(
			cfg.APIKey,
			cfg.BaseURL,
			cfg.Model,
			cfg.Temperature,
			cfg.MaxTokens,
			timeout,
			logger,
		), nil
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
