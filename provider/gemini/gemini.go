package gemini_provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// ErrEmptyCompletion is returned when the model produced no text, for example
// because the prompt was blocked.
var ErrEmptyCompletion = errors.New("gemini: empty completion")

// contentGenerator is the subset of *genai.Models the client needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type client struct {
	models      contentGenerator
	model       string
	temperature *float64
	maxTokens   int
	logger      *slog.Logger
}

// NewGeminiClient creates a Gemini API client for the given model.
func NewGeminiClient(ctx context.Context, apiKey, model string, temperature *float64, maxTokens int, logger *slog.Logger) (*client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newClient(gc.Models, model, temperature, maxTokens, logger), nil
}

func newClient(models contentGenerator, model string, temperature *float64, maxTokens int, logger *slog.Logger) *client {
	if logger == nil {
		logger = slog.Default()
	}
	return &client{
		models:      models,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger.With("component", "gemini"),
	}
}

func (c *client) generationConfig() *genai.GenerateContentConfig {
	if c.temperature == nil && c.maxTokens <= 0 {
		return nil
	}
	cfg := &genai.GenerateContentConfig{}
	if c.temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*c.temperature))
	}
	if c.maxTokens > 0 {
		cfg.MaxOutputTokens = int32(c.maxTokens)
	}
	return cfg
}

// Complete sends prompt as a single user turn and returns the response text.
func (c *client) Complete(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug("generating", "model", c.model, "prompt_chars", len(prompt))
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), c.generationConfig())
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
