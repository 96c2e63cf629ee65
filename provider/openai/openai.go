package openai_provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNoChoices is returned when the API answered without any completion.
var ErrNoChoices = errors.New("openai: no choices in response")

// client implements the provider interface on OpenAI-compatible chat completions.
type client struct {
	api             *openai.Client
	completionModel string
	temperature     *float64
	maxTokens       int
	logger          *slog.Logger
}

// NewOpenAIClient creates a new OpenAI client. apiURL may be the API root or the
// full /chat/completions URL; empty targets the public endpoint. A nil
// temperature leaves the model default in place.
func NewOpenAIClient(apiKey, apiURL, completionModel string, temperature *float64, maxTokens int, timeout time.Duration, logger *slog.Logger) *client {
	cfg := openai.DefaultConfig(apiKey)
	if apiURL = strings.TrimRight(strings.TrimSpace(apiURL), "/"); apiURL != "" {
		cfg.BaseURL = strings.TrimSuffix(apiURL, "/chat/completions")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	if logger == nil {
		logger = slog.Default()
	}
	return &client{
		api:             openai.NewClientWithConfig(cfg),
		completionModel: completionModel,
		temperature:     temperature,
		maxTokens:       maxTokens,
		logger:          logger.With("component", "openai"),
	}
}

func (c *client) request(prompt string) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model: c.completionModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: c.maxTokens,
	}
	if c.temperature != nil {
		// go-openai omits a zero temperature; the smallest float keeps an explicit 0 on the wire.
		req.Temperature = float32(*c.temperature)
		if req.Temperature == 0 {
			req.Temperature = math.SmallestNonzeroFloat32
		}
	}
	return req
}

// Complete sends prompt as a single user message.
func (c *client) Complete(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug("sending completion request", "model", c.completionModel, "max_tokens", c.maxTokens)
	resp, err := c.api.CreateChatCompletion(ctx, c.request(prompt))
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}
