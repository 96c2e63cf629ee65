package jina

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mohammad-safakhou/newsrag/tools/embedding"
)

// DefaultBaseURL is Jina's OpenAI-compatible API root; requests go to <base>/embeddings.
const DefaultBaseURL = "https://api.jina.ai/v1"

// Client calls the Jina embeddings endpoint. Timeouts come from the caller's context.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient accepts either the API root or the full /embeddings URL as baseURL.
func NewClient(apiKey, baseURL, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = normalizeBaseURL(baseURL)
	cfg.HTTPClient = &http.Client{}
	return &Client{
		api:   openai.NewClientWithConfig(cfg),
		model: model,
	}
}

func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimSuffix(baseURL, "/embeddings")
}

// CreateEmbedding implements embedding.Provider.
func (c *Client) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		if malformed(err) {
			return nil, fmt.Errorf("%w: %v", embedding.ErrMalformedResponse, err)
		}
		return nil, fmt.Errorf("jina embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no data", embedding.ErrMalformedResponse)
	}
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vecs := make([][]float32, len(data))
	for i, d := range data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at %d", embedding.ErrMalformedResponse, d.Index)
		}
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

// malformed reports a successful response whose body could not be decoded.
// Error statuses carry their own decode errors and are not malformed.
func malformed(err error) bool {
	var reqErr *openai.RequestError
	var apiErr *openai.APIError
	if errors.As(err, &reqErr) || errors.As(err, &apiErr) {
		return false
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF)
}
