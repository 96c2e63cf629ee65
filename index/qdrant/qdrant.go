package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/newsrag/index"
	"github.com/mohammad-safakhou/newsrag/internal/helpers"
	"github.com/mohammad-safakhou/newsrag/models"
)

// Client talks to the Qdrant REST API for a single collection.
type Client struct {
	baseURL    string
	apiKey     string
	collection string
	dimensions int
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL, apiKey, collection string, dimensions int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		collection: collection,
		dimensions: dimensions,
		httpClient: &http.Client{},
		logger:     logger.With("component", "qdrant"),
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload models.Article `json:"payload"`
}

type scoredPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload *models.Article `json:"payload,omitempty"`
}

type envelope[T any] struct {
	Result T       `json:"result"`
	Status any     `json:"status"`
	Time   float64 `json:"time"`
}

func (c *Client) EnsureCollection(ctx context.Context) error {
	var exists envelope[struct {
		Exists bool `json:"exists"`
	}]
	if err := c.do(ctx, http.MethodGet, c.collectionPath("exists"), nil, &exists); err != nil {
		return fmt.Errorf("check collection %s: %w", c.collection, err)
	}
	if exists.Result.Exists {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     c.dimensions,
			"distance": "Cosine",
		},
	}
	if err := c.do(ctx, http.MethodPut, c.collectionPath(""), body, nil); err != nil {
		return fmt.Errorf("create collection %s: %w", c.collection, err)
	}
	c.logger.Info("collection created", "collection", c.collection, "dimensions", c.dimensions)
	return nil
}

func (c *Client) Upsert(ctx context.Context, points []index.Point) error {
	if len(points) == 0 {
		return nil
	}
	req := struct {
		Points []point `json:"points"`
	}{Points: make([]point, len(points))}
	for i, p := range points {
		req.Points[i] = point{ID: p.ID, Vector: p.Vector, Payload: p.Payload}
	}
	if err := c.do(ctx, http.MethodPut, c.collectionPath("points")+"?wait=true", req, nil); err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return nil
}

func (c *Client) Search(ctx context.Context, vector []float32, limit int, withPayload bool) ([]index.ScoredPoint, error) {
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": withPayload,
	}
	var resp envelope[[]scoredPoint]
	if err := c.do(ctx, http.MethodPost, c.collectionPath("points/search"), req, &resp); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	out := make([]index.ScoredPoint, 0, len(resp.Result))
	for _, sp := range resp.Result {
		hit := index.ScoredPoint{ID: pointID(sp.ID), Score: sp.Score}
		if withPayload {
			hit.Payload = sp.Payload
		}
		out = append(out, hit)
	}
	return out, nil
}

func (c *Client) collectionPath(suffix string) string {
	p := "/collections/" + url.PathEscape(c.collection)
	if suffix != "" {
		p += "/" + suffix
	}
	return p
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	data, err := helpers.ReadAllAndClose(resp.Body, 0)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("qdrant %s %s returned status %d: %s", method, path, resp.StatusCode, helpers.Truncate(string(data), 300))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// pointID accepts both UUID strings and unsigned integer ids.
func pointID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatUint(n, 10)
	}
	return string(raw)
}
