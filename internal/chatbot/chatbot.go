// Package chatbot answers news questions by combining session history, vector
// retrieval and text generation, and keeps the article index fresh.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mohammad-safakhou/newsrag/index"
	"github.com/mohammad-safakhou/newsrag/internal/telemetry"
	"github.com/mohammad-safakhou/newsrag/models"
	"github.com/mohammad-safakhou/newsrag/provider"
	"github.com/mohammad-safakhou/newsrag/session"
)

const (
	DefaultTopK          = 5
	DefaultHistoryWindow = 6
	DefaultSessionTTL    = time.Hour
	DefaultIngestLimit   = 50
)

// Embedder converts one text to a vector.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder converts many texts in one pass, preserving order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Scraper discovers articles from the configured sources.
type Scraper interface {
	Ingest(ctx context.Context, sources []string, limit int) ([]models.Article, error)
}

// Deps are the collaborators of a Chatbot. Notifier, Logger, Metrics and Now are optional.
type Deps struct {
	Sessions session.Store
	Embedder Embedder
	Index    index.Gateway
	Provider provider.Provider
	Scraper  Scraper
	Notifier Notifier
	Logger   *slog.Logger
	Metrics  *telemetry.Metrics
	Now      func() time.Time
}

type Options struct {
	TopK          int
	HistoryWindow int
	SessionTTL    time.Duration
	Sources       []string
	IngestLimit   int
	// BatchEmbed embeds ingested articles with EmbedBatch when the embedder supports it.
	BatchEmbed bool
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.HistoryWindow < 0 {
		o.HistoryWindow = DefaultHistoryWindow
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = DefaultSessionTTL
	}
	if o.IngestLimit < 0 {
		o.IngestLimit = DefaultIngestLimit
	}
	return o
}

type Chatbot struct {
	sessions session.Store
	embedder Embedder
	index    index.Gateway
	provider provider.Provider
	scraper  Scraper
	notifier Notifier
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	now      func() time.Time
	opts     Options
}

func New(deps Deps, opts Options) (*Chatbot, error) {
	switch {
	case deps.Sessions == nil:
		return nil, errors.New("chatbot: session store required")
	case deps.Embedder == nil:
		return nil, errors.New("chatbot: embedder required")
	case deps.Index == nil:
		return nil, errors.New("chatbot: index gateway required")
	case deps.Provider == nil:
		return nil, errors.New("chatbot: generation provider required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Chatbot{
		sessions: deps.Sessions,
		embedder: deps.Embedder,
		index:    deps.Index,
		provider: deps.Provider,
		scraper:  deps.Scraper,
		notifier: notifier,
		logger:   logger.With("component", "chatbot"),
		metrics:  deps.Metrics,
		now:      now,
		opts:     opts.withDefaults(),
	}, nil
}

// Initialize makes sure the article collection exists.
func (c *Chatbot) Initialize(ctx context.Context) error {
	if err := c.index.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	c.logger.Info("vector collection ready")
	return nil
}

// ProcessQuery runs one question-answer cycle for sessionID. Any failing step
// aborts the query; the user message may already be recorded at that point.
func (c *Chatbot) ProcessQuery(ctx context.Context, sessionID, message string) (models.QueryResult, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(message) == "" {
		return models.QueryResult{}, fmt.Errorf("%w: sessionId and message are required", models.ErrInvalidRequest)
	}
	start := c.now()
	result, stage, err := c.processQuery(ctx, sessionID, message)
	if err != nil {
		c.metrics.QueryFailed(stage)
		c.logger.Error("query failed", "session", sessionID, "stage", stage, "error", err)
		return models.QueryResult{}, err
	}
	c.metrics.QueryDone(c.now().Sub(start))
	c.logger.Info("query answered", "session", sessionID, "sources", len(result.Sources))
	return result, nil
}

func (c *Chatbot) processQuery(ctx context.Context, sessionID, message string) (models.QueryResult, string, error) {
	history, err := c.sessions.Load(ctx, sessionID)
	if err != nil {
		return models.QueryResult{}, "history", fmt.Errorf("load history: %w", err)
	}

	userMsg := models.NewChatMessage(models.RoleUser, message, c.now())
	if err := c.sessions.Append(ctx, sessionID, userMsg, c.opts.SessionTTL); err != nil {
		return models.QueryResult{}, "history", fmt.Errorf("record user message: %w", err)
	}

	vector, err := c.embedder.EmbedOne(ctx, message)
	if err != nil {
		return models.QueryResult{}, "embed", fmt.Errorf("embed query: %w", err)
	}

	hits, err := c.index.Search(ctx, vector, c.opts.TopK, true)
	if err != nil {
		return models.QueryResult{}, "search", fmt.Errorf("search index: %w", err)
	}
	articles := payloads(hits)

	prompt := BuildPrompt(lastMessages(history, c.opts.HistoryWindow), articles, message)
	answer, err := c.provider.Complete(ctx, prompt)
	if err != nil {
		return models.QueryResult{}, "generate", fmt.Errorf("generate answer: %w", err)
	}

	botMsg := models.NewChatMessage(models.RoleAssistant, answer, c.now())
	if err := c.sessions.Append(ctx, sessionID, botMsg, c.opts.SessionTTL); err != nil {
		return models.QueryResult{}, "history", fmt.Errorf("record answer: %w", err)
	}

	sources := make([]models.SourceRef, len(articles))
	for i, a := range articles {
		sources[i] = models.SourceRef{Title: a.Title, URL: a.URL}
	}
	return models.QueryResult{Response: answer, Sources: sources}, "", nil
}

// ProcessQueryNotify is ProcessQuery bracketed by notifier callbacks.
func (c *Chatbot) ProcessQueryNotify(ctx context.Context, sessionID, message string) (models.QueryResult, error) {
	c.notifier.Working(ctx, sessionID, true)
	result, err := c.ProcessQuery(ctx, sessionID, message)
	c.notifier.Working(ctx, sessionID, false)
	if err != nil {
		c.notifier.Failed(ctx, sessionID, err)
		return models.QueryResult{}, err
	}
	c.notifier.Result(ctx, sessionID, result)
	return result, nil
}

// History returns the stored messages of sessionID, oldest first.
func (c *Chatbot) History(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	history, err := c.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return history, nil
}

// ClearHistory drops every message of sessionID.
func (c *Chatbot) ClearHistory(ctx context.Context, sessionID string) error {
	if err := c.sessions.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	c.logger.Info("session cleared", "session", sessionID)
	return nil
}

func payloads(hits []index.ScoredPoint) []models.Article {
	out := make([]models.Article, 0, len(hits))
	for _, h := range hits {
		if h.Payload != nil {
			out = append(out, *h.Payload)
		}
	}
	return out
}

// lastMessages returns the trailing n messages of history.
func lastMessages(history []models.ChatMessage, n int) []models.ChatMessage {
	if n <= 0 {
		return nil
	}
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}
