package chatbot

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/newsrag/index"
	"github.com/mohammad-safakhou/newsrag/models"
)

// IngestArticles scrapes the configured sources, embeds every article and
// upserts them in one call. It returns the number of articles indexed.
func (c *Chatbot) IngestArticles(ctx context.Context) (int, error) {
	if c.scraper == nil {
		return 0, errors.New("chatbot: no scraper configured")
	}
	start := c.now()
	count, err := c.ingest(ctx)
	c.metrics.IngestRun(count, c.now().Sub(start), err)
	if err != nil {
		c.logger.Error("ingestion failed", "error", err)
		return 0, err
	}
	c.logger.Info("ingested articles", "count", count)
	return count, nil
}

func (c *Chatbot) ingest(ctx context.Context) (int, error) {
	articles, err := c.scraper.Ingest(ctx, c.opts.Sources, c.opts.IngestLimit)
	if err != nil {
		return 0, fmt.Errorf("scrape: %w", err)
	}
	if len(articles) == 0 {
		return 0, nil
	}

	vectors, err := c.embedArticles(ctx, articles)
	if err != nil {
		return 0, err
	}

	points := make([]index.Point, 0, len(articles))
	for i, a := range articles {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		points = append(points, index.Point{ID: a.ID, Vector: vectors[i], Payload: a})
	}
	if err := c.index.Upsert(ctx, points); err != nil {
		return 0, fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return len(points), nil
}

// embedArticles embeds one article at a time unless batch embedding is enabled
// and available.
func (c *Chatbot) embedArticles(ctx context.Context, articles []models.Article) ([][]float32, error) {
	if batcher, ok := c.embedder.(BatchEmbedder); ok && c.opts.BatchEmbed {
		texts := make([]string, len(articles))
		for i, a := range articles {
			texts[i] = a.EmbeddingText()
		}
		vectors, err := batcher.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed %d articles: %w", len(articles), err)
		}
		if len(vectors) != len(articles) {
			return nil, fmt.Errorf("embed %d articles: got %d vectors", len(articles), len(vectors))
		}
		return vectors, nil
	}

	vectors := make([][]float32, len(articles))
	for i, a := range articles {
		vector, err := c.embedder.EmbedOne(ctx, a.EmbeddingText())
		if err != nil {
			return nil, fmt.Errorf("embed article %s: %w", a.URL, err)
		}
		vectors[i] = vector
	}
	return vectors, nil
}
