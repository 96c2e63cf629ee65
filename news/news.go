// Package news discovers articles from syndication feeds and, when a source is
// not a feed or yields too few items, from the links on the page itself.
package news

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/mohammad-safakhou/newsrag/models"
	"github.com/mohammad-safakhou/newsrag/tools/web_fetch"
)

const (
	DefaultMaxFallbackLinks = 20
	DefaultSnippetChars     = 400
	untitled                = "Untitled"
)

type Options struct {
	MaxFallbackLinks int
	SnippetChars     int
}

// Scraper runs ingestion passes over a list of sources.
type Scraper struct {
	fetcher web_fetch.Fetcher
	parser  *gofeed.Parser
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

func NewScraper(fetcher web_fetch.Fetcher, opts Options, logger *slog.Logger) *Scraper {
	if opts.MaxFallbackLinks < 0 {
		opts.MaxFallbackLinks = 0
	}
	if opts.SnippetChars <= 0 {
		opts.SnippetChars = DefaultSnippetChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		fetcher: fetcher,
		parser:  gofeed.NewParser(),
		opts:    opts,
		logger:  logger.With("component", "scraper"),
		now:     time.Now,
	}
}

// Ingest visits sources in order and returns at most limit articles with
// distinct URLs. Per-source and per-link failures are logged and skipped; only
// context cancellation stops the run early, returning what was collected.
func (s *Scraper) Ingest(ctx context.Context, sources []string, limit int) ([]models.Article, error) {
	run := newCollector(limit)
	if run.full() {
		return run.articles(), nil
	}
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return run.articles(), err
		}
		if s.ingestSource(ctx, run, source) {
			break
		}
	}
	s.logger.Info("ingestion pass finished", "sources", len(sources), "articles", len(run.out))
	return run.articles(), nil
}

// ingestSource reports whether the limit was reached.
func (s *Scraper) ingestSource(ctx context.Context, run *collector, source string) bool {
	page, err := s.fetcher.Fetch(ctx, source)
	if err != nil {
		s.logger.Warn("source fetch failed", "source", source, "error", err)
		return false
	}
	if page.Body == "" {
		return false
	}

	for _, a := range s.feedArticles(page.Body, source) {
		if run.add(a) {
			return true
		}
	}

	for _, link := range s.candidateLinks(page.Body, source) {
		if err := ctx.Err(); err != nil {
			return false
		}
		if run.seen(link) {
			continue
		}
		a, err := s.fallbackArticle(ctx, link)
		if err != nil {
			s.logger.Warn("fallback link failed", "source", source, "link", link, "error", err)
			continue
		}
		if run.add(a) {
			return true
		}
	}
	return false
}

// collector enforces URL uniqueness and the article limit for one run.
type collector struct {
	limit int
	urls  map[string]struct{}
	out   []models.Article
}

func newCollector(limit int) *collector {
	if limit < 0 {
		limit = 0
	}
	return &collector{limit: limit, urls: make(map[string]struct{})}
}

func (c *collector) seen(url string) bool {
	_, ok := c.urls[url]
	return ok
}

func (c *collector) full() bool { return len(c.out) >= c.limit }

// add stores a unless its URL was already collected and reports whether the
// limit is now reached.
func (c *collector) add(a models.Article) bool {
	if c.full() {
		return true
	}
	if a.URL == "" || c.seen(a.URL) {
		return false
	}
	c.urls[a.URL] = struct{}{}
	c.out = append(c.out, a)
	return c.full()
}

func (c *collector) articles() []models.Article {
	if len(c.out) > c.limit {
		return c.out[:c.limit]
	}
	return c.out
}
