package news

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/google/uuid"
	"github.com/mohammad-safakhou/newsrag/internal/helpers"
	"github.com/mohammad-safakhou/newsrag/models"
)

// fallbackArticle fetches link and builds an article from its page metadata.
func (s *Scraper) fallbackArticle(ctx context.Context, link string) (models.Article, error) {
	page, err := s.fetcher.Fetch(ctx, link)
	if err != nil {
		return models.Article{}, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Body))
	if err != nil {
		return models.Article{}, fmt.Errorf("parse html: %w", err)
	}

	title := pageTitle(doc)
	snippet := helpers.FirstNonEmpty(
		metaContent(doc, `meta[property="og:description"]`),
		metaContent(doc, `meta[name="description"]`),
		metaContent(doc, `meta[name="twitter:description"]`),
	)
	if snippet == "" {
		snippet = helpers.Truncate(mainText(doc, page.Body, link), s.opts.SnippetChars)
	}

	return models.Article{
		ID:          uuid.NewString(),
		Title:       title,
		Content:     snippet,
		URL:         link,
		PublishDate: s.now().UTC().Format(time.RFC3339),
		Source:      link,
	}, nil
}

func pageTitle(doc *goquery.Document) string {
	title := helpers.FirstNonEmpty(
		metaContent(doc, `meta[property="og:title"]`),
		metaContent(doc, `meta[name="twitter:title"]`),
		helpers.CollapseWhitespace(doc.Find("title").First().Text()),
	)
	if title == "" {
		return untitled
	}
	return title
}

func metaContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(v)
}

// mainText prefers the page's <article> element and falls back to readability.
func mainText(doc *goquery.Document, body, link string) string {
	if text := helpers.CollapseWhitespace(doc.Find("article").First().Text()); text != "" {
		return text
	}
	pageURL, err := url.Parse(link)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(body), pageURL)
	if err != nil {
		return ""
	}
	return helpers.CollapseWhitespace(article.TextContent)
}
