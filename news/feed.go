package news

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	"github.com/mohammad-safakhou/newsrag/internal/helpers"
	"github.com/mohammad-safakhou/newsrag/models"
)

// feedArticles parses body as RSS or Atom. Content that is not a feed yields nil.
func (s *Scraper) feedArticles(body, source string) []models.Article {
	feed, err := s.parser.ParseString(body)
	if err != nil {
		s.logger.Debug("source is not a feed", "source", source, "error", err)
		return nil
	}

	out := make([]models.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if a, ok := s.itemArticle(item, source); ok {
			out = append(out, a)
		}
	}
	s.logger.Debug("feed parsed", "source", source, "items", len(feed.Items), "accepted", len(out))
	return out
}

func (s *Scraper) itemArticle(item *gofeed.Item, source string) (models.Article, bool) {
	if item == nil {
		return models.Article{}, false
	}
	title := helpers.PlainText(item.Title)
	desc := helpers.PlainText(item.Description)
	if desc == "" {
		desc = helpers.PlainText(item.Content)
	}
	link := strings.TrimSpace(item.Link)
	if title == "" || (desc == "" && link == "") {
		return models.Article{}, false
	}
	// URL is the identity key; an item without one cannot be deduplicated.
	if link == "" {
		return models.Article{}, false
	}

	published := strings.TrimSpace(item.Published)
	if published == "" {
		published = s.now().UTC().Format(time.RFC3339)
	}
	return models.Article{
		ID:          itemID(item.GUID),
		Title:       title,
		Content:     desc,
		URL:         link,
		PublishDate: published,
		Source:      source,
	}, true
}

// itemID is stable across runs when the feed supplies a GUID.
func itemID(guid string) string {
	if guid = strings.TrimSpace(guid); guid != "" {
		return uuid.NewSHA1(uuid.NameSpaceURL, []byte(guid)).String()
	}
	return uuid.NewString()
}
