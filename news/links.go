package news

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mohammad-safakhou/newsrag/internal/helpers"
)

// candidateLinks returns the absolute http(s) anchors of body in document
// order, deduplicated and capped at MaxFallbackLinks.
func (s *Scraper) candidateLinks(body, source string) []string {
	if s.opts.MaxFallbackLinks == 0 {
		return nil
	}
	base, err := url.Parse(source)
	if err != nil {
		s.logger.Warn("source url unparsable", "source", source, "error", err)
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		s.logger.Warn("source html unparsable", "source", source, "error", err)
		return nil
	}
	return extractLinks(doc, base, s.opts.MaxFallbackLinks)
}

func extractLinks(doc *goquery.Document, base *url.URL, max int) []string {
	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		abs, ok := helpers.ResolveLink(base, href)
		if !ok {
			return true
		}
		if _, dup := seen[abs]; dup {
			return true
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
		return len(links) < max
	})
	return links
}
