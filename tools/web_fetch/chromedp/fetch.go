package chromedp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/mohammad-safakhou/newsrag/tools/web_fetch/models"
)

const userAgent = "Mozilla/5.0 (compatible; NewsScraper/1.0; +https://example.com)"

// Fetch renders pages in headless Chrome and returns the resulting outer HTML.
// Useful for script-rendered landing pages; feeds are better served by httpfetch.
type Fetch struct {
	Timeout  time.Duration
	MaxBytes int64
}

func (f Fetch) Fetch(ctx context.Context, url string) (models.Page, error) {
	if strings.TrimSpace(url) == "" {
		return models.Page{}, errors.New("invalid url")
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	t0 := time.Now()

	html, err := fetchHTML(ctx, url)
	if err != nil {
		return models.Page{URL: url, Status: 599, FetchMS: int(time.Since(t0) / time.Millisecond)}, fmt.Errorf("render %s: %w", url, err)
	}
	if f.MaxBytes > 0 && int64(len(html)) > f.MaxBytes {
		html = html[:f.MaxBytes]
	}
	return models.Page{
		URL:         url,
		FinalURL:    url,
		Body:        html,
		ContentType: "text/html",
		Status:      200,
		FetchMS:     int(time.Since(t0) / time.Millisecond),
	}, nil
}

func fetchHTML(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(userAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}
