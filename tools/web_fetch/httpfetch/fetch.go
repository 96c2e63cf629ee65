package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/newsrag/internal/helpers"
	"github.com/mohammad-safakhou/newsrag/tools/web_fetch/models"
)

const (
	UserAgent = "Mozilla/5.0 (compatible; NewsScraper/1.0; +https://example.com)"
	Accept    = "application/rss+xml, application/xml, text/xml, text/html, */*;q=0.1"
)

// ErrStatus is returned for non-2xx responses.
var ErrStatus = errors.New("unexpected status")

// Fetch issues plain GET requests with a per-request timeout.
type Fetch struct {
	Client   *http.Client
	Timeout  time.Duration
	MaxBytes int64
}

func New(timeout time.Duration, maxBytes int64) *Fetch {
	return &Fetch{
		Client:   &http.Client{},
		Timeout:  timeout,
		MaxBytes: maxBytes,
	}
}

func (f *Fetch) Fetch(ctx context.Context, url string) (models.Page, error) {
	if strings.TrimSpace(url) == "" {
		return models.Page{}, errors.New("invalid url")
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	t0 := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Page{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", Accept)

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return models.Page{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	body, err := helpers.ReadAllAndClose(resp.Body, f.MaxBytes)
	page := models.Page{
		URL:         url,
		FinalURL:    resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
		Status:      resp.StatusCode,
		FetchMS:     int(time.Since(t0) / time.Millisecond),
	}
	if err != nil {
		return page, fmt.Errorf("read %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return page, fmt.Errorf("%w %d from %s", ErrStatus, resp.StatusCode, url)
	}
	page.Body = string(body)
	return page, nil
}
