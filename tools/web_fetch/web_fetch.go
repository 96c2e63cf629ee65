package web_fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/newsrag/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/newsrag/tools/web_fetch/httpfetch"
	"github.com/mohammad-safakhou/newsrag/tools/web_fetch/models"
)

const (
	DefaultTimeout  = 15 * time.Second
	MaxBytesDefault = 5 << 20
)

var ErrUnsupportedFetcher = errors.New("unsupported fetcher type")

// Fetcher retrieves a URL as raw text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (models.Page, error)
}

type FetcherType string

const (
	HTTPFetcherType     FetcherType = "http"
	ChromedpFetcherType FetcherType = "chromedp"
)

func NewFetcher(fetcherType FetcherType, timeout time.Duration, maxBytes int64) (Fetcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxBytes <= 0 {
		maxBytes = MaxBytesDefault
	}

	switch fetcherType {
	case HTTPFetcherType, "":
		return httpfetch.New(timeout, maxBytes), nil
	case ChromedpFetcherType:
		return &chromedp.Fetch{Timeout: timeout, MaxBytes: maxBytes}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFetcher, fetcherType)
	}
}
