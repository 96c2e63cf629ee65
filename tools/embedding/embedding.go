package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mohammad-safakhou/newsrag/internal/telemetry"
)

var (
	// ErrEmptyText is returned without contacting the provider.
	ErrEmptyText = errors.New("embedding: text is empty")
	// ErrMalformedResponse marks provider replies that lack the expected vectors.
	ErrMalformedResponse = errors.New("embedding: malformed provider response")
)

const (
	DefaultRetries    = 3
	DefaultBatchSize  = 16
	DefaultTimeout    = 15 * time.Second
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultBatchPause = 100 * time.Millisecond
)

// Provider creates embeddings for texts in one request, one vector per text in input order.
type Provider interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Options struct {
	Retries    int
	BatchSize  int
	Timeout    time.Duration
	RetryDelay time.Duration
	BatchPause time.Duration
}

func (o Options) withDefaults() Options {
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.BatchPause <= 0 {
		o.BatchPause = DefaultBatchPause
	}
	return o
}

// Service turns text into vectors with bounded retry for single texts and
// paced chunking for batches.
type Service struct {
	provider Provider
	opts     Options
	sleep    SleepFunc
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

func NewService(provider Provider, opts Options, logger *slog.Logger, metrics *telemetry.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: provider,
		opts:     opts.withDefaults(),
		sleep:    Sleep,
		logger:   logger.With("component", "embedding"),
		metrics:  metrics,
	}
}

// WithSleep replaces the wait between attempts and chunks.
func (s *Service) WithSleep(fn SleepFunc) *Service {
	if fn != nil {
		s.sleep = fn
	}
	return s
}

// EmbedOne embeds a single text. Failed attempts are retried up to Retries
// times, waiting RetryDelay*n before retry n.
func (s *Service) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	var lastErr error
	for attempt := 0; attempt <= s.opts.Retries; attempt++ {
		if attempt > 0 {
			s.metrics.EmbeddingRetry()
			delay := s.opts.RetryDelay * time.Duration(attempt)
			s.logger.Warn("embedding attempt failed, retrying", "attempt", attempt, "delay", delay, "error", lastErr)
			if err := s.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("embed: %w", err)
			}
		}
		vec, err := s.embedOnce(ctx, text)
		s.metrics.EmbeddingAttempt(err)
		if err == nil {
			return vec, nil
		}
		lastErr = err
	}
	s.logger.Error("embedding failed", "attempts", s.opts.Retries+1, "error", lastErr)
	return nil, lastErr
}

func (s *Service) embedOnce(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	vecs, err := s.provider.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, ErrMalformedResponse
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in consecutive chunks of BatchSize, pausing after
// each chunk. A failing chunk aborts the whole batch.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.opts.BatchSize {
		end := start + s.opts.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk := texts[start:end]
		vecs, err := s.embedChunk(ctx, chunk)
		s.metrics.EmbeddingAttempt(err)
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		out = append(out, vecs...)
		if err := s.sleep(ctx, s.opts.BatchPause); err != nil {
			return nil, fmt.Errorf("embed batch: %w", err)
		}
	}
	return out, nil
}

func (s *Service) embedChunk(ctx context.Context, chunk []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*s.opts.Timeout)
	defer cancel()
	vecs, err := s.provider.CreateEmbedding(ctx, chunk)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(chunk) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrMalformedResponse, len(vecs), len(chunk))
	}
	return vecs, nil
}

// Sleep is the production SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
