package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"
)

const (
	IngestLockKey  = "newsrag:ingest:lock"
	DefaultLockTTL = 10 * time.Minute
)

// Ingester runs one ingestion pass and reports how many articles were indexed.
type Ingester interface {
	IngestArticles(ctx context.Context) (int, error)
}

// Scheduler triggers ingestion on a cron schedule. When Rdb is set, a SETNX lock
// keeps replicas from ingesting at the same time.
type Scheduler struct {
	Ingester Ingester
	Rdb      redis.UniversalClient
	LockTTL  time.Duration
	Logger   *slog.Logger

	expr *cronexpr.Expression
	stop chan struct{}
	once sync.Once
	now  func() time.Time
}

// NewScheduler parses schedule (5-field cron, or @hourly/@daily style macros).
func NewScheduler(schedule string, ingester Ingester, rdb redis.UniversalClient, logger *slog.Logger) (*Scheduler, error) {
	expr, err := cronexpr.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("parse ingest schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		Ingester: ingester,
		Rdb:      rdb,
		LockTTL:  DefaultLockTTL,
		Logger:   logger.With("component", "scheduler"),
		expr:     expr,
		stop:     make(chan struct{}),
		now:      time.Now,
	}, nil
}

// Next is the first scheduled run strictly after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.expr.Next(t)
}

// Start runs the schedule in the background until ctx ends or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		for {
			next := s.Next(s.now())
			if next.IsZero() {
				s.Logger.Warn("ingest schedule has no future runs")
				return
			}
			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-s.stop:
				timer.Stop()
				return
			case <-timer.C:
				if _, err := s.tick(ctx); err != nil {
					s.Logger.Error("scheduled ingestion failed", "error", err)
				}
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
}

// tick runs one ingestion unless another replica holds the lock.
func (s *Scheduler) tick(ctx context.Context) (bool, error) {
	if s.Rdb != nil {
		ok, err := s.Rdb.SetNX(ctx, IngestLockKey, "1", s.LockTTL).Result()
		if err != nil {
			return false, fmt.Errorf("acquire ingest lock: %w", err)
		}
		if !ok {
			s.Logger.Info("ingestion already running elsewhere, skipping")
			return false, nil
		}
		defer s.Rdb.Del(context.WithoutCancel(ctx), IngestLockKey)
	}
	count, err := s.Ingester.IngestArticles(ctx)
	if err != nil {
		return true, err
	}
	s.Logger.Info("scheduled ingestion finished", "count", count)
	return true, nil
}
