// Package server wires the news assistant together and serves it over HTTP
// and websockets.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/mohammad-safakhou/newsrag/config"
	"github.com/mohammad-safakhou/newsrag/engine"
	"github.com/mohammad-safakhou/newsrag/index"
	index_inmemory "github.com/mohammad-safakhou/newsrag/index/inmemory"
	"github.com/mohammad-safakhou/newsrag/index/pgvector"
	"github.com/mohammad-safakhou/newsrag/index/qdrant"
	"github.com/mohammad-safakhou/newsrag/internal/chatbot"
	"github.com/mohammad-safakhou/newsrag/internal/telemetry"
	"github.com/mohammad-safakhou/newsrag/news"
	"github.com/mohammad-safakhou/newsrag/provider"
	"github.com/mohammad-safakhou/newsrag/repository/redis_repository"
	"github.com/mohammad-safakhou/newsrag/session"
	session_inmemory "github.com/mohammad-safakhou/newsrag/session/inmemory"
	redis_session "github.com/mohammad-safakhou/newsrag/session/redis"
	"github.com/mohammad-safakhou/newsrag/tools/embedding"
	"github.com/mohammad-safakhou/newsrag/tools/embedding/jina"
	"github.com/mohammad-safakhou/newsrag/tools/web_fetch"
)

const shutdownTimeout = 10 * time.Second

// App holds the long-lived components of a running service.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
	Chatbot *chatbot.Chatbot
	Hub     *Hub
	Redis   *redis.Client
	DB      *sql.DB
}

// Build connects the configured backends and assembles the chatbot.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}
	if cfg.Telemetry.Enabled {
		app.Metrics = telemetry.New()
	}

	if cfg.Session.Backend == string(session.RedisStore) || cfg.Ingest.Schedule != "" {
		rdb, err := redis_repository.Conn(ctx, cfg.Storage.Redis, logger)
		if err != nil {
			return nil, err
		}
		app.Redis = rdb
	}

	var sessions session.Store
	switch session.StoreType(cfg.Session.Backend) {
	case session.RedisStore:
		sessions = redis_session.NewRedisSessionStore(app.Redis)
	case session.InMemoryStore:
		sessions = session_inmemory.NewInMemorySessionStore()
	default:
		app.Close()
		return nil, fmt.Errorf("unsupported session backend %q", cfg.Session.Backend)
	}

	gateway, err := app.buildIndex(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	if cfg.Embedding.Provider != "" && cfg.Embedding.Provider != "jina" {
		app.Close()
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Embedding.Provider)
	}
	embedder := embedding.NewService(
		jina.NewClient(cfg.Embedding.APIKey, cfg.Embedding.BaseURL, cfg.Embedding.Model),
		embedding.Options{
			Retries:   cfg.Embedding.Retries,
			BatchSize: cfg.Embedding.BatchSize,
			Timeout:   cfg.General.RequestTimeout,
		},
		logger, app.Metrics,
	)

	generator, err := provider.NewProvider(ctx, cfg.Generation, cfg.General.RequestTimeout, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("generation provider: %w", err)
	}

	fetcher, err := web_fetch.NewFetcher(web_fetch.FetcherType(cfg.Ingest.Fetcher), cfg.General.RequestTimeout, 0)
	if err != nil {
		app.Close()
		return nil, err
	}
	scraper := news.NewScraper(fetcher, news.Options{
		MaxFallbackLinks: cfg.Ingest.MaxFallbackLinks,
		SnippetChars:     cfg.Ingest.SnippetChars,
	}, logger)

	app.Hub = NewHub(cfg.Server.FrontendURL, logger, app.Metrics)
	bot, err := chatbot.New(chatbot.Deps{
		Sessions: sessions,
		Embedder: embedder,
		Index:    gateway,
		Provider: generator,
		Scraper:  scraper,
		Notifier: app.Hub,
		Logger:   logger,
		Metrics:  app.Metrics,
	}, chatbot.Options{
		TopK:          cfg.Index.TopK,
		HistoryWindow: cfg.Session.HistoryWindow,
		SessionTTL:    cfg.Session.TTL,
		Sources:       cfg.Ingest.Sources,
		IngestLimit:   cfg.Ingest.Limit,
		BatchEmbed:    cfg.Embedding.BatchIngest,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Chatbot = bot
	app.Hub.Attach(bot)
	return app, nil
}

func (a *App) buildIndex(ctx context.Context) (index.Gateway, error) {
	cfg := a.Config
	dims := cfg.Embedding.Dimensions
	switch index.BackendType(cfg.Index.Backend) {
	case index.QdrantBackend:
		return qdrant.NewClient(cfg.Index.Qdrant.URL, cfg.Index.Qdrant.APIKey, cfg.Index.Collection, dims, a.Logger), nil
	case index.PgvectorBackend:
		db, err := pgvector.Open(ctx, cfg.Storage.Postgres.DSN())
		if err != nil {
			return nil, err
		}
		a.DB = db
		store, err := pgvector.New(db, cfg.Index.Collection, dims, a.Logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case index.InMemoryBackend:
		return index_inmemory.New(dims), nil
	default:
		return nil, fmt.Errorf("%w: %q", index.ErrUnsupportedBackend, cfg.Index.Backend)
	}
}

// Close releases database and redis connections.
func (a *App) Close() error {
	var errs []error
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	return errors.Join(errs...)
}

// lockClient avoids handing a typed nil to the scheduler.
func (a *App) lockClient() redis.UniversalClient {
	if a.Redis == nil {
		return nil
	}
	return a.Redis
}

// Echo builds the HTTP surface: JSON API, metrics and the websocket endpoint.
func (a *App) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = errorHandler(a.Logger)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			a.Logger.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
			)
			return nil
		},
	}))
	origins := []string{"*"}
	if a.Config.Server.FrontendURL != "" {
		origins = []string{a.Config.Server.FrontendURL}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType},
		AllowCredentials: true,
	}))

	var apiMiddleware []echo.MiddlewareFunc
	if a.Config.Server.RateLimit > 0 {
		apiMiddleware = append(apiMiddleware, rateLimiter(a.Config.Server))
	}
	engine.NewServer(a.Chatbot, a.Logger).Register(e.Group("/api", apiMiddleware...))
	registerDocs(e)

	if a.Metrics != nil {
		e.GET(a.Config.Telemetry.MetricsPath, echo.WrapHandler(a.Metrics.Handler()))
	}
	e.GET("/ws", echo.WrapHandler(a.Hub.Handler()))
	return e
}

func rateLimiter(cfg config.ServerConfig) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(cfg.RateLimit) / cfg.RateWindow.Seconds()),
		Burst:     cfg.RateLimit,
		ExpiresIn: cfg.RateWindow,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Too many requests from this IP, please try again later.",
			})
		},
	})
}

func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Warn("http error", "status", code, "method", req.Method, "path", req.URL.Path, "remote_ip", c.RealIP(), "error", err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
}

// Run starts the service and blocks until ctx is cancelled or the listener fails.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	app, err := Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Chatbot.Initialize(ctx); err != nil {
		logger.Error("vector collection setup failed, continuing", "error", err)
	}
	if cfg.Ingest.OnStartup {
		go func() {
			if _, err := app.Chatbot.IngestArticles(ctx); err != nil {
				logger.Error("startup ingestion failed", "error", err)
			}
		}()
	}
	if cfg.Ingest.Schedule != "" {
		sched, err := NewScheduler(cfg.Ingest.Schedule, app.Chatbot, app.lockClient(), logger)
		if err != nil {
			return err
		}
		sched.Start(ctx)
		defer sched.Stop()
		logger.Info("ingestion scheduled", "schedule", cfg.Ingest.Schedule, "next", sched.Next(time.Now()))
	}

	e := app.Echo()
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Address)
		errCh <- e.Start(cfg.Server.Address)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	}
}
