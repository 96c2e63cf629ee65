package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the news assistant.
type Config struct {
	General    GeneralConfig    `mapstructure:"general"`
	Server     ServerConfig     `mapstructure:"server"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Index      IndexConfig      `mapstructure:"index"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Session    SessionConfig    `mapstructure:"session"`
	Generation GenerationConfig `mapstructure:"generation"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	LogLevel       string        `mapstructure:"log_level"`
	LogFormat      string        `mapstructure:"log_format"` // text or json
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address     string        `mapstructure:"address"`
	FrontendURL string        `mapstructure:"frontend_url"`
	RateLimit   int           `mapstructure:"rate_limit"`
	RateWindow  time.Duration `mapstructure:"rate_window"`
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.Address) == "" {
		return fmt.Errorf("server.address required")
	}
	if s.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit cannot be negative")
	}
	if s.RateLimit > 0 && s.RateWindow <= 0 {
		return fmt.Errorf("server.rate_window must be > 0 when rate_limit is set")
	}
	return nil
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider    string `mapstructure:"provider"` // jina
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	Model       string `mapstructure:"model"`
	Dimensions  int    `mapstructure:"dimensions"`
	Retries     int    `mapstructure:"retries"`
	BatchSize   int    `mapstructure:"batch_size"`
	BatchIngest bool   `mapstructure:"batch_ingest"` // embed ingested articles in batches
}

func (e EmbeddingConfig) Validate() error {
	if e.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be > 0")
	}
	if e.Retries < 0 {
		return fmt.Errorf("embedding.retries cannot be negative")
	}
	if e.BatchSize <= 0 {
		return fmt.Errorf("embedding.batch_size must be > 0")
	}
	if strings.TrimSpace(e.Model) == "" {
		return fmt.Errorf("embedding.model required")
	}
	return nil
}

// IndexConfig selects and configures the vector index backend.
type IndexConfig struct {
	Backend    string       `mapstructure:"backend"` // qdrant, pgvector, inmemory
	Collection string       `mapstructure:"collection"`
	TopK       int          `mapstructure:"top_k"`
	Qdrant     QdrantConfig `mapstructure:"qdrant"`
}

// QdrantConfig contains Qdrant REST connection settings
type QdrantConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

func (i IndexConfig) Validate() error {
	switch i.Backend {
	case "qdrant":
		if strings.TrimSpace(i.Qdrant.URL) == "" {
			return fmt.Errorf("index.qdrant.url required for qdrant backend")
		}
	case "pgvector", "inmemory":
	default:
		return fmt.Errorf("index.backend %q unsupported (qdrant, pgvector, inmemory)", i.Backend)
	}
	if strings.TrimSpace(i.Collection) == "" {
		return fmt.Errorf("index.collection required")
	}
	if i.TopK <= 0 {
		return fmt.Errorf("index.top_k must be > 0")
	}
	return nil
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.URL) != "" {
		return nil
	}
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required when url is not provided")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required when url is not provided")
	}
	return nil
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a connection string from the discrete fields unless url is set.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// SessionConfig controls chat history retention.
type SessionConfig struct {
	Backend       string        `mapstructure:"backend"` // redis, inmemory
	TTL           time.Duration `mapstructure:"ttl"`
	HistoryWindow int           `mapstructure:"history_window"`
}

func (s SessionConfig) Validate() error {
	if s.Backend != "redis" && s.Backend != "inmemory" {
		return fmt.Errorf("session.backend %q unsupported (redis, inmemory)", s.Backend)
	}
	if s.TTL < time.Second {
		return fmt.Errorf("session.ttl must be at least one second")
	}
	if s.HistoryWindow < 0 {
		return fmt.Errorf("session.history_window cannot be negative")
	}
	return nil
}

// GenerationConfig configures the text generation provider.
type GenerationConfig struct {
	Provider    string   `mapstructure:"provider"` // gemini, openai
	APIKey      string   `mapstructure:"api_key"`
	BaseURL     string   `mapstructure:"base_url"`
	Model       string   `mapstructure:"model"`
	Temperature *float64 `mapstructure:"temperature"` // nil keeps the model default
	MaxTokens   int      `mapstructure:"max_tokens"`
}

func (g GenerationConfig) Validate() error {
	if g.Provider != "gemini" && g.Provider != "openai" {
		return fmt.Errorf("generation.provider %q unsupported (gemini, openai)", g.Provider)
	}
	if strings.TrimSpace(g.Model) == "" {
		return fmt.Errorf("generation.model required")
	}
	if g.Temperature != nil && (*g.Temperature < 0 || *g.Temperature > 2) {
		return fmt.Errorf("generation.temperature must be within [0, 2]")
	}
	return nil
}

// IngestConfig contains feed sources and crawl bounds.
type IngestConfig struct {
	Sources          []string `mapstructure:"sources"`
	Limit            int      `mapstructure:"limit"`
	MaxFallbackLinks int      `mapstructure:"max_fallback_links"`
	SnippetChars     int      `mapstructure:"snippet_chars"`
	Fetcher          string   `mapstructure:"fetcher"`  // http, chromedp
	Schedule         string   `mapstructure:"schedule"` // cron expression, empty disables
	OnStartup        bool     `mapstructure:"on_startup"`
}

func (i IngestConfig) Validate() error {
	if i.Limit < 0 {
		return fmt.Errorf("ingest.limit cannot be negative")
	}
	if i.MaxFallbackLinks < 0 {
		return fmt.Errorf("ingest.max_fallback_links cannot be negative")
	}
	if i.SnippetChars <= 0 {
		return fmt.Errorf("ingest.snippet_chars must be > 0")
	}
	if i.Fetcher != "http" && i.Fetcher != "chromedp" {
		return fmt.Errorf("ingest.fetcher %q unsupported (http, chromedp)", i.Fetcher)
	}
	return nil
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && !strings.HasPrefix(t.MetricsPath, "/") {
		return fmt.Errorf("telemetry.metrics_path must start with / when telemetry is enabled")
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	validators := []func() error{
		c.Server.Validate,
		c.Embedding.Validate,
		c.Index.Validate,
		c.Session.Validate,
		c.Generation.Validate,
		c.Ingest.Validate,
		c.Telemetry.Validate,
	}
	if c.Session.Backend == "redis" || c.Ingest.Schedule != "" {
		validators = append(validators, c.Storage.Redis.Validate)
	}
	if c.Index.Backend == "pgvector" {
		validators = append(validators, c.Storage.Postgres.Validate)
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	if c.General.RequestTimeout <= 0 {
		return fmt.Errorf("general.request_timeout must be > 0")
	}
	return nil
}

// Load reads config from path (or the default search paths when empty),
// overlays NEWSRAG_* environment variables and validates the result.
// A missing config file is not an error; defaults and env apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	SetDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("NEWSRAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !asNotFound(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Ingest.Sources = normalizeSources(cfg.Ingest.Sources)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func asNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	nf, ok := err.(viper.ConfigFileNotFoundError)
	if ok {
		*target = nf
	}
	return ok
}

// normalizeSources trims entries and drops blanks; duplicates are kept
// because the ingestion run dedupes by article URL, not by source.
func normalizeSources(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
