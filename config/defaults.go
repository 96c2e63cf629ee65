package config

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultSources is the feed list used when ingest.sources is not configured.
// The BBC feed appears twice; a run dedupes articles by URL so the repeat is harmless.
var DefaultSources = []string{
	"https://feeds.bbci.co.uk/news/rss.xml",
	"https://www.theguardian.com/world/rss",
	"https://rss.cnn.com/rss/edition.rss",
	"https://www.aljazeera.com/xml/rss/all.xml",
	"https://feeds.bbci.co.uk/news/rss.xml",
	"https://feeds.reuters.com/reuters/worldNews",
}

const (
	DefaultRequestTimeout   = 15 * time.Second
	DefaultEmbeddingDim     = 1024
	DefaultEmbeddingRetries = 3
	DefaultBatchSize        = 16
	DefaultTopK             = 5
	DefaultSessionTTL       = 3600 * time.Second
	DefaultHistoryWindow    = 6
	DefaultIngestLimit      = 50
	DefaultMaxFallbackLinks = 20
	DefaultSnippetChars     = 400
	DefaultCollection       = "news_articles"
)

// SetDefaults registers every configuration key with its default value.
// Keys must be registered here for NEWSRAG_* environment overrides to apply.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.log_format", "text")
	v.SetDefault("general.request_timeout", DefaultRequestTimeout)

	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.frontend_url", "http://localhost:5173")
	v.SetDefault("server.rate_limit", 100)
	v.SetDefault("server.rate_window", 15*time.Minute)

	v.SetDefault("embedding.provider", "jina")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "https://api.jina.ai/v1")
	v.SetDefault("embedding.model", "jina-embeddings-v2-base-en")
	v.SetDefault("embedding.dimensions", DefaultEmbeddingDim)
	v.SetDefault("embedding.retries", DefaultEmbeddingRetries)
	v.SetDefault("embedding.batch_size", DefaultBatchSize)
	v.SetDefault("embedding.batch_ingest", false)

	v.SetDefault("index.backend", "qdrant")
	v.SetDefault("index.collection", DefaultCollection)
	v.SetDefault("index.top_k", DefaultTopK)
	v.SetDefault("index.qdrant.url", "http://localhost:6333")
	v.SetDefault("index.qdrant.api_key", "")

	v.SetDefault("storage.redis.url", "")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.timeout", 5*time.Second)

	v.SetDefault("storage.postgres.url", "")
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", "5432")
	v.SetDefault("storage.postgres.user", "newsrag")
	v.SetDefault("storage.postgres.password", "")
	v.SetDefault("storage.postgres.dbname", "newsrag")
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("storage.postgres.timeout", 5*time.Second)

	v.SetDefault("session.backend", "redis")
	v.SetDefault("session.ttl", DefaultSessionTTL)
	v.SetDefault("session.history_window", DefaultHistoryWindow)

	v.SetDefault("generation.provider", "gemini")
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.base_url", "")
	v.SetDefault("generation.model", "gemini-1.5-flash")
	// No default: an unset temperature leaves the model default in place.
	_ = v.BindEnv("generation.temperature")
	v.SetDefault("generation.max_tokens", 1024)

	v.SetDefault("ingest.sources", DefaultSources)
	v.SetDefault("ingest.limit", DefaultIngestLimit)
	v.SetDefault("ingest.max_fallback_links", DefaultMaxFallbackLinks)
	v.SetDefault("ingest.snippet_chars", DefaultSnippetChars)
	v.SetDefault("ingest.fetcher", "http")
	v.SetDefault("ingest.schedule", "")
	v.SetDefault("ingest.on_startup", false)

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.metrics_path", "/metrics")
}
