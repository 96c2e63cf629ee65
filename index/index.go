// Package index defines the vector similarity index used for article retrieval.
package index

import (
	"context"
	"errors"

	"github.com/mohammad-safakhou/newsrag/models"
)

const (
	DefaultCollection = "news_articles"
	DefaultDimensions = 1024
)

var ErrUnsupportedBackend = errors.New("unsupported index backend")

// Point is one indexed article. Upserting a Point replaces any point with the same ID.
type Point struct {
	ID      string
	Vector  []float32
	Payload models.Article
}

// ScoredPoint is a search hit. Payload is nil when the search did not request it.
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload *models.Article
}

// Gateway is the typed contract over a cosine-similarity vector store.
type Gateway interface {
	// EnsureCollection creates the collection when absent; calling it again is a no-op.
	EnsureCollection(ctx context.Context) error
	// Upsert stores points and returns once they are searchable.
	Upsert(ctx context.Context, points []Point) error
	// Search returns at most limit hits, most similar first.
	Search(ctx context.Context, vector []float32, limit int, withPayload bool) ([]ScoredPoint, error)
}

type BackendType string

const (
	QdrantBackend   BackendType = "qdrant"
	PgvectorBackend BackendType = "pgvector"
	InMemoryBackend BackendType = "inmemory"
)
