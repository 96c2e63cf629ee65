package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/lib/pq"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/mohammad-safakhou/newsrag/index"
	"github.com/mohammad-safakhou/newsrag/models"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store keeps articles and their embeddings in one Postgres table with a
// vector(dim) column; similarity is 1 - cosine distance.
type Store struct {
	DB         *sql.DB
	table      string
	dimensions int
	logger     *slog.Logger
}

// Open connects with lib/pq and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func New(db *sql.DB, collection string, dimensions int, logger *slog.Logger) (*Store, error) {
	if !identPattern.MatchString(collection) {
		return nil, fmt.Errorf("collection %q is not a valid table name", collection)
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be > 0")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		DB:         db,
		table:      pq.QuoteIdentifier(collection),
		dimensions: dimensions,
		logger:     logger.With("component", "pgvector"),
	}, nil
}

func (s *Store) EnsureCollection(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create extension: %w", err)
	}
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  content TEXT NOT NULL DEFAULT '',
  url TEXT NOT NULL,
  publish_date TEXT NOT NULL DEFAULT '',
  source TEXT NOT NULL DEFAULT '',
  embedding vector(%d) NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, s.table, s.dimensions)
	if _, err := s.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, points []index.Point) error {
	if len(points) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
INSERT INTO %s (id, title, content, url, publish_date, source, embedding, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7::vector,NOW())
ON CONFLICT (id) DO UPDATE SET
  title = EXCLUDED.title,
  content = EXCLUDED.content,
  url = EXCLUDED.url,
  publish_date = EXCLUDED.publish_date,
  source = EXCLUDED.source,
  embedding = EXCLUDED.embedding,
  updated_at = NOW();
`, s.table))
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if len(p.Vector) == 0 {
			return fmt.Errorf("point %s: embedding vector required", p.ID)
		}
		a := p.Payload
		if _, err := stmt.ExecContext(ctx, p.ID, a.Title, a.Content, a.URL, a.PublishDate, a.Source, pgv.NewVector(p.Vector)); err != nil {
			return fmt.Errorf("upsert point %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float32, limit int, withPayload bool) ([]index.ScoredPoint, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector must not be empty")
	}
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
SELECT id, title, content, url, publish_date, source, 1 - (embedding <=> $1::vector) AS score
FROM %s
ORDER BY embedding <=> $1::vector
LIMIT $2
`, s.table), pgv.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var out []index.ScoredPoint
	for rows.Next() {
		var (
			a     models.Article
			score float64
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.URL, &a.PublishDate, &a.Source, &score); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		hit := index.ScoredPoint{ID: a.ID, Score: score}
		if withPayload {
			payload := a
			hit.Payload = &payload
		}
		out = append(out, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
