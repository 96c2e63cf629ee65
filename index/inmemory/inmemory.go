package inmemory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/mohammad-safakhou/newsrag/index"
)

// Gateway is a brute-force cosine index held in process memory.
type Gateway struct {
	mu         sync.RWMutex
	dimensions int
	order      []string
	points     map[string]index.Point
}

func New(dimensions int) *Gateway {
	return &Gateway{dimensions: dimensions, points: make(map[string]index.Point)}
}

func (g *Gateway) EnsureCollection(context.Context) error { return nil }

func (g *Gateway) Upsert(_ context.Context, points []index.Point) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range points {
		if g.dimensions > 0 && len(p.Vector) != g.dimensions {
			return fmt.Errorf("point %s: vector length %d, collection expects %d", p.ID, len(p.Vector), g.dimensions)
		}
		if _, ok := g.points[p.ID]; !ok {
			g.order = append(g.order, p.ID)
		}
		p.Vector = append([]float32(nil), p.Vector...)
		g.points[p.ID] = p
	}
	return nil
}

func (g *Gateway) Search(_ context.Context, vector []float32, limit int, withPayload bool) ([]index.ScoredPoint, error) {
	if limit <= 0 {
		return nil, nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	hits := make([]index.ScoredPoint, 0, len(g.order))
	for _, id := range g.order {
		p := g.points[id]
		hit := index.ScoredPoint{ID: id, Score: Cosine(vector, p.Vector)}
		if withPayload {
			payload := p.Payload
			hit.Payload = &payload
		}
		hits = append(hits, hit)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Len reports the number of stored points.
func (g *Gateway) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.points)
}

// Cosine returns the cosine similarity of a and b, or 0 when either is zero or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
