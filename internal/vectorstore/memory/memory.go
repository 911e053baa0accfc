package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"ragserver/internal/domain"
)

const maxTopK = 10

// Store is an in-memory vector store using brute-force cosine similarity.
// It backs the terminal console and tests; the production store is Qdrant.
type Store struct {
	mu      sync.RWMutex
	records map[string]domain.Record
	order   []string
}

func NewStore() *Store {
	return &Store{records: make(map[string]domain.Record)}
}

func (s *Store) Upsert(ctx context.Context, records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if _, exists := s.records[r.ID]; !exists {
			s.order = append(s.order, r.ID)
		}
		s.records[r.ID] = r
	}
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 3
	}
	if topK > maxTopK {
		topK = maxTopK
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	type scored struct {
		rec   domain.Record
		score float64
	}
	scores := make([]scored, 0, len(s.order))
	for _, id := range s.order {
		r := s.records[id]
		scores = append(scores, scored{rec: r, score: cosine(r.Vector, vector)})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if topK > len(scores) {
		topK = len(scores)
	}
	results := make([]domain.SearchResult, 0, topK)
	for _, sc := range scores[:topK] {
		score := sc.score
		results = append(results, domain.SearchResult{
			Text:       sc.rec.Chunk.Text,
			Filename:   sc.rec.Chunk.Filename,
			Path:       sc.rec.Chunk.Path,
			ChunkIndex: sc.rec.Chunk.Index,
			Score:      &score,
		})
	}
	return results, nil
}

func (s *Store) GetByMetadata(ctx context.Context, filter map[string]any) ([]string, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var texts []string
	for _, id := range s.order {
		r := s.records[id]
		if matches(r.Chunk, filter) {
			texts = append(texts, r.Chunk.Text)
		}
	}
	return texts, nil
}

func matches(ch domain.Chunk, filter map[string]any) bool {
	for k, v := range filter {
		switch k {
		case "filename":
			if s, ok := v.(string); !ok || s != ch.Filename {
				return false
			}
		case "path":
			if s, ok := v.(string); !ok || s != ch.Path {
				return false
			}
		case "chunk_index":
			if i, ok := v.(int); !ok || i != ch.Index {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
