package service

import (
	"context"
	"errors"

	"ragserver/internal/domain"
)

// fakes for the pipeline collaborators

type fakeEmbedder struct {
	batches [][]string
	vector  []float64
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	f.batches = append(f.batches, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		v := f.vector
		if v == nil {
			v = []float64{1, 0}
		}
		out[i] = v
	}
	return out, nil
}

type fakeStore struct {
	upserted []domain.Record
	results  []domain.SearchResult
	byMeta   map[string][]string
	metaErr  error
	queryErr error
}

func (f *fakeStore) Upsert(ctx context.Context, records []domain.Record) error {
	f.upserted = append(f.upserted, records...)
	return nil
}

func (f *fakeStore) Query(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if topK < len(f.results) {
		return f.results[:topK], nil
	}
	return f.results, nil
}

func (f *fakeStore) GetByMetadata(ctx context.Context, filter map[string]any) ([]string, error) {
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	key, _ := filter["filename"].(string)
	return f.byMeta[key], nil
}

type fakeGenerator struct {
	prompts   []string
	answer    string
	err       error
	deltas    []domain.Delta
	streamErr error
}

func (f *fakeGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeGenerator) Stream(ctx context.Context, prompt string) (<-chan domain.Delta, error) {
	f.prompts = append(f.prompts, prompt)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	ch := make(chan domain.Delta)
	go func() {
		defer close(ch)
		for _, d := range f.deltas {
			select {
			case ch <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

var errBoom = errors.New("boom")

func newTestService(emb *fakeEmbedder, store *fakeStore, gen *fakeGenerator, cfg Config) *Service {
	if cfg.PromptTemplate == "" {
		cfg.PromptTemplate = "CTX[{context}] Q[{question}]"
	}
	if cfg.MaxContextChars == 0 {
		cfg.MaxContextChars = 6000
	}
	return New(emb, store, gen, cfg)
}
