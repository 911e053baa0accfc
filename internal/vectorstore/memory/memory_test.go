package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragserver/internal/domain"
)

func record(id, text, filename string, index int, vector []float64) domain.Record {
	return domain.Record{
		ID:     id,
		Chunk:  domain.Chunk{Text: text, Index: index, Filename: filename, Path: "uploads/" + filename},
		Vector: vector,
	}
}

func TestQueryRanksByCosine(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Upsert(ctx, []domain.Record{
		record("d-0", "east", "a.txt", 0, []float64{1, 0}),
		record("d-1", "north", "a.txt", 1, []float64{0, 1}),
		record("d-2", "northeast", "a.txt", 2, []float64{1, 1}),
	}))

	results, err := s.Query(ctx, []float64{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "east", results[0].Text)
	assert.Equal(t, "northeast", results[1].Text)
	assert.Equal(t, "north", results[2].Text)
	require.NotNil(t, results[0].Score)
	assert.InDelta(t, 1.0, *results[0].Score, 1e-9)
}

func TestQueryClampsTopK(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	var records []domain.Record
	for i := 0; i < 20; i++ {
		records = append(records, record(fmt.Sprintf("d-%d", i), "text", "a.txt", i, []float64{1, float64(i)}))
	}
	require.NoError(t, s.Upsert(ctx, records))

	results, err := s.Query(ctx, []float64{1, 0}, 50)
	require.NoError(t, err)
	assert.Len(t, results, 10)

	results, err = s.Query(ctx, []float64{1, 0}, 0)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestUpsertSameIDOverwrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Upsert(ctx, []domain.Record{record("d-0", "old", "a.txt", 0, []float64{1, 0})}))
	require.NoError(t, s.Upsert(ctx, []domain.Record{record("d-0", "new", "a.txt", 0, []float64{1, 0})}))

	results, err := s.Query(ctx, []float64{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new", results[0].Text)
}

func TestGetByMetadata(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Upsert(ctx, []domain.Record{
		record("d-0", "first chunk", "a.txt", 0, []float64{1, 0}),
		record("d-1", "second chunk", "a.txt", 1, []float64{0, 1}),
		record("e-0", "other file", "b.txt", 0, []float64{1, 1}),
	}))

	texts, err := s.GetByMetadata(ctx, map[string]any{"filename": "a.txt", "chunk_index": 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"second chunk"}, texts)

	texts, err = s.GetByMetadata(ctx, map[string]any{"filename": "missing.txt"})
	require.NoError(t, err)
	assert.Empty(t, texts)

	texts, err = s.GetByMetadata(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, texts)
}
