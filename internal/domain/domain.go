package domain

import "context"

// Document is the transient form of an upload while it moves through ingestion.
type Document struct {
	Filename string
	Path     string
	Text     string
}

// Chunk is a bounded window of a document's text, the unit of embedding and retrieval.
type Chunk struct {
	Text     string
	Index    int
	Filename string
	Path     string
}

// Record pairs a chunk with its embedding under a caller-supplied unique id.
// Ids are formed as "{base}-{chunk_index}" so upserts never collide.
type Record struct {
	ID     string
	Chunk  Chunk
	Vector []float64
}

// SearchResult is one retrieved chunk with its optional similarity score.
// Score is nil when the store cannot report one.
type SearchResult struct {
	Text       string
	Filename   string
	Path       string
	ChunkIndex int
	Score      *float64
}

// Source describes where part of an answer came from.
type Source struct {
	Filename string   `json:"filename"`
	Score    *float64 `json:"score"`
	Text     string   `json:"text"`
}

// Delta is a single increment of streamed model output. Err is set at most
// once, as the final element before the stream closes.
type Delta struct {
	Content string
	Err     error
}

// AnswerEvent is one element of a streamed answer: a content delta, an in-band
// error, or the terminal done marker carrying the sources used.
type AnswerEvent struct {
	Content string
	Err     string
	Done    bool
	Sources []Source
}

// Embedder converts a batch of texts into one vector per text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// VectorStore persists chunk records and supports similarity search plus an
// exact-match metadata lookup used as a recovery path.
type VectorStore interface {
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, vector []float64, topK int) ([]SearchResult, error)
	GetByMetadata(ctx context.Context, filter map[string]any) ([]string, error)
}

// Generator wraps the language model in blocking and streaming form.
// Stream's channel is closed after the final delta; a mid-stream failure is
// delivered as a Delta with Err set and then the channel closes.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Stream(ctx context.Context, prompt string) (<-chan Delta, error)
}
