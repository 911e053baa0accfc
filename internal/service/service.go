// Package service orchestrates the two pipelines of the system: document
// ingestion (save, extract, chunk, embed, store) and question answering
// (retrieve, assemble context, generate), the latter in blocking and
// streaming form.
package service

import (
	"strconv"
	"strings"

	"ragserver/internal/chunker"
	"ragserver/internal/domain"
)

// NoRelevantInfo is returned verbatim when retrieval finds nothing; the
// generator is not called in that case.
const NoRelevantInfo = "No relevant information found."

const (
	maxTopK        = 10
	maxAnswerChars = 4000
	previewChars   = 500
)

// Config carries the tunables of both pipelines.
type Config struct {
	UploadDir       string
	PromptTemplate  string
	MaxContextChars int
	ChunkSize       int
	ChunkOverlap    int
	DefaultTopK     int
}

// Service wires the pipeline components. Dependencies are injected so tests
// can substitute fakes.
type Service struct {
	chunker   *chunker.WindowChunker
	embedder  domain.Embedder
	store     domain.VectorStore
	generator domain.Generator
	cfg       Config
}

func New(embedder domain.Embedder, store domain.VectorStore, generator domain.Generator, cfg Config) *Service {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 3
	}
	return &Service{
		chunker:   chunker.NewWindowChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder:  embedder,
		store:     store,
		generator: generator,
		cfg:       cfg,
	}
}

// Answer is the blocking query result.
type Answer struct {
	Answer  string          `json:"answer"`
	Sources []domain.Source `json:"sources"`
}

// IngestResult acknowledges a stored document.
type IngestResult struct {
	ID       string
	Filename string
	Chunks   int
}

func (s *Service) clampTopK(n int) int {
	if n <= 0 {
		n = s.cfg.DefaultTopK
	}
	if n > maxTopK {
		n = maxTopK
	}
	return n
}

func (s *Service) fillPrompt(context, question string) string {
	return strings.NewReplacer("{context}", context, "{question}", question).Replace(s.cfg.PromptTemplate)
}

// truncateRunes cuts s to at most n characters.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// preview returns the first previewChars characters of text, with an ellipsis
// when it was cut.
func preview(text string) string {
	r := []rune(text)
	if len(r) <= previewChars {
		return text
	}
	return string(r[:previewChars]) + "..."
}

func sourceOf(r domain.SearchResult, i int, text string) domain.Source {
	return domain.Source{
		Filename: sourceLabel(r, i),
		Score:    r.Score,
		Text:     preview(text),
	}
}

func sourceLabel(r domain.SearchResult, i int) string {
	if r.Filename != "" {
		return r.Filename
	}
	if r.Path != "" {
		return r.Path
	}
	return "source-" + strconv.Itoa(i)
}
