package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"ragserver/internal/domain"
	"ragserver/internal/extract"
)

// Ingest runs one document through the full pipeline: persist the raw bytes
// under a collision-resistant name, extract plain text, chunk, embed all
// chunks in one batch, and store them under "{base}-{index}" ids. The saved
// file is not removed when a later stage fails.
func (s *Service) Ingest(ctx context.Context, filename string, content io.Reader) (IngestResult, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return IngestResult{}, fmt.Errorf("create upload dir: %w", err)
	}
	safeName := uuid.NewString() + "_" + filepath.Base(filename)
	path := filepath.Join(s.cfg.UploadDir, safeName)
	f, err := os.Create(path)
	if err != nil {
		return IngestResult{}, fmt.Errorf("save upload: %w", err)
	}
	written, err := io.Copy(f, content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return IngestResult{}, fmt.Errorf("save upload: %w", err)
	}
	slog.Info("saved upload", "filename", filename, "path", path, "bytes", written)

	text, err := extract.Text(path, filename)
	if err != nil {
		return IngestResult{}, fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		slog.Warn("no extractable text in upload", "filename", filename)
		return IngestResult{}, domain.Errorf(domain.InvalidInput, "no extractable text found in the uploaded file")
	}

	chunks := s.chunker.Split(text)
	if len(chunks) == 0 {
		slog.Warn("chunking produced no chunks", "filename", filename)
		return IngestResult{}, domain.Errorf(domain.InvalidInput, "document produced no valid chunks for embedding")
	}

	slog.Info("embedding chunks", "filename", filename, "count", len(chunks))
	vectors, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return IngestResult{}, fmt.Errorf("embed chunks: %w", err)
	}

	baseID := uuid.NewString()
	records := make([]domain.Record, len(chunks))
	for i, ch := range chunks {
		records[i] = domain.Record{
			ID: fmt.Sprintf("%s-%d", baseID, i),
			Chunk: domain.Chunk{
				Text:     ch,
				Index:    i,
				Filename: filename,
				Path:     path,
			},
			Vector: vectors[i],
		}
	}
	if err := s.store.Upsert(ctx, records); err != nil {
		return IngestResult{}, fmt.Errorf("store chunks: %w", err)
	}
	slog.Info("stored chunks", "filename", filename, "count", len(records), "id", baseID)
	return IngestResult{ID: baseID, Filename: filename, Chunks: len(chunks)}, nil
}

// IngestFile ingests a file already on disk, used by the terminal console.
func (s *Service) IngestFile(ctx context.Context, path string) (IngestResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return IngestResult{}, err
	}
	defer f.Close()
	return s.Ingest(ctx, filepath.Base(path), f)
}
