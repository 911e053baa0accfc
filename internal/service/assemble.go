package service

import (
	"context"
	"fmt"
	"log/slog"

	"ragserver/internal/domain"
)

// snippet is one budgeted piece of context together with the source entry it
// contributes to a streamed answer.
type snippet struct {
	Text   string
	Label  string
	Source domain.Source
}

// assemble walks results in rank order and takes characters from each until
// the budget is spent. Chunks are truncated at the tail, never the head, and
// a chunk that no longer fits at all is dropped along with everything after
// it. Results with empty text get one recovery attempt through the store's
// metadata lookup before being skipped. The total across returned snippets
// never exceeds budget.
func (s *Service) assemble(ctx context.Context, results []domain.SearchResult, budget int) ([]snippet, int) {
	consumed := 0
	var snippets []snippet
	for i, r := range results {
		if budget-consumed <= 0 {
			break
		}
		text := r.Text
		if text == "" {
			text = s.metadataFallback(ctx, r)
		}
		if text == "" {
			continue
		}
		runes := []rune(text)
		if remaining := budget - consumed; len(runes) > remaining {
			runes = runes[:remaining]
		}
		snippets = append(snippets, snippet{
			Text:   string(runes),
			Label:  fmt.Sprintf("Source %d (%s)", i+1, sourceLabel(r, i)),
			Source: sourceOf(r, i, text),
		})
		consumed += len(runes)
	}
	return snippets, consumed
}

// metadataFallback re-reads a chunk's text by exact metadata match. This is a
// best-effort recovery branch; lookup failures are logged and treated as a
// miss rather than failing the whole retrieval.
func (s *Service) metadataFallback(ctx context.Context, r domain.SearchResult) string {
	filter := map[string]any{"chunk_index": r.ChunkIndex}
	if r.Filename != "" {
		filter["filename"] = r.Filename
	}
	texts, err := s.store.GetByMetadata(ctx, filter)
	if err != nil {
		slog.Debug("fallback fetch from store failed", "error", err)
		return ""
	}
	if len(texts) == 0 {
		return ""
	}
	return texts[0]
}
