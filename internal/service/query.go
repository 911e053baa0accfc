package service

import (
	"context"
	"fmt"
	"strings"

	"ragserver/internal/domain"
)

func (s *Service) retrieve(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.store.Query(ctx, vectors[0], s.clampTopK(topK))
}

// Query answers a question in blocking mode: retrieve, stuff the budgeted
// context into the prompt template, run one completion, and cap the answer
// length. When retrieval comes back empty the generator is skipped entirely.
func (s *Service) Query(ctx context.Context, query string, topK int) (Answer, error) {
	results, err := s.retrieve(ctx, query, topK)
	if err != nil {
		return Answer{}, err
	}
	if len(results) == 0 {
		return Answer{Answer: NoRelevantInfo, Sources: []domain.Source{}}, nil
	}

	snippets, _ := s.assemble(ctx, results, s.cfg.MaxContextChars)
	parts := make([]string, len(snippets))
	for i, sn := range snippets {
		parts[i] = sn.Text
	}
	prompt := s.fillPrompt(strings.Join(parts, "\n\n"), query)

	answer, err := s.generator.Complete(ctx, prompt)
	if err != nil {
		return Answer{}, fmt.Errorf("llm request failed: %w", err)
	}

	sources := make([]domain.Source, len(results))
	for i, r := range results {
		sources[i] = sourceOf(r, i, r.Text)
	}
	return Answer{
		Answer:  truncateRunes(strings.TrimSpace(answer), maxAnswerChars),
		Sources: sources,
	}, nil
}

// QueryStream answers a question as an ordered event sequence: content deltas
// as the model emits them, then exactly one done event carrying the sources
// that made it into the context. Failures before the stream starts are
// returned as an error; anything after becomes an in-band error event and the
// stream ends with no done event.
func (s *Service) QueryStream(ctx context.Context, query string, topK int) (<-chan domain.AnswerEvent, error) {
	results, err := s.retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	events := make(chan domain.AnswerEvent)
	if len(results) == 0 {
		go func() {
			defer close(events)
			emit(ctx, events, domain.AnswerEvent{Content: NoRelevantInfo})
		}()
		return events, nil
	}

	snippets, _ := s.assemble(ctx, results, s.cfg.MaxContextChars)
	parts := make([]string, len(snippets))
	sources := make([]domain.Source, len(snippets))
	for i, sn := range snippets {
		parts[i] = sn.Label + ":\n" + sn.Text
		sources[i] = sn.Source
	}
	prompt := s.fillPrompt(strings.Join(parts, "\n\n"), query)

	deltas, err := s.generator.Stream(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	go func() {
		defer close(events)
		for d := range deltas {
			if d.Err != nil {
				emit(ctx, events, domain.AnswerEvent{Err: d.Err.Error()})
				return
			}
			if !emit(ctx, events, domain.AnswerEvent{Content: d.Content}) {
				return
			}
		}
		emit(ctx, events, domain.AnswerEvent{Done: true, Sources: sources})
	}()
	return events, nil
}

// ChatStream streams an unconstrained answer to the raw query, with no
// retrieval and no sources: content and error events only.
func (s *Service) ChatStream(ctx context.Context, query string) (<-chan domain.AnswerEvent, error) {
	deltas, err := s.generator.Stream(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	events := make(chan domain.AnswerEvent)
	go func() {
		defer close(events)
		for d := range deltas {
			if d.Err != nil {
				emit(ctx, events, domain.AnswerEvent{Err: d.Err.Error()})
				return
			}
			if !emit(ctx, events, domain.AnswerEvent{Content: d.Content}) {
				return
			}
		}
	}()
	return events, nil
}

func emit(ctx context.Context, ch chan<- domain.AnswerEvent, ev domain.AnswerEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
