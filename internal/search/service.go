package search

import (
	"github.com/rs/zerolog"

	"taskdoc/internal/document"
)

// Service is the facade that tries Meilisearch first and falls back to the
// in-memory index, which is always kept current.
type Service struct {
	meili  *Meili
	memory *Memory
	log    zerolog.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, log zerolog.Logger) *Service {
	return &Service{meili: meili, memory: NewMemory(), log: log.With().Str("component", "search").Logger()}
}

// Search tries Meilisearch if healthy, otherwise falls back to the memory index.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.log.Warn().Err(err).Msg("meilisearch error, falling back to memory index")
	}

	results, total, err := s.memory.Search(q)
	if err != nil {
		s.log.Error().Err(err).Msg("memory search")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexDocument replaces the indexed snapshot with doc. The memory index is
// updated synchronously; Meilisearch is fire-and-forget.
func (s *Service) IndexDocument(doc *document.Document) {
	tasks, attachments := Records(doc)
	_ = s.memory.Replace(tasks, attachments)

	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.Replace(tasks, attachments); err != nil {
			s.log.Error().Err(err).Msg("index document")
		}
	}()
}

// Healthy reports whether the primary backend is reachable. The memory
// fallback keeps search working either way.
func (s *Service) Healthy() bool {
	return s.meili == nil || s.meili.Healthy()
}

// Close stops the Meilisearch health loop.
func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
