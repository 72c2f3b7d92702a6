// Package retrieval answers queries by walking the configured index
// backends in order and falling back to a registry keyword scan when none
// of them can serve.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/motordesk/docindex/internal/convert"
	"github.com/motordesk/docindex/internal/domain"
	"github.com/motordesk/docindex/internal/index"
	"github.com/motordesk/docindex/internal/logger"
)

// maxSnippetChars caps result content so responses stay chat-sized.
const maxSnippetChars = 800

const keywordBackendName = "keyword-fallback"

// Hit is one ranked search result.
type Hit struct {
	Content string           `json:"content"`
	Score   float64          `json:"score"`
	Source  string           `json:"source"`
	Meta    domain.ChunkMeta `json:"metadata"`
}

// Response is a complete answer to a query.
type Response struct {
	Query   string `json:"query"`
	Backend string `json:"backend"` // which backend actually served
	Hits    []Hit  `json:"results"`
	TookMS  int64  `json:"processing_time_ms"`
}

// Service handles retrieval across the ordered backend chain.
type Service struct {
	embedder Embedder
	backends []index.Backend
	fallback KeywordFallback
	topK     int
}

// New creates a retrieval service. Backends are consulted in the given
// order; the first to return hits wins.
func New(embedder Embedder, backends []index.Backend, fallback KeywordFallback, defaultTopK int) *Service {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &Service{
		embedder: embedder,
		backends: backends,
		fallback: fallback,
		topK:     defaultTopK,
	}
}

// Search embeds the query once, then tries each backend in order. A backend
// error or empty result moves on to the next; the keyword fallback is the
// last resort. ErrNoDocumentsIndexed surfaces only when nothing anywhere can
// serve the query.
func (s *Service) Search(ctx context.Context, query string, topK int) (Response, error) {
	if query == "" {
		return Response{}, fmt.Errorf("query is required: %w", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = s.topK
	}
	start := time.Now()

	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return Response{}, fmt.Errorf("vectorize query: %w", err)
	}

	log := logger.FromContext(ctx)
	empty := 0

	for _, b := range s.backends {
		matches, err := b.Search(ctx, emb.Embedding, topK)
		if err != nil {
			if errors.Is(err, domain.ErrNoDocumentsIndexed) {
				empty++
			} else {
				log.Warn("Backend search failed, trying next",
					zap.String("backend", b.Name()), zap.Error(err))
			}
			continue
		}
		if len(matches) == 0 {
			empty++
			continue
		}
		return Response{
			Query:   query,
			Backend: b.Name(),
			Hits:    hitsFromMatches(matches),
			TookMS:  time.Since(start).Milliseconds(),
		}, nil
	}

	hits, err := s.keywordHits(ctx, query, topK)
	if err != nil {
		log.Warn("Keyword fallback failed", zap.Error(err))
	}
	if len(hits) > 0 {
		return Response{Query: query, Backend: keywordBackendName, Hits: hits,
			TookMS: time.Since(start).Milliseconds()}, nil
	}

	if empty == len(s.backends) {
		return Response{}, domain.ErrNoDocumentsIndexed
	}
	// Some backends failed outright and nothing else served. This is an
	// outage, not a legitimate empty match.
	return Response{}, domain.ErrIndexUnavailable
}

func (s *Service) keywordHits(ctx context.Context, query string, limit int) ([]Hit, error) {
	if s.fallback == nil {
		return nil, nil
	}
	docs, err := s.fallback.FindRelevant(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(docs))
	for _, doc := range docs {
		hits = append(hits, Hit{
			Content: truncate(convert.ExtractText(doc.Data)),
			Source:  doc.Metadata.Filename,
			Meta:    domain.ChunkMeta{Filename: doc.Metadata.Filename, Source: doc.Metadata.Source},
		})
	}
	return hits, nil
}

func hitsFromMatches(matches []index.Match) []Hit {
	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, Hit{
			Content: truncate(m.Entry.Content),
			Score:   m.Score,
			Source:  m.Entry.Meta.Source,
			Meta:    m.Entry.Meta,
		})
	}
	return hits
}

func truncate(s string) string {
	if len(s) <= maxSnippetChars {
		return s
	}
	return s[:maxSnippetChars] + "..."
}
