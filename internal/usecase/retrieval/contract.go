package retrieval

import (
	"context"

	"github.com/motordesk/docindex/internal/domain"
)

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// KeywordFallback serves queries when every vector backend comes up empty.
type KeywordFallback interface {
	FindRelevant(ctx context.Context, query string, limit int) ([]domain.Document, error)
}
