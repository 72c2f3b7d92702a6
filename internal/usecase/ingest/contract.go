package ingest

import (
	"context"

	"github.com/motordesk/docindex/internal/convert"
	"github.com/motordesk/docindex/internal/domain"
)

// Converter normalizes uploaded files into canonical JSON.
type Converter interface {
	Convert(ctx context.Context, filename, fileType string, content []byte) (convert.Result, error)
}

// Registry is the document system of record.
type Registry interface {
	Store(ctx context.Context, filename string, doc domain.Document) (string, error)
	Get(ctx context.Context, filename string) (domain.Document, error)
	List(ctx context.Context) ([]domain.DocumentInfo, error)
	Delete(ctx context.Context, filename string) error
}

// Chunker splits flattened document text into overlapping chunks.
type Chunker interface {
	Split(text, filename, source string) []domain.Chunk
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Resetter is implemented by backends that can be wiped for a full reindex.
type Resetter interface {
	Reset(ctx context.Context) error
}
