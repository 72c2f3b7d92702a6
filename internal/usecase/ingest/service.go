// Package ingest drives the indexing pipeline: convert, store, chunk,
// embed, index.
package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/motordesk/docindex/internal/chunk"
	"github.com/motordesk/docindex/internal/convert"
	"github.com/motordesk/docindex/internal/domain"
	"github.com/motordesk/docindex/internal/index"
	"github.com/motordesk/docindex/internal/logger"
	"github.com/motordesk/docindex/internal/metrics"
)

// Options tunes the embedding stage.
type Options struct {
	BatchSize    int           // chunks embedded between delays
	BatchDelay   time.Duration // pause between batches, rate-limit headroom
	Dimensions   int           // expected vector width, 0 disables the check
	MaxTextChars int           // cap passed to per-upload chunker overrides
}

// Request describes one upload.
type Request struct {
	Filename     string
	FileType     string
	DocumentType string // free-form label (price_list, specification, ...)
	Content      []byte
	SkipIndexing bool // store only, no chunk/embed/index pass
	ChunkSize    int  // per-upload override, 0 keeps the default chunker
	ChunkOverlap int
}

// Result summarizes one document's trip through the pipeline.
type Result struct {
	Filename         string          `json:"filename"`
	StoragePath      string          `json:"storagePath"`
	ConversionMethod string          `json:"conversionMethod"`
	Warning          string          `json:"warning,omitempty"`
	Metadata         domain.Metadata `json:"metadata"`
	ChunksIndexed    int             `json:"chunksIndexed"`
	ChunksFailed     int             `json:"chunksFailed"`
}

// ReindexResult summarizes a full rebuild.
type ReindexResult struct {
	Documents int `json:"documents"`
	Indexed   int `json:"indexed"`
	Failed    int `json:"failed"`
}

// Service handles document ingestion and reindexing.
type Service struct {
	converter Converter
	registry  Registry
	chunker   Chunker
	embedder  Embedder
	backends  []index.Backend
	opts      Options
}

// New creates an ingest service. Backends are addressed in the given order.
func New(
	converter Converter,
	registry Registry,
	chunker Chunker,
	embedder Embedder,
	backends []index.Backend,
	opts Options,
) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5
	}
	return &Service{
		converter: converter,
		registry:  registry,
		chunker:   chunker,
		embedder:  embedder,
		backends:  backends,
		opts:      opts,
	}
}

// Ingest converts and stores the upload, then indexes it into every backend.
// Conversion degradations are carried through as warnings, not failures.
func (s *Service) Ingest(ctx context.Context, req Request) (Result, error) {
	conv, err := s.converter.Convert(ctx, req.Filename, req.FileType, req.Content)
	if err != nil {
		return Result{}, fmt.Errorf("convert %s: %w", req.Filename, err)
	}

	doc := domain.Document{
		Data: conv.Data,
		Metadata: domain.Metadata{
			Filename:         req.Filename,
			FileType:         req.FileType,
			FileSize:         int64(len(req.Content)),
			DocumentType:     req.DocumentType,
			Source:           req.Filename,
			ConversionMethod: conv.ConversionMethod,
			Error:            conv.Warning,
			StoredAt:         time.Now().UTC(),
		},
	}

	path, err := s.registry.Store(ctx, req.Filename, doc)
	if err != nil {
		return Result{}, fmt.Errorf("store %s: %w", req.Filename, err)
	}

	res := Result{
		Filename:         req.Filename,
		StoragePath:      path,
		ConversionMethod: conv.ConversionMethod,
		Warning:          conv.Warning,
		Metadata:         doc.Metadata,
	}
	if req.SkipIndexing {
		return res, nil
	}
	res.ChunksIndexed, res.ChunksFailed = s.indexDocument(ctx, req.Filename, doc, s.chunkerFor(req))
	return res, nil
}

// chunkerFor returns the default chunker or a per-upload override.
func (s *Service) chunkerFor(req Request) Chunker {
	if req.ChunkSize <= 0 {
		return s.chunker
	}
	return chunk.NewSplitter(req.ChunkSize, req.ChunkOverlap, s.opts.MaxTextChars)
}

// Get loads one stored document.
func (s *Service) Get(ctx context.Context, filename string) (domain.Document, error) {
	return s.registry.Get(ctx, filename)
}

// indexDocument flattens, chunks, embeds and indexes one stored document.
// Individual chunk failures are skipped so one bad chunk cannot sink the rest.
func (s *Service) indexDocument(ctx context.Context, filename string, doc domain.Document, chunker Chunker) (indexed, failed int) {
	log := logger.FromContext(ctx)

	text := convert.ExtractText(doc.Data)
	if text == "" {
		return 0, 0
	}

	chunks := chunker.Split(text, filename, filename)
	if len(chunks) > 1 {
		// Document-level entries catch queries that span chunk boundaries.
		// Text beyond the embedding input window is sliced at raw offsets.
		for _, slice := range chunk.Offsets(text, chunk.MaxCharsPerEmbedding, 200) {
			chunks = append(chunks, domain.Chunk{
				Content: slice,
				Meta: domain.ChunkMeta{
					Filename: filename,
					Source:   filename,
					Section:  "document",
				},
			})
		}
	}

	entries := make([]domain.VectorEntry, 0, len(chunks))
	for i, chunk := range chunks {
		if i > 0 && i%s.opts.BatchSize == 0 && s.opts.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return indexed, failed + (len(chunks) - i)
			case <-time.After(s.opts.BatchDelay):
			}
		}

		emb, err := s.embedder.Embed(ctx, chunk.Content)
		if err != nil {
			log.Warn("Skipping chunk, embedding failed",
				zap.String("file", filename), zap.Int("chunk", i), zap.Error(err))
			failed++
			continue
		}
		if s.opts.Dimensions > 0 && len(emb.Embedding) != s.opts.Dimensions {
			log.Warn("Skipping chunk, unexpected embedding width",
				zap.String("file", filename), zap.Int("chunk", i),
				zap.Int("got", len(emb.Embedding)), zap.Int("want", s.opts.Dimensions))
			failed++
			continue
		}

		entries = append(entries, domain.VectorEntry{
			ID:        fmt.Sprintf("%s-%d", filename, i),
			Embedding: emb.Embedding,
			Content:   chunk.Content,
			Meta:      chunk.Meta,
		})
	}
	if len(entries) == 0 {
		return 0, failed
	}

	// Indexed reflects what actually reached a backend, not what was
	// embedded. With several backends the best result counts; a single
	// healthy backend is enough to serve searches.
	stored := 0
	for _, b := range s.backends {
		added, err := b.Add(ctx, entries)
		if err != nil {
			log.Error("Backend rejected entries",
				zap.String("backend", b.Name()), zap.String("file", filename), zap.Error(err))
			metrics.ChunksIndexedTotal.WithLabelValues(b.Name(), "failed").Add(float64(len(entries)))
			continue
		}
		metrics.ChunksIndexedTotal.WithLabelValues(b.Name(), "added").Add(float64(added))
		if added > stored {
			stored = added
		}
	}
	if len(s.backends) > 0 && stored < len(entries) {
		failed += len(entries) - stored
	}
	return stored, failed
}

// Reindex wipes resettable backends and rebuilds them from the registry.
func (s *Service) Reindex(ctx context.Context) (ReindexResult, error) {
	log := logger.FromContext(ctx)

	for _, b := range s.backends {
		if r, ok := b.(Resetter); ok {
			if err := r.Reset(ctx); err != nil {
				return ReindexResult{}, fmt.Errorf("reset %s: %w", b.Name(), err)
			}
		}
	}

	infos, err := s.registry.List(ctx)
	if err != nil {
		return ReindexResult{}, fmt.Errorf("list documents: %w", err)
	}

	res := ReindexResult{Documents: len(infos)}
	for _, info := range infos {
		doc, err := s.registry.Get(ctx, info.Filename)
		if err != nil {
			log.Warn("Skipping document during reindex", zap.String("file", info.Filename), zap.Error(err))
			res.Failed++
			continue
		}

		indexed, failed := s.indexDocument(ctx, info.Filename, doc, s.chunker)
		if indexed == 0 && failed > 0 {
			res.Failed++
			continue
		}
		res.Indexed++
	}
	return res, nil
}

// Delete removes the document from the registry and from every backend that
// supports per-document removal. Backends that cannot cascade keep stale
// vectors until the next reindex.
func (s *Service) Delete(ctx context.Context, filename string) error {
	if err := s.registry.Delete(ctx, filename); err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	for _, b := range s.backends {
		remover, ok := b.(index.Remover)
		if !ok || !b.CascadeDelete() {
			continue
		}
		if err := remover.Remove(ctx, filename); err != nil {
			log.Warn("Failed to remove vectors",
				zap.String("backend", b.Name()), zap.String("file", filename), zap.Error(err))
		}
	}
	return nil
}
