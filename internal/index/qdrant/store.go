// Package qdrant backs the index contract with a managed Qdrant collection.
package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/motordesk/docindex/internal/domain"
	"github.com/motordesk/docindex/internal/index"
)

// Config holds connection and collection settings.
type Config struct {
	Host       string
	Port       int
	Collection string
	Dimensions int
}

// Store is the Qdrant-backed index.
type Store struct {
	client     *qdrant.Client
	collection string
	dimensions int
}

// New connects to Qdrant, waits for it to become healthy and ensures the
// collection exists with cosine distance at the configured dimensionality.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host,
		Port: cfg.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	s := &Store{
		client:     client,
		collection: cfg.Collection,
		dimensions: cfg.Dimensions,
	}

	if err := s.waitReady(ctx); err != nil {
		client.Close()
		return nil, err
	}
	if err := s.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

// waitReady polls the health endpoint with exponential backoff. Qdrant in a
// sidecar container routinely starts a few seconds after the service.
func (s *Store) waitReady(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	op := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if _, err := s.client.HealthCheck(ctx); err != nil {
			return fmt.Errorf("qdrant health check: %w", err)
		}
		return nil
	}
	if err := backoff.Retry(op, b); err != nil {
		return fmt.Errorf("qdrant not ready: %w", err)
	}
	return nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}
	return nil
}

func (s *Store) Name() string { return "qdrant" }

// CascadeDelete is true: vectors are removed by payload filter on delete.
func (s *Store) CascadeDelete() bool { return true }

// Add upserts entries as points with random UUIDs and the chunk metadata as
// payload.
func (s *Store) Add(ctx context.Context, entries []domain.VectorEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, e := range entries {
		if len(e.Embedding) != s.dimensions {
			return 0, fmt.Errorf("entry %s has %d dimensions, collection expects %d: %w",
				e.ID, len(e.Embedding), s.dimensions, domain.ErrVectorDimMismatch)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.NewString()),
			Vectors: qdrant.NewVectors(e.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"entry_id":     e.ID,
				"content":      e.Content,
				"filename":     e.Meta.Filename,
				"source":       e.Meta.Source,
				"chunk_index":  int64(e.Meta.ChunkIndex),
				"total_chunks": int64(e.Meta.TotalChunks),
				"section":      e.Meta.Section,
			}),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return 0, fmt.Errorf("upsert points: %w", err)
	}
	return len(points), nil
}

// Search queries the collection and maps scored points back to entries.
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]index.Match, error) {
	if len(vector) != s.dimensions {
		return nil, fmt.Errorf("query vector has %d dimensions, collection expects %d: %w",
			len(vector), s.dimensions, domain.ErrVectorDimMismatch)
	}

	count, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: s.collection})
	if err != nil {
		return nil, fmt.Errorf("count points: %w", err)
	}
	if count == 0 {
		return nil, domain.ErrNoDocumentsIndexed
	}

	scored, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}

	matches := make([]index.Match, 0, len(scored))
	for _, p := range scored {
		matches = append(matches, index.Match{
			Entry: entryFromPayload(p.Payload),
			Score: float64(p.Score),
		})
	}
	return matches, nil
}

func entryFromPayload(payload map[string]*qdrant.Value) domain.VectorEntry {
	return domain.VectorEntry{
		ID:      payload["entry_id"].GetStringValue(),
		Content: payload["content"].GetStringValue(),
		Meta: domain.ChunkMeta{
			Filename:    payload["filename"].GetStringValue(),
			Source:      payload["source"].GetStringValue(),
			ChunkIndex:  int(payload["chunk_index"].GetIntegerValue()),
			TotalChunks: int(payload["total_chunks"].GetIntegerValue()),
			Section:     payload["section"].GetStringValue(),
		},
	}
}

func (s *Store) Stats(ctx context.Context) (index.Stats, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: s.collection})
	if err != nil {
		return index.Stats{}, fmt.Errorf("count points: %w", err)
	}
	return index.Stats{Backend: s.Name(), Count: int(count)}, nil
}

// Remove drops every point whose payload filename matches.
func (s *Store) Remove(ctx context.Context, filename string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("filename", filename)},
		}),
	})
	if err != nil {
		return fmt.Errorf("delete points for %s: %w", filename, err)
	}
	return nil
}

// Reset drops and recreates the collection. Used by full reindex.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("drop collection %s: %w", s.collection, err)
	}
	return s.ensureCollection(ctx)
}

// Close releases the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}
