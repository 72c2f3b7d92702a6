// Package hnsw is the local approximate backend: an HNSW graph persisted
// next to a JSON metadata array. Node i in the graph corresponds to
// position i in the array, so the two files must be written together.
package hnsw

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	hnswlib "github.com/coder/hnsw"

	"github.com/motordesk/docindex/internal/domain"
	"github.com/motordesk/docindex/internal/index"
)

const (
	graphFile = "index.graph"
	metaFile  = "index_meta.json"
)

type metaRecord struct {
	ID      string           `json:"id"`
	Content string           `json:"content"`
	Meta    domain.ChunkMeta `json:"meta"`
}

type metaDoc struct {
	Dimensions int          `json:"dimensions"`
	UpdatedAt  time.Time    `json:"updatedAt"`
	Records    []metaRecord `json:"records"`
}

// Config tunes graph construction.
type Config struct {
	Dir        string
	Dimensions int
	M          int // max neighbors per node
	EfSearch   int
}

// Store is the HNSW-backed index.
type Store struct {
	cfg   Config
	mu    sync.Mutex
	graph *hnswlib.Graph[int]
	meta  metaDoc
}

// New opens the index at cfg.Dir, loading a previously persisted graph if
// one exists. A persisted graph with a different dimensionality is rejected.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	s := &Store{cfg: cfg}
	if err := s.load(); err != nil {
		return nil, err
	}
	if s.graph == nil {
		s.graph = s.newGraph()
		s.meta = metaDoc{Dimensions: cfg.Dimensions}
	}
	return s, nil
}

func (s *Store) newGraph() *hnswlib.Graph[int] {
	g := hnswlib.NewGraph[int]()
	if s.cfg.M > 0 {
		g.M = s.cfg.M
	}
	if s.cfg.EfSearch > 0 {
		g.EfSearch = s.cfg.EfSearch
	}
	return g
}

func (s *Store) load() error {
	metaPath := filepath.Join(s.cfg.Dir, metaFile)
	data, err := os.ReadFile(metaPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read index metadata: %w", err)
	}

	var meta metaDoc
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("parse index metadata: %w", err)
	}
	if meta.Dimensions != s.cfg.Dimensions {
		return fmt.Errorf("persisted index has %d dimensions, configured %d: %w",
			meta.Dimensions, s.cfg.Dimensions, domain.ErrVectorDimMismatch)
	}

	f, err := os.Open(filepath.Join(s.cfg.Dir, graphFile))
	if err != nil {
		return fmt.Errorf("open graph file: %w", err)
	}
	defer f.Close()

	g := s.newGraph()
	if err := g.Import(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}

	s.graph = g
	s.meta = meta
	return nil
}

// persist writes the graph and metadata. Caller holds the mutex.
func (s *Store) persist() error {
	f, err := os.Create(filepath.Join(s.cfg.Dir, graphFile))
	if err != nil {
		return fmt.Errorf("create graph file: %w", err)
	}
	if err := s.graph.Export(f); err != nil {
		f.Close()
		return fmt.Errorf("export graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close graph file: %w", err)
	}

	data, err := json.Marshal(s.meta)
	if err != nil {
		return fmt.Errorf("marshal index metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.cfg.Dir, metaFile), data, 0o644); err != nil {
		return fmt.Errorf("write index metadata: %w", err)
	}
	return nil
}

func (s *Store) Name() string { return "hnsw" }

// CascadeDelete is false: the graph cannot drop nodes without a rebuild, so
// deleted documents linger until the next full reindex.
func (s *Store) CascadeDelete() bool { return false }

// Add appends entries as new graph nodes and persists both files.
func (s *Store) Add(_ context.Context, entries []domain.VectorEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if len(e.Embedding) != s.cfg.Dimensions {
			return 0, fmt.Errorf("entry %s has %d dimensions, index expects %d: %w",
				e.ID, len(e.Embedding), s.cfg.Dimensions, domain.ErrVectorDimMismatch)
		}
	}

	for _, e := range entries {
		id := len(s.meta.Records)
		s.graph.Add(hnswlib.MakeNode(id, e.Embedding))
		s.meta.Records = append(s.meta.Records, metaRecord{
			ID:      e.ID,
			Content: e.Content,
			Meta:    e.Meta,
		})
	}
	s.meta.UpdatedAt = time.Now().UTC()

	if err := s.persist(); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Search walks the graph and re-scores the returned neighbors with exact
// cosine similarity.
func (s *Store) Search(_ context.Context, vector []float32, k int) ([]index.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.meta.Records) == 0 {
		return nil, domain.ErrNoDocumentsIndexed
	}
	if len(vector) != s.cfg.Dimensions {
		return nil, fmt.Errorf("query vector has %d dimensions, index expects %d: %w",
			len(vector), s.cfg.Dimensions, domain.ErrVectorDimMismatch)
	}

	neighbors := s.graph.Search(vector, k)

	matches := make([]index.Match, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Key < 0 || n.Key >= len(s.meta.Records) {
			continue
		}
		rec := s.meta.Records[n.Key]
		matches = append(matches, index.Match{
			Entry: domain.VectorEntry{
				ID:      rec.ID,
				Content: rec.Content,
				Meta:    rec.Meta,
			},
			Score: domain.CosineSimilarity(vector, n.Value),
		})
	}
	return matches, nil
}

func (s *Store) Stats(_ context.Context) (index.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return index.Stats{
		Backend:     s.Name(),
		Count:       len(s.meta.Records),
		LastUpdated: s.meta.UpdatedAt,
	}, nil
}

// Reset drops the graph and metadata. Used by full reindex.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.graph = s.newGraph()
	s.meta = metaDoc{Dimensions: s.cfg.Dimensions}
	return s.persist()
}
