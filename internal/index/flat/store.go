// Package flat is the zero-dependency vector index: one JSON file per
// document, brute-force cosine scan at query time. It is always available
// and serves as the terminal fallback behind the approximate backends.
package flat

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/motordesk/docindex/internal/domain"
	"github.com/motordesk/docindex/internal/index"
	"github.com/motordesk/docindex/internal/repository/registry"
)

const fileSuffix = "_embeddings.json"

type chunkRecord struct {
	ID        string           `json:"id"`
	Text      string           `json:"text"`
	Embedding []float32        `json:"embedding"`
	Meta      domain.ChunkMeta `json:"meta"`
}

type docFile struct {
	Chunks   []chunkRecord `json:"chunks"`
	Metadata struct {
		Filename  string    `json:"filename"`
		Source    string    `json:"source"`
		UpdatedAt time.Time `json:"updatedAt"`
	} `json:"metadata"`
}

// Store is the flat-file backend.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New creates a flat store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create vectorstore dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Name() string { return "flat" }

// CascadeDelete is true: each document owns exactly one embeddings file.
func (s *Store) CascadeDelete() bool { return true }

func (s *Store) pathFor(filename string) string {
	return filepath.Join(s.dir, registry.SanitizeFilename(filename)+fileSuffix)
}

// Add appends entries to their documents' embeddings files, grouped by the
// source filename carried in each entry's metadata.
func (s *Store) Add(_ context.Context, entries []domain.VectorEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDoc := make(map[string][]domain.VectorEntry)
	for _, e := range entries {
		if e.Meta.Filename == "" {
			return 0, fmt.Errorf("entry %s has no filename: %w", e.ID, domain.ErrInvalidInput)
		}
		byDoc[e.Meta.Filename] = append(byDoc[e.Meta.Filename], e)
	}

	added := 0
	for filename, group := range byDoc {
		path := s.pathFor(filename)

		var f docFile
		if data, err := os.ReadFile(path); err == nil {
			// A corrupt file is replaced wholesale rather than failing the add.
			_ = json.Unmarshal(data, &f)
		}

		for _, e := range group {
			f.Chunks = append(f.Chunks, chunkRecord{
				ID:        e.ID,
				Text:      e.Content,
				Embedding: e.Embedding,
				Meta:      e.Meta,
			})
		}
		f.Metadata.Filename = filename
		f.Metadata.Source = group[0].Meta.Source
		f.Metadata.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(f)
		if err != nil {
			return added, fmt.Errorf("marshal embeddings for %s: %w", filename, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return added, fmt.Errorf("write embeddings for %s: %w", filename, err)
		}
		added += len(group)
	}
	return added, nil
}

// Search scans every embeddings file and ranks all chunks by cosine
// similarity against the query vector.
func (s *Store) Search(_ context.Context, vector []float32, k int) ([]index.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.listFiles()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, domain.ErrNoDocumentsIndexed
	}

	var matches []index.Match
	for _, path := range files {
		f, err := readDocFile(path)
		if err != nil {
			continue
		}
		for _, c := range f.Chunks {
			matches = append(matches, index.Match{
				Entry: domain.VectorEntry{
					ID:      c.ID,
					Content: c.Text,
					Meta:    c.Meta,
				},
				Score: domain.CosineSimilarity(vector, c.Embedding),
			})
		}
	}
	if len(matches) == 0 {
		return nil, domain.ErrNoDocumentsIndexed
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Stats counts chunks across all embeddings files.
func (s *Store) Stats(_ context.Context) (index.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.listFiles()
	if err != nil {
		return index.Stats{}, err
	}

	stats := index.Stats{Backend: s.Name()}
	for _, path := range files {
		f, err := readDocFile(path)
		if err != nil {
			continue
		}
		stats.Count += len(f.Chunks)
		if f.Metadata.UpdatedAt.After(stats.LastUpdated) {
			stats.LastUpdated = f.Metadata.UpdatedAt
		}
	}
	return stats, nil
}

// Remove deletes a document's embeddings file. Missing files are fine.
func (s *Store) Remove(_ context.Context, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.pathFor(filename))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove embeddings for %s: %w", filename, err)
	}
	return nil
}

// Reset removes every embeddings file ahead of a full rebuild.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.listFiles()
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return nil
}

func (s *Store) listFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read vectorstore dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), fileSuffix) {
			out = append(out, filepath.Join(s.dir, e.Name()))
		}
	}
	return out, nil
}

func readDocFile(path string) (docFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return docFile{}, err
	}
	var f docFile
	if err := json.Unmarshal(data, &f); err != nil {
		return docFile{}, err
	}
	return f, nil
}
