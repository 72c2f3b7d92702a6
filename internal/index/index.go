// Package index defines the contract shared by all vector index backends.
package index

import (
	"context"
	"time"

	"github.com/motordesk/docindex/internal/domain"
)

// Match is a scored search hit.
type Match struct {
	Entry domain.VectorEntry
	Score float64
}

// Stats describes a backend's current contents.
type Stats struct {
	Backend     string    `json:"backend"`
	Count       int       `json:"count"`
	LastUpdated time.Time `json:"lastUpdated,omitzero"`
}

// Backend is a vector index. Implementations must be safe for concurrent use.
type Backend interface {
	// Add indexes the entries and returns how many were accepted.
	Add(ctx context.Context, entries []domain.VectorEntry) (int, error)

	// Search returns up to k matches ranked by descending similarity.
	// Returns domain.ErrNoDocumentsIndexed when the index is empty.
	Search(ctx context.Context, vector []float32, k int) ([]Match, error)

	Stats(ctx context.Context) (Stats, error)

	// Name identifies the backend in logs, stats and metrics.
	Name() string

	// CascadeDelete reports whether deleting a document from the registry
	// also removes its vectors from this backend.
	CascadeDelete() bool
}

// Remover is implemented by backends that can drop a document's vectors.
type Remover interface {
	Remove(ctx context.Context, filename string) error
}
