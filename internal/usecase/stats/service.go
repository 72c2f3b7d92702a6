// Package stats aggregates registry and backend counts for the stats
// endpoint.
package stats

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/motordesk/docindex/internal/domain"
	"github.com/motordesk/docindex/internal/index"
	"github.com/motordesk/docindex/internal/logger"
)

// DocumentLister lists stored documents.
type DocumentLister interface {
	List(ctx context.Context) ([]domain.DocumentInfo, error)
}

// BackendStats is one backend's contribution to the report.
type BackendStats struct {
	index.Stats
	Error string `json:"error,omitempty"`
}

// Report is the full stats payload. TotalChunks counts entries in the
// primary backend only; secondaries mirror the same corpus.
type Report struct {
	TotalDocuments int                   `json:"totalDocuments"`
	TotalChunks    int                   `json:"totalChunks"`
	LastUpdated    time.Time             `json:"lastUpdated,omitzero"`
	Documents      []domain.DocumentInfo `json:"documents"`
	Backends       []BackendStats        `json:"backends"`
}

// Service collects stats across the registry and every backend.
type Service struct {
	registry DocumentLister
	backends []index.Backend
}

// New creates a stats service.
func New(registry DocumentLister, backends []index.Backend) *Service {
	return &Service{registry: registry, backends: backends}
}

// Collect gathers the report. A failing backend is reported with its error
// rather than failing the whole call.
func (s *Service) Collect(ctx context.Context) (Report, error) {
	docs, err := s.registry.List(ctx)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		TotalDocuments: len(docs),
		Documents:      docs,
		Backends:       make([]BackendStats, 0, len(s.backends)),
	}
	for i, b := range s.backends {
		bs := BackendStats{Stats: index.Stats{Backend: b.Name()}}
		stats, err := b.Stats(ctx)
		if err != nil {
			logger.FromContext(ctx).Warn("Backend stats failed",
				zap.String("backend", b.Name()), zap.Error(err))
			bs.Error = err.Error()
		} else {
			bs.Stats = stats
			if i == 0 {
				report.TotalChunks = stats.Count
			}
			if stats.LastUpdated.After(report.LastUpdated) {
				report.LastUpdated = stats.LastUpdated
			}
		}
		report.Backends = append(report.Backends, bs)
	}
	return report, nil
}
