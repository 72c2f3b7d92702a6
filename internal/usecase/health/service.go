// Package health aggregates component checks for the health endpoint.
package health

import (
	"context"

	"github.com/motordesk/docindex/internal/index"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service coordinates health checks.
type Service struct {
	embedding EmbeddingChecker
	cache     CachePinger
	backends  []index.Backend
}

// New creates a Service. embedding and cache can be nil.
func New(embedding EmbeddingChecker, cache CachePinger, backends []index.Backend) *Service {
	return &Service{embedding: embedding, cache: cache, backends: backends}
}

// Check probes every component. A backend is considered reachable when its
// stats call succeeds.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if s.embedding != nil {
		checks["embedding"] = resultOf(s.embedding.HealthCheck(ctx))
	}
	if s.cache != nil {
		checks["cache"] = resultOf(s.cache.Ping(ctx))
	}
	for _, b := range s.backends {
		_, err := b.Stats(ctx)
		checks["index:"+b.Name()] = resultOf(err)
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	return Report{Status: status, Checks: checks}
}

func resultOf(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
