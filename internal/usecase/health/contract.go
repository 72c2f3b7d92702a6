package health

import "context"

// CachePinger checks the embedding cache store.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker verifies the embedding provider is reachable.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
