package domain

import "math"

// VectorEntry is the atomic unit stored by an index backend: exactly one
// embedding plus a copy of the source chunk's metadata. ID is backend-specific
// (UUID or integer position) and stable for the entry's lifetime.
type VectorEntry struct {
	ID        string    `json:"id"`
	Embedding []float32 `json:"embedding"`
	Content   string    `json:"content"`
	Meta      ChunkMeta `json:"metadata"`
}

// CosineSimilarity returns the normalized dot product of a and b, in [-1, 1].
// A zero-norm vector yields 0 (never divides by zero). Vectors of unequal
// length are compared over the shorter prefix; callers are expected to have
// validated dimensions at insert time.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	normA = math.Sqrt(normA)
	normB = math.Sqrt(normB)
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (normA * normB)
}
