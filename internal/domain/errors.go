package domain

import "errors"

var (
	// ErrDocumentNotFound signals a missing registry document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrNoDocumentsIndexed signals a search against an index with zero stored vectors.
	// Distinct from a zero-hit match: the caller has nothing to search over at all.
	ErrNoDocumentsIndexed = errors.New("no documents indexed")
	// ErrVectorDimMismatch signals an embedding whose dimension differs from the index.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrUnsupportedFileType signals an upload with an extension no normalizer handles.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrInvalidInput signals a missing filename, nil content, or malformed request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrIndexUnavailable signals that every index backend failed and the
	// keyword fallback had nothing. Distinct from ErrNoDocumentsIndexed:
	// documents may exist, but nothing can currently serve a search.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)
