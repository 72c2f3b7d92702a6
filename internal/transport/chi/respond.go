package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/motordesk/docindex/internal/domain"
)

// ErrorCode is the machine-readable code carried in error responses.
type ErrorCode string

const (
	CodeBadRequest           ErrorCode = "bad_request"
	CodeValidationFailed     ErrorCode = "validation_failed"
	CodeDocumentNotFound     ErrorCode = "document_not_found"
	CodeNoDocumentsIndexed   ErrorCode = "no_documents_indexed"
	CodeIndexUnavailable     ErrorCode = "index_unavailable"
	CodeUnsupportedFileType  ErrorCode = "unsupported_file_type"
	CodeVectorDimMismatch    ErrorCode = "vector_dim_mismatch"
	CodeRateLimited          ErrorCode = "rate_limited"
	CodeEmbeddingProviderErr ErrorCode = "embedding_provider_error"
	CodePayloadTooLarge      ErrorCode = "payload_too_large"
	CodeInternalError        ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrDocumentNotFound,
		domain.ErrNoDocumentsIndexed,
		domain.ErrIndexUnavailable,
		domain.ErrUnsupportedFileType,
		domain.ErrInvalidInput,
		domain.ErrVectorDimMismatch,
		domain.ErrRateLimited,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}
