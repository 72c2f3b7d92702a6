package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/motordesk/docindex/internal/domain"
	healthuc "github.com/motordesk/docindex/internal/usecase/health"
	ingestuc "github.com/motordesk/docindex/internal/usecase/ingest"
	retrievaluc "github.com/motordesk/docindex/internal/usecase/retrieval"
	statsuc "github.com/motordesk/docindex/internal/usecase/stats"
)

// Server exposes the document indexing API over HTTP.
type Server struct {
	ingest         *ingestuc.Service
	retrieval      *retrievaluc.Service
	stats          *statsuc.Service
	health         *healthuc.Service
	logger         *zap.Logger
	maxUploadBytes int64
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	ingest *ingestuc.Service,
	retrieval *retrievaluc.Service,
	stats *statsuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
	maxUploadMB int,
) *Server {
	s := &Server{
		ingest:         ingest,
		retrieval:      retrieval,
		stats:          stats,
		health:         health,
		logger:         logger,
		maxUploadBytes: int64(maxUploadMB) << 20,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, CodeDocumentNotFound),
		sentinelHandler(domain.ErrNoDocumentsIndexed, http.StatusNotFound, CodeNoDocumentsIndexed),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, CodeIndexUnavailable),
		sentinelHandler(domain.ErrUnsupportedFileType, http.StatusUnsupportedMediaType, CodeUnsupportedFileType),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, CodeVectorDimMismatch),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderErr),
	}
	return s
}

// Register mounts all API routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Post("/upload", s.Upload)
	r.Post("/search", s.Search)
	r.Post("/reindex", s.Reindex)
	r.Get("/stats", s.Stats)
	r.Get("/documents", s.ListDocuments)
	r.Get("/documents/{filename}", s.GetDocument)
	r.Delete("/documents/{filename}", s.DeleteDocument)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Upload handles POST /upload (multipart, field "file").
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "file exceeds upload limit")
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "file exceeds upload limit")
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "failed to read uploaded file")
		return
	}

	fileType := r.FormValue("fileType")
	if fileType == "" {
		fileType = strings.TrimPrefix(filepath.Ext(header.Filename), ".")
	}

	req := ingestuc.Request{
		Filename:     header.Filename,
		FileType:     fileType,
		DocumentType: r.FormValue("documentType"),
		Content:      content,
		SkipIndexing: r.FormValue("processForRag") == "false",
	}
	if v, err := strconv.Atoi(r.FormValue("chunkSize")); err == nil && v > 0 {
		req.ChunkSize = v
	}
	if v, err := strconv.Atoi(r.FormValue("chunkOverlap")); err == nil && v >= 0 {
		req.ChunkOverlap = v
	}

	result, err := s.ingest.Ingest(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := uploadResponse{
		Success:  true,
		Filename: result.Filename,
		Metadata: result.Metadata,
		Warning:  result.Warning,
	}
	if !req.SkipIndexing {
		resp.RAG = &ragSummary{
			Indexed: result.ChunksIndexed > 0,
			Chunks:  result.ChunksIndexed,
			Failed:  result.ChunksFailed,
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

// uploadResponse is the upload envelope: storage metadata plus, when the
// document was processed for retrieval, an indexing summary.
type uploadResponse struct {
	Success  bool            `json:"success"`
	Filename string          `json:"filename"`
	Metadata domain.Metadata `json:"metadata"`
	Warning  string          `json:"warning,omitempty"`
	RAG      *ragSummary     `json:"rag,omitempty"`
}

type ragSummary struct {
	Indexed bool `json:"indexed"`
	Chunks  int  `json:"chunks"`
	Failed  int  `json:"failed,omitempty"`
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "query is required")
		return
	}

	resp, err := s.retrieval.Search(r.Context(), req.Query, req.TopK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Reindex handles POST /reindex: a full rebuild from the registry.
func (s *Server) Reindex(w http.ResponseWriter, r *http.Request) {
	result, err := s.ingest.Reindex(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Stats handles GET /stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	report, err := s.stats.Collect(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListDocuments handles GET /documents. The stats report already carries the
// document listing; this endpoint serves just that slice.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	report, err := s.stats.Collect(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": report.Documents,
		"count":     len(report.Documents),
	})
}

// GetDocument handles GET /documents/{filename}, returning the stored
// normalized document.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if filename == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "filename is required")
		return
	}

	doc, err := s.ingest.Get(r.Context(), filename)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /documents/{filename}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if filename == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "filename is required")
		return
	}

	if err := s.ingest.Delete(r.Context(), filename); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
