package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/motordesk/docindex/internal/chunk"
	"github.com/motordesk/docindex/internal/convert"
	"github.com/motordesk/docindex/internal/domain"
	"github.com/motordesk/docindex/internal/index"
	"github.com/motordesk/docindex/internal/index/flat"
	"github.com/motordesk/docindex/internal/repository/registry"
	healthuc "github.com/motordesk/docindex/internal/usecase/health"
	ingestuc "github.com/motordesk/docindex/internal/usecase/ingest"
	retrievaluc "github.com/motordesk/docindex/internal/usecase/retrieval"
	statsuc "github.com/motordesk/docindex/internal/usecase/stats"
)

// fixedEmbedder hashes the first byte into a deterministic 3-wide vector.
type fixedEmbedder struct{}

func (fixedEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	var b byte
	if len(text) > 0 {
		b = text[0]
	}
	return domain.EmbeddingResult{
		Embedding: []float32{float32(b%7) + 1, float32(b%5) + 1, float32(b%3) + 1},
	}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	reg, err := registry.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	backend, err := flat.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	backends := []index.Backend{backend}

	emb := fixedEmbedder{}
	ingestSvc := ingestuc.New(
		convert.New(nil), reg, chunk.NewSplitter(1000, 200, 100_000), emb, backends,
		ingestuc.Options{BatchSize: 5, Dimensions: 3},
	)
	retrievalSvc := retrievaluc.New(emb, backends, reg, 5)
	statsSvc := statsuc.New(reg, backends)
	healthSvc := healthuc.New(nil, nil, backends)

	server := NewServer(ingestSvc, retrievalSvc, statsSvc, healthSvc, zap.NewNop(), 25)
	r := chi.NewRouter()
	server.Register(r)
	return r
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func upload(t *testing.T, router http.Handler, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartUpload(t, filename, content)
	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestUploadAndSearch(t *testing.T) {
	router := newTestRouter(t)

	rr := upload(t, router, "specs.txt", "The OM 471 engine delivers up to 530 hp.")
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rr.Code, rr.Body.String())
	}

	var res struct {
		Success  bool   `json:"success"`
		Filename string `json:"filename"`
		Metadata struct {
			FileType string `json:"fileType"`
		} `json:"metadata"`
		RAG struct {
			Indexed bool `json:"indexed"`
			Chunks  int  `json:"chunks"`
		} `json:"rag"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Filename != "specs.txt" {
		t.Errorf("unexpected upload result %+v", res)
	}
	if !res.RAG.Indexed || res.RAG.Chunks == 0 {
		t.Errorf("unexpected rag summary %+v", res.RAG)
	}
	if res.Metadata.FileType != "txt" {
		t.Errorf("metadata fileType = %q", res.Metadata.FileType)
	}

	req := httptest.NewRequest("POST", "/search", strings.NewReader(`{"query":"engine power"}`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("search status = %d, body %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Backend string `json:"backend"`
		Hits    []struct {
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Backend != "flat" {
		t.Errorf("backend = %q", resp.Backend)
	}
	if len(resp.Hits) == 0 {
		t.Error("expected hits")
	}
}

func TestUploadMissingFile(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("POST", "/upload", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xxx")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestUploadUnsupportedType(t *testing.T) {
	router := newTestRouter(t)

	rr := upload(t, router, "tool.exe", "MZ")
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415, body %s", rr.Code, rr.Body.String())
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatal(err)
	}
	if errResp.Code != CodeUnsupportedFileType {
		t.Errorf("code = %s", errResp.Code)
	}
}

func TestSearchValidation(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("POST", "/search", strings.NewReader(`{"query":"  "}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("blank query status = %d, want 400", rr.Code)
	}

	req = httptest.NewRequest("POST", "/search", strings.NewReader("{broken"))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("broken body status = %d, want 400", rr.Code)
	}
}

func TestSearchNoDocuments(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("POST", "/search", strings.NewReader(`{"query":"anything"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body %s", rr.Code, rr.Body.String())
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatal(err)
	}
	if errResp.Code != CodeNoDocumentsIndexed {
		t.Errorf("code = %s", errResp.Code)
	}
}

func TestDeleteDocument(t *testing.T) {
	router := newTestRouter(t)

	if rr := upload(t, router, "gone.txt", "temporary content"); rr.Code != http.StatusCreated {
		t.Fatalf("upload failed: %d", rr.Code)
	}

	req := httptest.NewRequest("DELETE", "/documents/gone.txt", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rr.Code)
	}

	req = httptest.NewRequest("DELETE", "/documents/gone.txt", http.NoBody)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rr.Code)
	}
}

func TestStatsAndDocuments(t *testing.T) {
	router := newTestRouter(t)

	if rr := upload(t, router, "a.txt", "first document"); rr.Code != http.StatusCreated {
		t.Fatal("upload failed")
	}

	req := httptest.NewRequest("GET", "/stats", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rr.Code)
	}

	var report struct {
		Documents []any `json:"documents"`
		Backends  []struct {
			Backend string `json:"backend"`
			Count   int    `json:"count"`
		} `json:"backends"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if len(report.Documents) != 1 {
		t.Errorf("documents = %d, want 1", len(report.Documents))
	}
	if len(report.Backends) != 1 || report.Backends[0].Count == 0 {
		t.Errorf("unexpected backends %+v", report.Backends)
	}

	req = httptest.NewRequest("GET", "/documents", http.NoBody)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("documents status = %d", rr.Code)
	}
}

func TestGetDocument(t *testing.T) {
	router := newTestRouter(t)

	if rr := upload(t, router, "specs.txt", "engine details"); rr.Code != http.StatusCreated {
		t.Fatal("upload failed")
	}

	req := httptest.NewRequest("GET", "/documents/specs.txt", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d, body %s", rr.Code, rr.Body.String())
	}

	var doc struct {
		Metadata struct {
			Filename string `json:"filename"`
		} `json:"metadata"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if doc.Metadata.Filename != "specs.txt" {
		t.Errorf("filename = %q", doc.Metadata.Filename)
	}

	req = httptest.NewRequest("GET", "/documents/missing.txt", http.NoBody)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing document status = %d, want 404", rr.Code)
	}
}

func TestUploadSkipIndexing(t *testing.T) {
	router := newTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "store_only.txt")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("archived content"))
	mw.WriteField("processForRag", "false")
	mw.WriteField("documentType", "archive")
	mw.Close()

	req := httptest.NewRequest("POST", "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rr.Code, rr.Body.String())
	}

	var res struct {
		Success bool `json:"success"`
		RAG     *struct {
			Chunks int `json:"chunks"`
		} `json:"rag"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Error("expected success")
	}
	if res.RAG != nil {
		t.Errorf("rag summary should be omitted when processForRag=false, got %+v", res.RAG)
	}
}

func TestReindex(t *testing.T) {
	router := newTestRouter(t)

	if rr := upload(t, router, "a.txt", "reindex me"); rr.Code != http.StatusCreated {
		t.Fatal("upload failed")
	}

	req := httptest.NewRequest("POST", "/reindex", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("reindex status = %d, body %s", rr.Code, rr.Body.String())
	}

	var res struct {
		Documents int `json:"documents"`
		Indexed   int `json:"indexed"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Documents != 1 || res.Indexed != 1 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("health status = %d", rr.Code)
	}
	var report struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.Status != "ok" {
		t.Errorf("status = %q", report.Status)
	}
}
