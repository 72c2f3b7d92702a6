// Package registry keeps the canonical JSON form of every uploaded document
// on disk, one file per document. It is the system of record the vector
// indexes are rebuilt from, and the keyword fallback when no index can serve
// a query.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/motordesk/docindex/internal/domain"
	"github.com/motordesk/docindex/internal/logger"
)

var unsafeChars = regexp.MustCompile(`[^a-z0-9_\-.]`)

// SanitizeFilename lowercases a filename and replaces everything outside
// [a-z0-9_-.] with underscores. The result is the document's storage key.
func SanitizeFilename(name string) string {
	return unsafeChars.ReplaceAllString(strings.ToLower(name), "_")
}

// Registry is a directory-backed document store.
type Registry struct {
	dir string
}

// New creates a registry rooted at dir, creating the directory if needed.
func New(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}
	return &Registry{dir: dir}, nil
}

func (r *Registry) pathFor(filename string) string {
	key := SanitizeFilename(filename)
	if !strings.HasSuffix(key, ".json") {
		key += ".json"
	}
	return filepath.Join(r.dir, key)
}

// Store writes the document under a sanitized name, stamping StoredAt.
// An existing document with the same name is overwritten.
func (r *Registry) Store(_ context.Context, filename string, doc domain.Document) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename is required: %w", domain.ErrInvalidInput)
	}

	if doc.Metadata.StoredAt.IsZero() {
		doc.Metadata.StoredAt = time.Now().UTC()
	}
	if doc.Metadata.Filename == "" {
		doc.Metadata.Filename = filename
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}

	path := r.pathFor(filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	return path, nil
}

// Get loads a stored document by its original or sanitized filename.
func (r *Registry) Get(_ context.Context, filename string) (domain.Document, error) {
	data, err := os.ReadFile(r.pathFor(filename))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Document{}, fmt.Errorf("document %q: %w", filename, domain.ErrDocumentNotFound)
		}
		return domain.Document{}, fmt.Errorf("read document: %w", err)
	}

	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.Document{}, fmt.Errorf("parse document %q: %w", filename, err)
	}
	return doc, nil
}

// Delete removes a stored document.
func (r *Registry) Delete(_ context.Context, filename string) error {
	err := os.Remove(r.pathFor(filename))
	if os.IsNotExist(err) {
		return fmt.Errorf("document %q: %w", filename, domain.ErrDocumentNotFound)
	}
	return err
}

// List returns info for every stored document. A file that no longer parses
// is still listed, with the parse failure recorded in its metadata, so a
// corrupt document stays visible instead of silently vanishing.
func (r *Registry) List(ctx context.Context) ([]domain.DocumentInfo, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read registry dir: %w", err)
	}

	infos := make([]domain.DocumentInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())

		info := domain.DocumentInfo{Filename: entry.Name(), Path: path}
		doc, err := r.readFile(path)
		if err != nil {
			logger.FromContext(ctx).Warn("Unparseable document in registry",
				zap.String("file", entry.Name()), zap.Error(err))
			info.Metadata = domain.Metadata{Filename: entry.Name(), Error: err.Error()}
		} else {
			info.Metadata = doc.Metadata
			// The logical filename is the join key to vector entries; the
			// disk name (sanitized, .json-suffixed) is only a fallback.
			if doc.Metadata.Filename != "" {
				info.Filename = doc.Metadata.Filename
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// FindRelevant is the last-resort keyword fallback: it returns up to limit
// documents whose filename or flattened content contains any query term.
func (r *Registry) FindRelevant(ctx context.Context, query string, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = 3
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read registry dir: %w", err)
	}

	terms := strings.Fields(strings.ToLower(query))
	var out []domain.Document
	for _, entry := range entries {
		if len(out) >= limit {
			break
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		doc, err := r.readFile(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			logger.FromContext(ctx).Warn("Skipping unparseable document",
				zap.String("file", entry.Name()), zap.Error(err))
			continue
		}

		haystack := strings.ToLower(entry.Name() + " " + string(doc.Data))
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				out = append(out, doc)
				break
			}
		}
	}
	return out, nil
}

func (r *Registry) readFile(path string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, err
	}
	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}
