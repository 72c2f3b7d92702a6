package domain

import (
	"encoding/json"
	"time"
)

// Document is a stored, normalized unit of knowledge. Data holds the canonical
// JSON payload produced by the file normalizer; Metadata wraps it with storage
// bookkeeping. Documents are immutable once stored: a re-upload under the same
// filename replaces the record wholesale.
type Document struct {
	Data     json.RawMessage `json:"data"`
	Metadata Metadata        `json:"metadata"`
}

// Metadata describes a stored document.
type Metadata struct {
	Filename         string    `json:"filename,omitempty"`
	FileType         string    `json:"fileType,omitempty"`
	FileSize         int64     `json:"fileSize,omitempty"`
	DocumentType     string    `json:"documentType,omitempty"`
	Source           string    `json:"source,omitempty"`
	ConversionMethod string    `json:"conversionMethod,omitempty"`
	Error            string    `json:"error,omitempty"`
	StoredAt         time.Time `json:"storedAt,omitzero"`
}

// DocumentInfo is a registry listing entry. A document whose stored JSON fails
// to parse is still listed, with Metadata.Error set instead of being omitted.
type DocumentInfo struct {
	Filename string   `json:"filename"`
	Path     string   `json:"path"`
	Metadata Metadata `json:"metadata"`
}
