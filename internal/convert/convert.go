// Package convert normalizes uploaded files (PDF, XLSX, CSV, JSON, text)
// into canonical JSON tagged with source metadata.
//
// Degradations are never fatal: a failed PDF parse or a malformed AI
// restructuring response yields a best-effort JSON object carrying the raw
// text plus conversionMethod/error markers, so downstream indexing always has
// something to embed. Only total input-validation failures (missing filename,
// nil content, unsupported extension) surface as errors.
package convert

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/motordesk/docindex/internal/domain"
	"github.com/motordesk/docindex/internal/logger"
)

// Result is the canonical output of a conversion.
type Result struct {
	Data             json.RawMessage
	ConversionMethod string
	Warning          string // degradation marker, empty on a clean conversion
}

// Restructurer reorganizes raw extracted text into structured JSON via an
// external language model. Implementations must treat their own failures as
// recoverable; the converter falls back to raw-text passthrough.
type Restructurer interface {
	Restructure(ctx context.Context, instruction, raw string) (json.RawMessage, error)
}

// Converter dispatches files to format-specific normalizers.
type Converter struct {
	restructurer Restructurer // nil disables the AI pass
}

// New creates a converter. restructurer may be nil to run raw extraction only.
func New(restructurer Restructurer) *Converter {
	return &Converter{restructurer: restructurer}
}

// textObject is the degraded/plain representation shared by all fallbacks.
type textObject struct {
	Text             string `json:"text"`
	Source           string `json:"source"`
	ConversionMethod string `json:"conversionMethod"`
	Error            string `json:"error,omitempty"`
}

func textResult(text, source, method, errMarker string) Result {
	data, _ := json.Marshal(textObject{
		Text:             text,
		Source:           source,
		ConversionMethod: method,
		Error:            errMarker,
	})
	return Result{Data: data, ConversionMethod: method, Warning: errMarker}
}

// Convert normalizes content of the declared fileType into canonical JSON.
func (c *Converter) Convert(ctx context.Context, filename, fileType string, content []byte) (Result, error) {
	if filename == "" {
		return Result{}, fmt.Errorf("filename is required: %w", domain.ErrInvalidInput)
	}
	if content == nil {
		return Result{}, fmt.Errorf("no file content provided: %w", domain.ErrInvalidInput)
	}

	switch strings.ToLower(fileType) {
	case "json":
		return c.convertJSON(filename, content)
	case "csv":
		return c.convertCSV(filename, content), nil
	case "txt", "text", "md", "markdown":
		return textResult(string(content), filename, "text-extraction", ""), nil
	case "pdf":
		return c.convertPDF(ctx, filename, content), nil
	case "xlsx", "xls":
		return c.convertSpreadsheet(ctx, filename, content), nil
	default:
		return Result{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedFileType, fileType)
	}
}

// convertJSON passes valid JSON through unchanged. Malformed JSON is an input
// error, not a degradation: the caller declared the type.
func (c *Converter) convertJSON(filename string, content []byte) (Result, error) {
	if !json.Valid(content) {
		return Result{}, fmt.Errorf("file %s is not valid JSON: %w", filename, domain.ErrInvalidInput)
	}
	return Result{Data: json.RawMessage(content), ConversionMethod: "json-passthrough"}, nil
}

// convertCSV parses header-keyed row objects. Ragged rows pad with empty
// strings; an empty file degrades to a marker object.
func (c *Converter) convertCSV(filename string, content []byte) Result {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return textResult("Empty CSV file", filename, "csv-parsing-empty", "")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []map[string]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return textResult(string(content), filename, "csv-parsing-failed", err.Error())
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = strings.TrimSpace(record[i])
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return textResult("Empty CSV file", filename, "csv-parsing-empty", "")
	}

	data, err := json.Marshal(rows)
	if err != nil {
		return textResult(string(content), filename, "csv-parsing-failed", err.Error())
	}
	return Result{Data: data, ConversionMethod: "csv-parsing"}
}

// restructure runs the optional AI pass over raw extracted text. Any failure
// (disabled, provider error, non-JSON output) returns ok=false and the caller
// falls back to raw passthrough.
func (c *Converter) restructure(ctx context.Context, instruction, raw string) (json.RawMessage, bool) {
	if c.restructurer == nil {
		return nil, false
	}
	data, err := c.restructurer.Restructure(ctx, instruction, raw)
	if err != nil {
		logger.FromContext(ctx).Warn("AI restructuring failed, falling back to raw text", zap.Error(err))
		return nil, false
	}
	return data, true
}
