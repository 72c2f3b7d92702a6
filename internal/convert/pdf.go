package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// pdfMagic is the 5-byte signature every well-formed PDF starts with.
var pdfMagic = []byte("%PDF-")

// IsValidPDF reports whether content carries the PDF magic signature.
func IsValidPDF(content []byte) bool {
	return bytes.HasPrefix(content, pdfMagic)
}

// convertPDF extracts text locally, then asks the restructurer to organize it
// into structured JSON. Every failure mode degrades to a raw-text object.
func (c *Converter) convertPDF(ctx context.Context, filename string, content []byte) Result {
	if !IsValidPDF(content) {
		return textResult(
			"The provided file doesn't appear to be a valid PDF document",
			filename, "pdf-validation-failed",
			"missing %PDF- signature",
		)
	}

	text, err := extractPDFText(content)
	if err != nil {
		return textResult(
			fmt.Sprintf("[PDF content from %s - parsing failed]", filename),
			filename, "pdf-parsing-failed", err.Error(),
		)
	}
	if text == "" {
		return textResult(
			fmt.Sprintf("[PDF content from %s - appears to be empty or unreadable]", filename),
			filename, "pdf-extraction-empty", "empty extraction",
		)
	}

	instruction := fmt.Sprintf(
		"Convert the following PDF content into a structured JSON format. "+
			"Identify and organize key information like products, prices, "+
			"specifications, and other relevant data. The content is from a file named %s.",
		filename,
	)
	if data, ok := c.restructure(ctx, instruction, text); ok {
		return Result{Data: data, ConversionMethod: "ai-assisted-pdf-extraction"}
	}

	return textResult(text, filename, "basic-pdf-extraction", "")
}

func extractPDFText(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return buf.String(), nil
}
