package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// convertSpreadsheet extracts header-keyed rows from the first sheet, then
// optionally lets the restructurer clean the data up. Parsing failures
// degrade to a marker object; a failed AI pass keeps the raw rows.
func (c *Converter) convertSpreadsheet(ctx context.Context, filename string, content []byte) Result {
	rows, err := extractRows(content)
	if err != nil {
		return textResult("Failed to process spreadsheet", filename, "spreadsheet-parsing-failed", err.Error())
	}
	if len(rows) == 0 {
		return textResult("Empty spreadsheet", filename, "spreadsheet-extraction-empty", "no data rows")
	}

	data, err := json.Marshal(rows)
	if err != nil {
		return textResult("Failed to process spreadsheet", filename, "spreadsheet-parsing-failed", err.Error())
	}

	instruction := fmt.Sprintf(
		"Reformat the following spreadsheet data (already converted to JSON) "+
			"into a clean, consistently structured collection of records. "+
			"The content is from a file named %s.",
		filename,
	)
	if structured, ok := c.restructure(ctx, instruction, string(data)); ok {
		return Result{Data: structured, ConversionMethod: "ai-assisted-spreadsheet-extraction"}
	}

	return Result{Data: data, ConversionMethod: "spreadsheet-extraction"}
}

// extractRows reads the first sheet into header-keyed row maps. The first row
// is the header; short rows pad with empty strings.
func extractRows(content []byte) ([]map[string]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(raw) < 2 {
		return nil, nil
	}

	header := raw[0]
	rows := make([]map[string]string, 0, len(raw)-1)
	for _, record := range raw[1:] {
		row := make(map[string]string, len(header))
		for i, h := range header {
			if h == "" {
				continue
			}
			if i < len(record) {
				row[h] = record[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
