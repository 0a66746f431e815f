package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
)

// utf8BOM lets spreadsheet apps detect UTF-8 so non-ASCII student names survive.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVExporter writes a dataset as CSV: the header row followed by one record
// per row, columns in header order. Missing cells are empty.
type CSVExporter struct {
	// BOM prefixes the output with a UTF-8 byte order mark.
	BOM bool
}

// NewCSVExporter returns a BOM-less exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

func (e *CSVExporter) ContentType() string { return "text/csv; charset=utf-8" }

func (e *CSVExporter) Extension() string { return "csv" }

// Render encodes data. The title is not part of the body.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, errors.New("csv export: dataset has no columns")
	}

	records := make([][]string, 0, len(data.Rows)+1)
	records = append(records, data.Headers)
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for col, header := range data.Headers {
			record[col] = row[header]
		}
		records = append(records, record)
	}

	var buf bytes.Buffer
	if e.BOM {
		buf.Write(utf8BOM)
	}
	if err := csv.NewWriter(&buf).WriteAll(records); err != nil {
		return nil, fmt.Errorf("csv export: %w", err)
	}
	return buf.Bytes(), nil
}
