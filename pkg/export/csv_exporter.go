package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// Dataset defines tabular export content. A cell may hold several lines.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string][]string
}

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct {
	Comma     rune
	LineJoint string
}

// NewCSVExporter builds a CSV exporter using ';' so spreadsheets in French locales open it directly.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{Comma: ';', LineJoint: " | "}
}

// Render produces CSV encoded bytes for the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if e.Comma != 0 {
		writer.Comma = e.Comma
	}
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = strings.Join(row[header], e.LineJoint)
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
