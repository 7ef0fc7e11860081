package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// utf8BOM lets spreadsheet applications detect the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// ContentType is the MIME type served for CSV downloads.
func (e *CSVExporter) ContentType() string { return "text/csv; charset=utf-8" }

// Extension is the download file extension.
func (e *CSVExporter) Extension() string { return "csv" }

// Render produces the BOM, preamble, optional summary block and the data table.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	buf.Write(utf8BOM)
	writer := csv.NewWriter(buf)

	preamble := [][]string{
		{data.Title},
		{"School", data.TenantName},
		{"Generated on", data.generatedOn()},
		{},
	}
	if len(data.Summary) > 0 {
		preamble = append(preamble, []string{"Summary"})
		for _, card := range data.Summary {
			preamble = append(preamble, []string{card.Label, card.Value})
		}
		preamble = append(preamble, []string{})
	}
	if err := writer.WriteAll(preamble); err != nil {
		return nil, fmt.Errorf("write csv preamble: %w", err)
	}

	if err := writer.Write(data.labels()); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		if err := writer.Write(data.record(row)); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
