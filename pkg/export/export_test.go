package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset(rows int) Dataset {
	data := Dataset{
		Title:       "Course Completion Report",
		TenantName:  "Harapan Bangsa",
		GeneratedAt: time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC),
		Columns: []Column{
			{Key: "course", Label: "Course"},
			{Key: "enrolled", Label: "Enrolled"},
			{Key: "completion_rate", Label: "Completion Rate (%)"},
		},
		Summary: []Card{{Label: "Total Courses", Value: fmt.Sprintf("%d", rows)}, {Label: "Average Completion", Value: "62.5"}},
	}
	for i := 0; i < rows; i++ {
		data.Rows = append(data.Rows, map[string]string{
			"course":          fmt.Sprintf("Course %d, section A", i),
			"enrolled":        "10",
			"completion_rate": fmt.Sprintf("%.1f", float64(i)*12.25),
		})
	}
	return data
}

func TestCSVExporterLayout(t *testing.T) {
	payload, err := NewCSVExporter().Render(sampleDataset(3))
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(payload, utf8BOM))

	reader := csv.NewReader(bytes.NewReader(payload[len(utf8BOM):]))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"Course Completion Report"}, records[0])
	assert.Equal(t, []string{"School", "Harapan Bangsa"}, records[1])
	assert.Equal(t, []string{"Generated on", "2026-03-04 10:30"}, records[2])
	assert.Equal(t, []string{"Summary"}, records[3])
	assert.Equal(t, []string{"Total Courses", "3"}, records[4])

	headerIdx := -1
	for i, rec := range records {
		if len(rec) == 3 && rec[0] == "Course" {
			headerIdx = i
			break
		}
	}
	require.NotEqual(t, -1, headerIdx)
	dataLines := records[headerIdx+1:]
	require.Len(t, dataLines, 3)
	assert.Equal(t, "Course 1, section A", dataLines[1][0])
	assert.Equal(t, "24.5", dataLines[2][2])
}

func TestCSVExporterWithoutSummary(t *testing.T) {
	data := sampleDataset(0)
	data.Summary = nil
	payload, err := NewCSVExporter().Render(data)
	require.NoError(t, err)

	reader := csv.NewReader(bytes.NewReader(payload[len(utf8BOM):]))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"Course", "Enrolled", "Completion Rate (%)"}, records[3])
}

func TestExportersRequireColumns(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRendersChartsAndPaginates(t *testing.T) {
	data := sampleDataset(80)
	data.Charts = []Donut{
		{Title: "Algebra", Caption: "10 enrolled", Slices: []Slice{{Label: "Completed", Value: 4}, {Label: "In progress", Value: 3}, {Label: "Not started", Value: 3}}},
		{Title: "Empty course", Slices: []Slice{{Label: "Completed", Value: 0}}},
	}
	payload, err := NewPDFExporter().Render(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(payload, []byte("%PDF")))
}

func TestWedgeStartsAtCentre(t *testing.T) {
	points := wedge(50, 50, 10, -90, 0)
	require.GreaterOrEqual(t, len(points), 3)
	assert.Equal(t, 50.0, points[0].X)
	assert.InDelta(t, 40.0, points[1].Y, 1e-9)
	assert.InDelta(t, 60.0, points[len(points)-1].X, 1e-9)
}
