package export

import (
	"fmt"
	"time"
)

// Column maps a row field key to its printed label. Order is preserved on output.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Card is a single summary figure printed above the table.
type Card struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Slice is one segment of a donut chart.
type Slice struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Donut describes a per-entity breakdown chart, e.g. the status split of one course.
type Donut struct {
	Title   string  `json:"title"`
	Caption string  `json:"caption,omitempty"`
	Slices  []Slice `json:"slices"`
}

// Dataset defines tabular export content plus the report preamble.
type Dataset struct {
	Title       string
	TenantName  string
	GeneratedAt time.Time
	Columns     []Column
	Rows        []map[string]string
	Summary     []Card
	Charts      []Donut
}

func (d Dataset) validate() error {
	if len(d.Columns) == 0 {
		return fmt.Errorf("export requires at least one column")
	}
	return nil
}

func (d Dataset) labels() []string {
	labels := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		labels[i] = col.Label
		if labels[i] == "" {
			labels[i] = col.Key
		}
	}
	return labels
}

func (d Dataset) record(row map[string]string) []string {
	record := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		record[i] = row[col.Key]
	}
	return record
}

func (d Dataset) generatedOn() string {
	ts := d.GeneratedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return ts.Format("2006-01-02 15:04")
}

// Total returns the sum of slice values.
func (d Donut) Total() float64 {
	var total float64
	for _, s := range d.Slices {
		if s.Value > 0 {
			total += s.Value
		}
	}
	return total
}
