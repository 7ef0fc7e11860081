package export

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageMargin   = 10.0
	headerHeight = 8.0
	rowHeight    = 7.0
	cardHeight   = 18.0
	chartCardH   = 62.0
	chartsPerRow = 3
	cardsPerRow  = 4
)

// palette cycles for donut slices: completed, in progress, not started, extra.
var palette = [][3]int{
	{46, 160, 67},
	{240, 173, 78},
	{217, 83, 79},
	{91, 192, 222},
	{153, 102, 204},
}

// PDFExporter renders datasets into a landscape report document.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ContentType is the MIME type served for PDF downloads.
func (e *PDFExporter) ContentType() string { return "application/pdf" }

// Extension is the download file extension.
func (e *PDFExporter) Extension() string { return "pdf" }

// Render echoes the title, school, summary cards, per-entity donut cards and the table.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pageMargin, 15, pageMargin)
	pdf.SetAutoPageBreak(false, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pageW, pageH := pdf.GetPageSize()
	usable := pageW - 2*pageMargin
	bottom := pageH - 15

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr(data.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, tr("School: "+data.TenantName), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr("Generated on: "+data.generatedOn()), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	if len(data.Summary) > 0 {
		drawCards(pdf, tr, data.Summary, usable)
	}

	if len(data.Charts) > 0 {
		drawCharts(pdf, tr, data.Charts, usable, bottom)
	}

	drawTable(pdf, tr, data, usable, bottom)

	if pdf.Err() {
		return nil, fmt.Errorf("render pdf: %w", pdf.Error())
	}
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func drawCards(pdf *gofpdf.Fpdf, tr func(string) string, cards []Card, usable float64) {
	gap := 4.0
	perRow := cardsPerRow
	if len(cards) < perRow {
		perRow = len(cards)
	}
	width := (usable - gap*float64(perRow-1)) / float64(perRow)
	for i, card := range cards {
		col := i % perRow
		if col == 0 && i > 0 {
			pdf.SetY(pdf.GetY() + cardHeight + gap)
		}
		x := pageMargin + float64(col)*(width+gap)
		y := pdf.GetY()
		pdf.SetFillColor(245, 247, 250)
		pdf.SetDrawColor(210, 214, 220)
		pdf.Rect(x, y, width, cardHeight, "FD")
		pdf.SetXY(x+3, y+2)
		pdf.SetFont("Arial", "", 8)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(width-6, 5, tr(fit(pdf, card.Label, width-6)), "", 2, "L", false, 0, "")
		pdf.SetFont("Arial", "B", 14)
		pdf.SetTextColor(20, 20, 20)
		pdf.CellFormat(width-6, 9, tr(fit(pdf, card.Value, width-6)), "", 0, "L", false, 0, "")
		pdf.SetXY(pageMargin, y)
	}
	pdf.SetY(pdf.GetY() + cardHeight + 6)
	pdf.SetTextColor(0, 0, 0)
}

func drawCharts(pdf *gofpdf.Fpdf, tr func(string) string, charts []Donut, usable, bottom float64) {
	gap := 5.0
	width := (usable - gap*float64(chartsPerRow-1)) / chartsPerRow
	for i, chart := range charts {
		col := i % chartsPerRow
		if col == 0 && i > 0 {
			pdf.SetY(pdf.GetY() + chartCardH + gap)
		}
		if col == 0 && pdf.GetY()+chartCardH > bottom {
			pdf.AddPage()
		}
		x := pageMargin + float64(col)*(width+gap)
		y := pdf.GetY()
		pdf.SetDrawColor(210, 214, 220)
		pdf.Rect(x, y, width, chartCardH, "D")

		pdf.SetXY(x+3, y+2)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(width-6, 6, tr(fit(pdf, chart.Title, width-6)), "", 0, "L", false, 0, "")

		radius := 20.0
		cx, cy := x+3+radius, y+10+radius
		drawDonut(pdf, cx, cy, radius, chart)

		legendX := cx + radius + 5
		legendY := y + 14
		pdf.SetFont("Arial", "", 8)
		for j, slice := range chart.Slices {
			c := palette[j%len(palette)]
			pdf.SetFillColor(c[0], c[1], c[2])
			pdf.Rect(legendX, legendY+float64(j)*6, 3, 3, "F")
			pdf.SetXY(legendX+4, legendY+float64(j)*6-1)
			label := fmt.Sprintf("%s: %s", slice.Label, formatSliceValue(slice.Value))
			pdf.CellFormat(x+width-legendX-6, 5, tr(fit(pdf, label, x+width-legendX-6)), "", 0, "L", false, 0, "")
		}
		if chart.Caption != "" {
			pdf.SetXY(x+3, y+chartCardH-8)
			pdf.SetFont("Arial", "I", 8)
			pdf.CellFormat(width-6, 5, tr(fit(pdf, chart.Caption, width-6)), "", 0, "L", false, 0, "")
		}
		pdf.SetXY(pageMargin, y)
	}
	pdf.SetY(pdf.GetY() + chartCardH + 6)
}

// drawDonut fills one polygon wedge per slice and punches out the centre.
func drawDonut(pdf *gofpdf.Fpdf, cx, cy, r float64, chart Donut) {
	total := chart.Total()
	if total <= 0 {
		pdf.SetFillColor(225, 225, 225)
		pdf.Circle(cx, cy, r, "F")
	} else {
		start := -90.0
		for i, slice := range chart.Slices {
			if slice.Value <= 0 {
				continue
			}
			sweep := slice.Value / total * 360
			c := palette[i%len(palette)]
			pdf.SetFillColor(c[0], c[1], c[2])
			pdf.Polygon(wedge(cx, cy, r, start, start+sweep), "F")
			start += sweep
		}
	}
	pdf.SetFillColor(255, 255, 255)
	pdf.Circle(cx, cy, r*0.55, "F")
	if total > 0 && len(chart.Slices) > 0 {
		pct := chart.Slices[0].Value / total * 100
		pdf.SetFont("Arial", "B", 9)
		pdf.SetXY(cx-r*0.5, cy-3)
		pdf.CellFormat(r, 6, fmt.Sprintf("%.1f%%", pct), "", 0, "C", false, 0, "")
	}
}

func wedge(cx, cy, r, fromDeg, toDeg float64) []gofpdf.PointType {
	steps := int(math.Ceil((toDeg - fromDeg) / 5))
	if steps < 1 {
		steps = 1
	}
	points := make([]gofpdf.PointType, 0, steps+2)
	points = append(points, gofpdf.PointType{X: cx, Y: cy})
	for i := 0; i <= steps; i++ {
		angle := (fromDeg + (toDeg-fromDeg)*float64(i)/float64(steps)) * math.Pi / 180
		points = append(points, gofpdf.PointType{X: cx + r*math.Cos(angle), Y: cy + r*math.Sin(angle)})
	}
	return points
}

func drawTable(pdf *gofpdf.Fpdf, tr func(string) string, data Dataset, usable, bottom float64) {
	colWidth := usable / float64(len(data.Columns))
	labels := data.labels()
	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 233, 238)
		for _, label := range labels {
			pdf.CellFormat(colWidth, headerHeight, tr(fit(pdf, label, colWidth-2)), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}

	if pdf.GetY()+headerHeight+rowHeight > bottom {
		pdf.AddPage()
	}
	header()
	if len(data.Rows) == 0 {
		pdf.CellFormat(usable, rowHeight, "No data", "1", 1, "C", false, 0, "")
		return
	}
	for _, row := range data.Rows {
		if pdf.GetY()+rowHeight > bottom {
			pdf.AddPage()
			header()
		}
		for _, value := range data.record(row) {
			pdf.CellFormat(colWidth, rowHeight, tr(fit(pdf, value, colWidth-2)), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

// fit truncates text with an ellipsis so it stays inside width at the current font.
func fit(pdf *gofpdf.Fpdf, text string, width float64) string {
	if pdf.GetStringWidth(text) <= width {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := strings.TrimSpace(string(runes)) + "..."
		if pdf.GetStringWidth(candidate) <= width {
			return candidate
		}
	}
	return ""
}

func formatSliceValue(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}
