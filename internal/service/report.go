package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/school-manager-reports/internal/models"
	appErrors "github.com/noah-isme/school-manager-reports/pkg/errors"
	"github.com/noah-isme/school-manager-reports/pkg/export"
)

// SectionUnavailable is shown in place of a section whose query failed.
const SectionUnavailable = "This section could not be loaded. Other sections are unaffected."

// Section is an independently loaded block of a report page.
type Section struct {
	Key     string              `json:"key"`
	Title   string              `json:"title"`
	Cards   []export.Card       `json:"cards,omitempty"`
	Columns []export.Column     `json:"columns,omitempty"`
	Rows    []map[string]string `json:"rows,omitempty"`
	Charts  []export.Donut      `json:"charts,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// Failed reports whether the section is a placeholder.
func (s Section) Failed() bool {
	return s.Error != ""
}

// Report is a rendered report before it is turned into HTML, JSON or a file.
type Report struct {
	Type        models.ReportType  `json:"type"`
	Title       string             `json:"title"`
	Tenant      models.Tenant      `json:"tenant"`
	GeneratedAt time.Time          `json:"generated_at"`
	Sections    []Section          `json:"sections"`
	Primary     string             `json:"-"`
	Pagination  *models.Pagination `json:"pagination,omitempty"`
	Filters     map[string]string  `json:"filters,omitempty"`
	Cohorts     []models.Cohort    `json:"cohorts,omitempty"`
	Payload     interface{}        `json:"payload,omitempty"`
}

// Section returns the section with the key, or nil.
func (r *Report) Section(key string) *Section {
	for i := range r.Sections {
		if r.Sections[i].Key == key {
			return &r.Sections[i]
		}
	}
	return nil
}

// Dataset converts the report into the export shape. The primary section
// supplies the table; cards and charts come from every loaded section.
func (r *Report) Dataset() (export.Dataset, error) {
	primary := r.Section(r.Primary)
	if primary == nil {
		return export.Dataset{}, appErrors.Clone(appErrors.ErrInternal, "report has no exportable table")
	}
	if primary.Failed() {
		return export.Dataset{}, appErrors.Clone(appErrors.ErrInternal, "report data could not be loaded for export")
	}
	data := export.Dataset{
		Title:       r.Title,
		TenantName:  r.Tenant.Name,
		GeneratedAt: r.GeneratedAt,
		Columns:     primary.Columns,
		Rows:        primary.Rows,
	}
	for _, section := range r.Sections {
		if section.Failed() {
			continue
		}
		data.Summary = append(data.Summary, section.Cards...)
		data.Charts = append(data.Charts, section.Charts...)
	}
	return data, nil
}

// Filename builds the download name, e.g. course-completion-harapan-20260301-0930.csv.
func (r *Report) Filename(ext string) string {
	slug := slugify(r.Tenant.ShortName)
	if slug == "" {
		slug = strconv.FormatInt(r.Tenant.ID, 10)
	}
	return fmt.Sprintf("%s-%s-%s.%s", r.Type, slug, r.GeneratedAt.Format("20060102-1504"), ext)
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func formatOptionalPct(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatPct(*v)
}

func formatTimestamp(ts int64, loc *time.Location) string {
	if ts <= 0 {
		return "-"
	}
	return time.Unix(ts, 0).In(loc).Format("2006-01-02 15:04")
}

func statusLabel(status string) string {
	if status == "" {
		return "-"
	}
	label := strings.ReplaceAll(status, "_", " ")
	return strings.ToUpper(label[:1]) + label[1:]
}
