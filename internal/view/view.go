// Package view renders the school manager pages from embedded templates.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"time"

	"github.com/noah-isme/school-manager-reports/internal/models"
	"github.com/noah-isme/school-manager-reports/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	PageLanding = "landing.html"
	PageReport  = "report.html"
)

// Link is a labelled navigation target.
type Link struct {
	Label string
	Href  string
}

// LandingPage is the view model of the entry page.
type LandingPage struct {
	Title   string
	Notices []string
	Links   []Link
}

// ReportPage is the view model of every report page.
type ReportPage struct {
	Report   *service.Report
	Prefix   string
	Path     string
	Query    url.Values
	Location *time.Location
}

// PageLink returns the current report URL pointing at page n.
func (p ReportPage) PageLink(n int) string {
	return p.with("page", strconv.Itoa(n))
}

// FormatLink returns the current report URL in another output format.
func (p ReportPage) FormatLink(format string) string {
	q := cloneValues(p.Query)
	q.Del("page")
	q.Del("perPage")
	q.Set("format", format)
	return p.Path + "?" + q.Encode()
}

// StudentLink points at the detail report of a student.
func (p ReportPage) StudentLink(id string) string {
	return p.Prefix + "/reports/students/" + url.PathEscape(id)
}

// Filter returns the current value of a query filter.
func (p ReportPage) Filter(key string) string {
	return p.Query.Get(key)
}

// Generated formats the generation time in the report timezone.
func (p ReportPage) Generated() string {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	return p.Report.GeneratedAt.In(loc).Format("2006-01-02 15:04 MST")
}

// HasPagination reports whether pager links should be drawn.
func (p ReportPage) HasPagination() bool {
	return p.Report.Pagination != nil && p.Report.Pagination.TotalPages() > 1
}

// Prev is the previous page number, or 0 on the first page.
func (p ReportPage) Prev() int {
	if p.Report.Pagination == nil || p.Report.Pagination.Page <= 1 {
		return 0
	}
	return p.Report.Pagination.Page - 1
}

// Next is the next page number, or 0 on the last page.
func (p ReportPage) Next() int {
	pg := p.Report.Pagination
	if pg == nil || pg.Page >= pg.TotalPages() {
		return 0
	}
	return pg.Page + 1
}

// ShowCohortFilter reports whether the report accepts a cohort filter.
func (p ReportPage) ShowCohortFilter() bool {
	return p.Report.Type == models.ReportTypeCourseCompletion || p.Report.Type == models.ReportTypeStudentEngagement
}

// ShowSearch reports whether the report accepts free text search.
func (p ReportPage) ShowSearch() bool {
	return p.Report.Type == models.ReportTypeStudentEngagement || p.Report.Type == models.ReportTypeActivityLog
}

// ShowDateRange reports whether the report accepts a from/to range.
func (p ReportPage) ShowDateRange() bool {
	return p.Report.Type == models.ReportTypeActivityLog
}

// LinksStudents reports whether table rows link to the student detail report.
func (p ReportPage) LinksStudents() bool {
	return p.Report.Type == models.ReportTypeStudentEngagement
}

func (p ReportPage) with(key, value string) string {
	q := cloneValues(p.Query)
	q.Set(key, value)
	return p.Path + "?" + q.Encode()
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

// Renderer executes the embedded page templates.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses every page together with the shared layout.
func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{
		"cell": func(row map[string]string, key string) string {
			if v, ok := row[key]; ok && v != "" {
				return v
			}
			return "-"
		},
		"selected": func(current string, id int64) bool {
			return current == strconv.FormatInt(id, 10)
		},
	}
	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, page := range []string{PageLanding, PageReport} {
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		r.pages[page] = tmpl
	}
	return r, nil
}

// Render executes the page into memory so a failure never leaves a half-written response.
func (r *Renderer) Render(page string, data interface{}) ([]byte, error) {
	tmpl, ok := r.pages[page]
	if !ok {
		return nil, fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return nil, fmt.Errorf("render %s: %w", page, err)
	}
	return buf.Bytes(), nil
}
