package view

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-manager-reports/internal/models"
	"github.com/noah-isme/school-manager-reports/internal/service"
	"github.com/noah-isme/school-manager-reports/pkg/export"
)

func engagementReport() *service.Report {
	return &service.Report{
		Type:        models.ReportTypeStudentEngagement,
		Title:       "Student engagement",
		Tenant:      models.Tenant{ID: 3, Name: "SMA <Harapan>", ShortName: "Harapan"},
		GeneratedAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		Primary:     "students",
		Pagination:  &models.Pagination{Page: 2, PageSize: 10, TotalCount: 35},
		Cohorts:     []models.Cohort{{ID: 7, Name: "X-A"}, {ID: 8, Name: "X-B"}},
		Sections: []service.Section{
			{
				Key:     "students",
				Title:   "Students",
				Cards:   []export.Card{{Label: "Students", Value: "35"}},
				Columns: []export.Column{{Key: "name", Label: "Name"}, {Key: "score", Label: "Score"}},
				Rows: []map[string]string{
					{"id": "41", "name": "Budi <script>", "score": "80"},
					{"id": "42", "name": "Sari", "score": ""},
				},
				Charts: []export.Donut{{Title: "Scores", Slices: []export.Slice{{Label: "High", Value: 3}}}},
			},
			{Key: "trend", Title: "Trend", Error: service.SectionUnavailable},
		},
	}
}

func TestRenderReportPage(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	page := ReportPage{
		Report: engagementReport(),
		Prefix: "/manager",
		Path:   "/manager/reports/students",
		Query:  url.Values{"cohort": {"8"}, "page": {"2"}},
	}
	out, err := r.Render(PageReport, page)
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, "SMA &lt;Harapan&gt;")
	assert.Contains(t, html, "Budi &lt;script&gt;")
	assert.NotContains(t, html, "Budi <script>")
	assert.Contains(t, html, `href="/manager/reports/students/41"`)
	assert.Contains(t, html, `<option value="8" selected>X-B</option>`)
	assert.Contains(t, html, service.SectionUnavailable)
	assert.Contains(t, html, `<script type="application/json" class="chart-data">[{"title":"Scores"`)
	assert.Contains(t, html, "Page 2 of 4")
	assert.Contains(t, html, "format=pdf")
	assert.Contains(t, html, "2026-03-02 12:00 UTC")

	sari := html[strings.Index(html, "Sari"):]
	assert.True(t, strings.HasPrefix(sari[strings.Index(sari, "<td>"):], "<td>-</td>"))
}

func TestReportPageLinks(t *testing.T) {
	page := ReportPage{
		Report: engagementReport(),
		Path:   "/manager/reports/students",
		Query:  url.Values{"search": {"budi"}, "page": {"2"}, "perPage": {"10"}},
	}

	assert.Equal(t, "/manager/reports/students?format=excel&search=budi", page.FormatLink("excel"))
	assert.Equal(t, "/manager/reports/students?page=3&perPage=10&search=budi", page.PageLink(3))
	assert.Equal(t, 1, page.Prev())
	assert.Equal(t, 3, page.Next())
	assert.True(t, page.HasPagination())
	assert.True(t, page.ShowSearch())
	assert.False(t, page.ShowDateRange())
	assert.Equal(t, "2", page.Query.Get("page"))

	page.Report.Pagination.Page = 4
	assert.Equal(t, 0, page.Next())
}

func TestRenderLandingPage(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Render(PageLanding, LandingPage{
		Title:   "School Manager",
		Notices: []string{"school manager access required"},
		Links:   []Link{{Label: "Course completion", Href: "/manager/reports/courses"}},
	})
	require.NoError(t, err)
	assert.Contains(t, string(out), `<div class="notice">school manager access required</div>`)
	assert.Contains(t, string(out), `href="/manager/reports/courses"`)

	_, err = r.Render("missing.html", nil)
	assert.Error(t, err)
}
