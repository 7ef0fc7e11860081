package analytics

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-manager-reports/internal/models"
)

var reportNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func TestBreakdownScenario(t *testing.T) {
	recent := reportNow.Add(-48 * time.Hour).Unix()
	stale := reportNow.Add(-90 * 24 * time.Hour).Unix()

	var rows []models.StudentCourseProgress
	for i := 0; i < 4; i++ {
		rows = append(rows, models.StudentCourseProgress{UserID: int64(i + 1), CourseID: 7, TimeStarted: stale, TimeCompleted: recent, LastAccess: recent, TrackedModules: 4, CompletedModules: 4})
	}
	// in progress: 2 of 4 modules, 1 of 4 modules, and started with stale access
	rows = append(rows,
		models.StudentCourseProgress{UserID: 5, CourseID: 7, LastAccess: recent, TrackedModules: 4, CompletedModules: 2},
		models.StudentCourseProgress{UserID: 6, CourseID: 7, LastAccess: recent, TrackedModules: 4, CompletedModules: 1},
		models.StudentCourseProgress{UserID: 7, CourseID: 7, LastAccess: stale, TrackedModules: 4},
	)
	for i := 8; i <= 10; i++ {
		rows = append(rows, models.StudentCourseProgress{UserID: int64(i), CourseID: 7, TrackedModules: 4})
	}

	got := Breakdown(rows, reportNow, 30)
	assert.Equal(t, 4, got.Completed)
	assert.Equal(t, 3, got.InProgress)
	assert.Equal(t, 3, got.NotStarted)
	assert.Equal(t, 10, got.TotalEnrolled)
	// (4*100 + 50 + 25 + 0 + 0*3) / 10
	assert.Equal(t, 47.5, got.CompletionRatePct)
	// six students accessed inside the window
	assert.Equal(t, 60.0, got.ActivityRatePct)
}

func TestBreakdownEmptyCourse(t *testing.T) {
	got := Breakdown(nil, reportNow, 30)
	assert.Equal(t, models.CompletionBreakdown{}, got)
	assert.Equal(t, 0.0, ActivityRate(nil, reportNow, 30))
}

func TestBreakdownAlwaysPartitions(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 200; iter++ {
		n := rng.Intn(40)
		rows := make([]models.StudentCourseProgress, n)
		for i := range rows {
			row := models.StudentCourseProgress{UserID: int64(i), TrackedModules: rng.Intn(5)}
			if row.TrackedModules > 0 {
				row.CompletedModules = rng.Intn(row.TrackedModules + 1)
			}
			if rng.Intn(2) == 0 {
				row.LastAccess = reportNow.Add(-time.Duration(rng.Intn(60*24)) * time.Hour).Unix()
			}
			if rng.Intn(3) == 0 {
				row.TimeCompleted = reportNow.Unix()
			}
			if rng.Intn(2) == 0 {
				row.TimeStarted = reportNow.Unix()
			}
			rows[i] = row
		}
		got := Breakdown(rows, reportNow, 30)
		require.Equal(t, got.TotalEnrolled, got.Completed+got.InProgress+got.NotStarted)
		require.GreaterOrEqual(t, got.NotStarted, 0)
		require.GreaterOrEqual(t, got.CompletionRatePct, 0.0)
		require.LessOrEqual(t, got.CompletionRatePct, 100.0)
		require.GreaterOrEqual(t, got.ActivityRatePct, 0.0)
		require.LessOrEqual(t, got.ActivityRatePct, 100.0)
	}
}

func TestStudentProgressPct(t *testing.T) {
	assert.Equal(t, 100.0, StudentProgressPct(models.StudentCourseProgress{TimeCompleted: 1, TrackedModules: 10}))
	assert.Equal(t, 30.0, StudentProgressPct(models.StudentCourseProgress{TrackedModules: 10, CompletedModules: 3}))
	assert.Equal(t, StartedPlaceholderPct, StudentProgressPct(models.StudentCourseProgress{TimeStarted: 1}))
	assert.Equal(t, 0.0, StudentProgressPct(models.StudentCourseProgress{}))
	assert.Equal(t, 100.0, StudentProgressPct(models.StudentCourseProgress{TrackedModules: 2, CompletedModules: 5}))
}

func TestClassifyStudent(t *testing.T) {
	assert.Equal(t, models.CourseStatusCompleted, ClassifyStudent(models.StudentCourseProgress{TimeCompleted: 5, LastAccess: 5}))
	assert.Equal(t, models.CourseStatusInProgress, ClassifyStudent(models.StudentCourseProgress{LastAccess: 5}))
	assert.Equal(t, models.CourseStatusNotStarted, ClassifyStudent(models.StudentCourseProgress{TimeStarted: 5}))
}

func TestTotalsWeightsByEnrollment(t *testing.T) {
	courses := []models.CourseBreakdown{
		{CompletionBreakdown: models.CompletionBreakdown{Completed: 1, InProgress: 1, NotStarted: 0, TotalEnrolled: 2, CompletionRatePct: 100, ActivityRatePct: 50}},
		{CompletionBreakdown: models.CompletionBreakdown{Completed: 0, InProgress: 0, NotStarted: 8, TotalEnrolled: 8, CompletionRatePct: 0, ActivityRatePct: 0}},
		{},
	}
	got := Totals(courses)
	assert.Equal(t, 1, got.Completed)
	assert.Equal(t, 1, got.InProgress)
	assert.Equal(t, 8, got.NotStarted)
	assert.Equal(t, 10, got.TotalEnrolled)
	assert.Equal(t, 20.0, got.CompletionRatePct)
	assert.Equal(t, 10.0, got.ActivityRatePct)
}

func TestGroupByCourse(t *testing.T) {
	grouped := GroupByCourse([]models.StudentCourseProgress{{UserID: 1, CourseID: 2}, {UserID: 2, CourseID: 3}, {UserID: 3, CourseID: 2}})
	require.Len(t, grouped, 2)
	assert.Len(t, grouped[2], 2)
	assert.Equal(t, int64(3), grouped[2][1].UserID)
}
