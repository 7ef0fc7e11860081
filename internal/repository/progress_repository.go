package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-manager-reports/internal/models"
)

// ProgressRepository reads per-student completion signals.
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository constructs a ProgressRepository.
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// StudentProgress returns one row per actively enrolled tenant student and tenant course.
//
// The enrolled set is selected DISTINCT first and the completion, access and
// module signals are left-joined onto it, so each student appears once per
// course regardless of how many enrolment methods or role assignments exist.
func (r *ProgressRepository) StudentProgress(ctx context.Context, tenantID int64, filter models.ProgressFilter) ([]models.StudentCourseProgress, error) {
	args := []interface{}{tenantID, models.RoleStudent}
	var scope strings.Builder
	if filter.CourseID != nil {
		args = append(args, *filter.CourseID)
		fmt.Fprintf(&scope, " AND e.courseid = $%d", len(args))
	}
	if filter.StudentID != nil {
		args = append(args, *filter.StudentID)
		fmt.Fprintf(&scope, " AND ue.userid = $%d", len(args))
	}
	if filter.CohortID != nil {
		args = append(args, *filter.CohortID)
		fmt.Fprintf(&scope, " AND EXISTS (SELECT 1 FROM mdl_cohort_members chm WHERE chm.userid = ue.userid AND chm.cohortid = $%d)", len(args))
	}

	query := `SELECT en.userid, en.courseid,
    COALESCE(cc.timestarted, 0) AS timestarted,
    COALESCE(cc.timecompleted, 0) AS timecompleted,
    COALESCE(la.timeaccess, 0) AS lastaccess,
    COALESCE(mods.tracked, 0) AS tracked_modules,
    COALESCE(done.completed, 0) AS completed_modules
FROM (
    SELECT DISTINCT ue.userid, e.courseid
    FROM mdl_user_enrolments ue
    JOIN mdl_enrol e ON e.id = ue.enrolid
    JOIN mdl_company_course ccrs ON ccrs.courseid = e.courseid AND ccrs.companyid = $1
    JOIN mdl_company_users cu ON cu.userid = ue.userid AND cu.companyid = $1
    JOIN mdl_user u ON u.id = ue.userid AND u.deleted = 0
    JOIN mdl_role_assignments ra ON ra.userid = ue.userid
    JOIN mdl_role r ON r.id = ra.roleid AND r.shortname = $2
    WHERE ue.status = 0` + scope.String() + `
) en
LEFT JOIN mdl_course_completions cc ON cc.userid = en.userid AND cc.course = en.courseid
LEFT JOIN mdl_user_lastaccess la ON la.userid = en.userid AND la.courseid = en.courseid
LEFT JOIN (
    SELECT course, COUNT(*) AS tracked FROM mdl_course_modules WHERE completion > 0 GROUP BY course
) mods ON mods.course = en.courseid
LEFT JOIN (
    SELECT cm.course, cmc.userid, COUNT(*) AS completed
    FROM mdl_course_modules_completion cmc
    JOIN mdl_course_modules cm ON cm.id = cmc.coursemoduleid
    WHERE cm.completion > 0 AND cmc.completionstate IN (1, 2)
    GROUP BY cm.course, cmc.userid
) done ON done.course = en.courseid AND done.userid = en.userid
ORDER BY en.courseid, en.userid`

	var rows []models.StudentCourseProgress
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("load student progress: %w", err)
	}
	return rows, nil
}
